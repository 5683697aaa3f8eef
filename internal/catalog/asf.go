package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/internal/asf"
	"github.com/robert-malhotra/ifg-pair-selector/internal/translate"
)

// ASFSource queries the ASF search API for IW SLC products.
type ASFSource struct {
	client     *asf.Client
	maxResults int
	logger     *slog.Logger
}

// NewASFSource wraps an ASF client. maxResults of 0 leaves the limit to ASF.
func NewASFSource(client *asf.Client, maxResults int, logger *slog.Logger) *ASFSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ASFSource{client: client, maxResults: maxResults, logger: logger}
}

// Name returns "asf".
func (s *ASFSource) Name() string { return "asf" }

// Acquisitions runs one search for the AOI footprint and window.
func (s *ASFSource) Acquisitions(ctx context.Context, q Query) ([]acquisition.Acquisition, error) {
	wkt, err := q.AOI.WKT()
	if err != nil {
		return nil, fmt.Errorf("aoi %s: %w", q.AOI.ID, err)
	}

	params := asf.SearchParams{
		Dataset:         []string{"SENTINEL-1"},
		IntersectsWith:  wkt,
		Start:           &q.Start,
		End:             &q.End,
		BeamMode:        []string{"IW"},
		ProcessingLevel: []string{"SLC"},
		RelativeOrbit:   q.Tracks,
		MaxResults:      s.maxResults,
	}
	if q.Platform != "" {
		params.Platform = []string{q.Platform}
	}

	resp, err := s.client.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: asf: %v", ErrCatalog, err)
	}

	acqs := keep(ctx, s.logger, s.Name(), resp.Features, translate.FromASFFeature)
	s.logger.InfoContext(ctx, "asf acquisitions found",
		slog.String("aoi", q.AOI.ID),
		slog.Int("features", len(resp.Features)),
		slog.Int("acquisitions", len(acqs)),
	)
	return acqs, nil
}
