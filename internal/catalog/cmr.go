package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/internal/cmr"
	"github.com/robert-malhotra/ifg-pair-selector/internal/geometry"
	"github.com/robert-malhotra/ifg-pair-selector/internal/translate"
)

// Collection short names of the Sentinel-1 SLC products in CMR.
var slcCollections = map[string][]string{
	acquisition.PlatformS1A: {"SENTINEL-1A_SLC"},
	acquisition.PlatformS1B: {"SENTINEL-1B_SLC"},
	"":                      {"SENTINEL-1A_SLC", "SENTINEL-1B_SLC"},
}

// CMRSource queries NASA CMR for Sentinel-1 SLC granules.
type CMRSource struct {
	client *cmr.Client
	limit  int
	logger *slog.Logger
}

// NewCMRSource wraps a CMR client. limit caps the number of granules fetched
// across pages; 0 fetches everything.
func NewCMRSource(client *cmr.Client, limit int, logger *slog.Logger) *CMRSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CMRSource{client: client, limit: limit, logger: logger}
}

// Name returns "cmr".
func (s *CMRSource) Name() string { return "cmr" }

// Acquisitions pages through the granules intersecting the AOI.
func (s *CMRSource) Acquisitions(ctx context.Context, q Query) ([]acquisition.Acquisition, error) {
	ring, err := searchRing(q)
	if err != nil {
		return nil, err
	}

	shortNames, ok := slcCollections[q.Platform]
	if !ok {
		return nil, fmt.Errorf("%w: cmr: unknown platform %q", ErrCatalog, q.Platform)
	}

	granules, err := s.client.SearchAll(ctx, cmr.SearchParams{
		ShortName:     shortNames,
		Polygon:       cmr.PolygonParam(ring),
		Temporal:      cmr.TemporalParam(q.Start, q.End),
		BeamMode:      []string{"IW"},
		RelativeOrbit: q.Tracks,
	}, s.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: cmr: %v", ErrCatalog, err)
	}

	acqs := keep(ctx, s.logger, s.Name(), granules, translate.FromGranule)
	s.logger.InfoContext(ctx, "cmr acquisitions found",
		slog.String("aoi", q.AOI.ID),
		slog.Int("granules", len(granules)),
		slog.Int("acquisitions", len(acqs)),
	)
	return acqs, nil
}

// searchRing returns the AOI outline as a counter-clockwise closed ring. A
// MultiPolygon AOI is searched by its bounding box.
func searchRing(q Query) ([][]float64, error) {
	members, err := geometry.FromGeoJSONAll(q.AOI.Location)
	if err != nil {
		return nil, fmt.Errorf("aoi %s: %w", q.AOI.ID, err)
	}

	var ring geometry.Ring
	if len(members) == 1 {
		ring = members[0].Exterior()
	} else {
		bbox, err := q.AOI.Location.BBox()
		if err != nil {
			return nil, fmt.Errorf("aoi %s: %w", q.AOI.ID, err)
		}
		ring = geometry.Ring{{bbox[0], bbox[1]}, {bbox[2], bbox[1]}, {bbox[2], bbox[3]}, {bbox[0], bbox[3]}}
	}

	// Area is positive for clockwise rings
	if geometry.Area(ring) > 0 {
		rev := make(geometry.Ring, len(ring))
		for i, pt := range ring {
			rev[len(ring)-1-i] = pt
		}
		ring = rev
	}

	out := make([][]float64, 0, len(ring)+1)
	for _, pt := range ring {
		out = append(out, []float64{pt[0], pt[1]})
	}
	if !ring.Closed() {
		out = append(out, []float64{ring[0][0], ring[0][1]})
	}
	return out, nil
}
