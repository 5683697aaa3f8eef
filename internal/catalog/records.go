package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/internal/translate"
)

// RecordSource serves acquisitions from a file of raw catalog records.
type RecordSource struct {
	acqs   []acquisition.Acquisition
	logger *slog.Logger
}

// LoadRecords reads a records file. Records that fail to parse are logged
// and skipped.
func LoadRecords(path string, logger *slog.Logger) (*RecordSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records %s: %w", path, err)
	}
	return NewRecordSource(data, logger), nil
}

// NewRecordSource parses records held in memory.
func NewRecordSource(data []byte, logger *slog.Logger) *RecordSource {
	if logger == nil {
		logger = slog.Default()
	}
	acqs, errs := translate.ParseRecords(data)
	for _, err := range errs {
		logger.Warn("skipping acquisition record", slog.String("error", err.Error()))
	}
	return &RecordSource{acqs: acqs, logger: logger}
}

// Name returns "records".
func (s *RecordSource) Name() string { return "records" }

// Len returns the number of loaded acquisitions.
func (s *RecordSource) Len() int { return len(s.acqs) }

// Acquisitions returns the records that overlap the window, match the
// platform and tracks, and intersect the AOI.
func (s *RecordSource) Acquisitions(ctx context.Context, q Query) ([]acquisition.Acquisition, error) {
	shape, err := q.AOI.Shape()
	if err != nil {
		return nil, err
	}

	var out []acquisition.Acquisition
	for _, a := range s.acqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if a.EndTime.Before(q.Start) || a.StartTime.After(q.End) {
			continue
		}
		if q.Platform != "" && a.Platform != q.Platform {
			continue
		}
		if len(q.Tracks) > 0 && !slices.Contains(q.Tracks, a.TrackNumber) {
			continue
		}
		area, err := shape.IntersectionArea(a.Footprint)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping record with bad footprint",
				slog.String("acquisition", a.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if area <= 0 {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
