// Package catalog finds the acquisitions covering an AOI in a time window.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/internal/aoi"
)

// ErrCatalog wraps failures talking to an acquisition catalog.
var ErrCatalog = errors.New("acquisition catalog unavailable")

// Query selects acquisitions intersecting an AOI within [Start, End].
type Query struct {
	AOI      *aoi.AOI
	Start    time.Time
	End      time.Time
	Platform string
	// Tracks restricts results to these relative orbits when not empty.
	Tracks []int
}

// Source is an acquisition catalog. Results preserve catalog order.
type Source interface {
	Acquisitions(ctx context.Context, q Query) ([]acquisition.Acquisition, error)
	Name() string
}

// keep converts records with conv, logging and dropping the ones that fail.
func keep[T any](ctx context.Context, logger *slog.Logger, source string, in []T, conv func(*T) (acquisition.Acquisition, error)) []acquisition.Acquisition {
	out := make([]acquisition.Acquisition, 0, len(in))
	for i := range in {
		a, err := conv(&in[i])
		if err != nil {
			logger.WarnContext(ctx, "skipping catalog record",
				slog.String("source", source),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, a)
	}
	return out
}
