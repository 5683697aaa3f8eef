package catalog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/internal/asf"
)

// GranuleLookup fetches a single granule's metadata.
type GranuleLookup interface {
	GetGranule(ctx context.Context, id string) (*asf.Feature, error)
}

// VersionResolver fills in missing processing versions from ASF. Lookups are
// cached for the life of the resolver.
type VersionResolver struct {
	lookup GranuleLookup
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewVersionResolver creates a resolver backed by lookup.
func NewVersionResolver(lookup GranuleLookup, logger *slog.Logger) *VersionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &VersionResolver{lookup: lookup, logger: logger, cache: make(map[string]string)}
}

// Resolve returns a copy of acqs with empty processing versions filled in.
// A failed lookup leaves the version empty; the acquisition then does not
// count toward the IPF tally.
func (r *VersionResolver) Resolve(ctx context.Context, acqs []acquisition.Acquisition) []acquisition.Acquisition {
	out := make([]acquisition.Acquisition, len(acqs))
	for i, a := range acqs {
		out[i] = a
		if a.ProcessingVersion != "" {
			continue
		}
		if v := r.version(ctx, a.Identifier); v != "" {
			out[i] = a.Enrich(acquisition.Enrichment{ProcessingVersion: v})
		}
	}
	return out
}

func (r *VersionResolver) version(ctx context.Context, identifier string) string {
	r.mu.Lock()
	v, ok := r.cache[identifier]
	r.mu.Unlock()
	if ok {
		return v
	}

	f, err := r.lookup.GetGranule(ctx, identifier)
	if err != nil {
		r.logger.WarnContext(ctx, "processing version lookup failed",
			slog.String("identifier", identifier),
			slog.String("error", err.Error()),
		)
		return ""
	}
	v = f.Properties.PGEVersion

	r.mu.Lock()
	r.cache[identifier] = v
	r.mu.Unlock()
	return v
}

// Enriched wraps a Source so that every result passes through a resolver.
type Enriched struct {
	Source
	Resolver *VersionResolver
}

// Acquisitions queries the wrapped source and resolves versions.
func (e Enriched) Acquisitions(ctx context.Context, q Query) ([]acquisition.Acquisition, error) {
	acqs, err := e.Source.Acquisitions(ctx, q)
	if err != nil {
		return nil, err
	}
	return e.Resolver.Resolve(ctx, acqs), nil
}
