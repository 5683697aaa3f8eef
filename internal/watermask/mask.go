// Package watermask provides land area lookups used by coverage evaluation.
package watermask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/robert-malhotra/ifg-pair-selector/internal/geometry"
)

// ErrNoLandFeatures is returned when a mask file holds no polygonal features.
var ErrNoLandFeatures = errors.New("mask contains no land polygons")

// Mask returns the land area covered by a polygon, in the same planar units as
// the polygon's own area.
type Mask interface {
	LandArea(ctx context.Context, p geometry.Polygon) (float64, error)
}

// AllLand treats every polygon as entirely land.
type AllLand struct{}

// LandArea returns the planar area of p.
func (AllLand) LandArea(ctx context.Context, p geometry.Polygon) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return geometry.PlanarArea(p)
}

type landFeature struct {
	bound orb.Bound
	shape *geometry.Shape
}

// VectorMask is a land mask backed by land polygons, typically a coastline
// dataset exported as a GeoJSON FeatureCollection.
type VectorMask struct {
	features []landFeature
	logger   *slog.Logger
}

// LoadVectorMask reads a GeoJSON FeatureCollection of land polygons.
func LoadVectorMask(path string, logger *slog.Logger) (*VectorMask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mask %s: %w", path, err)
	}
	m, err := ParseVectorMask(data, logger)
	if err != nil {
		return nil, fmt.Errorf("mask %s: %w", path, err)
	}
	return m, nil
}

// ParseVectorMask builds a VectorMask from GeoJSON bytes. Non-polygonal
// features are skipped.
func ParseVectorMask(data []byte, logger *slog.Logger) (*VectorMask, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feature collection: %w", err)
	}

	m := &VectorMask{logger: logger}
	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			logger.Debug("skipping non-polygon mask feature", slog.Int("index", i))
			continue
		}

		shape, err := geometry.NewShape(wkt.MarshalString(f.Geometry))
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		m.features = append(m.features, landFeature{bound: f.Geometry.Bound(), shape: shape})
	}

	if len(m.features) == 0 {
		return nil, ErrNoLandFeatures
	}
	logger.Info("loaded land mask", slog.Int("features", len(m.features)))
	return m, nil
}

// Len is the number of land features in the mask.
func (m *VectorMask) Len() int {
	return len(m.features)
}

// LandArea sums the intersection of p with every land feature whose bounding
// box overlaps p. Land features are assumed not to overlap each other.
func (m *VectorMask) LandArea(ctx context.Context, p geometry.Polygon) (float64, error) {
	bound, ok := polygonBound(p)
	if !ok {
		return 0, nil
	}

	total := 0.0
	for _, f := range m.features {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if !f.bound.Intersects(bound) {
			continue
		}
		area, err := f.shape.IntersectionArea(p)
		if err != nil {
			return 0, fmt.Errorf("land intersection: %w", err)
		}
		total += area
	}
	return total, nil
}

func polygonBound(p geometry.Polygon) (orb.Bound, bool) {
	ext := p.Exterior()
	if len(ext) == 0 {
		return orb.Bound{}, false
	}
	ring := make(orb.Ring, len(ext))
	for i, pt := range ext {
		ring[i] = orb.Point{pt[0], pt[1]}
	}
	return ring.Bound(), true
}
