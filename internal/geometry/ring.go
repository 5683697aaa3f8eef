// Package geometry implements the polygon primitives used by coverage
// evaluation: signed shoelace area, winding normalization, footprint union
// and intersection area. Set operations are delegated to GEOS.
package geometry

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/robert-malhotra/ifg-pair-selector/pkg/geojson"
)

// Point is a (lon, lat) pair.
type Point [2]float64

// Ring is an ordered sequence of points. Rings produced by this package are
// closed: the first and last points are equal.
type Ring []Point

// Polygon is an exterior ring followed by zero or more holes.
type Polygon []Ring

// Area returns the signed shoelace area of the ring, interpreting points as
// (x=lon, y=lat) and summing y_i*x_j - y_j*x_i. Under this convention a
// clockwise ring has positive area.
func Area(r Ring) float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += r[i][1]*r[j][0] - r[j][1]*r[i][0]
	}
	return sum / 2
}

// Closed reports whether the ring's first and last points coincide.
func (r Ring) Closed() bool {
	return len(r) > 0 && r[0] == r[len(r)-1]
}

// NormalizeWinding returns a copy of the ring in clockwise order. Rings with
// non-positive area are reversed once; if the area is still non-positive
// (zero-area or collapsed rings) the reversed copy is returned together with
// ErrDegenerate. Closure of the input ring is preserved.
func NormalizeWinding(r Ring) (Ring, error) {
	out := slices.Clone(r)
	if Area(out) > 0 {
		return out, nil
	}
	slices.Reverse(out)
	if Area(out) <= 0 {
		return out, fmt.Errorf("%w: ring area %g after reversal", ErrDegenerate, Area(out))
	}
	return out, nil
}

// Normalize applies NormalizeWinding to the exterior ring. Holes are left
// untouched.
func (p Polygon) Normalize() (Polygon, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: polygon has no rings", ErrDegenerate)
	}
	out := make(Polygon, len(p))
	copy(out, p)
	exterior, err := NormalizeWinding(p[0])
	out[0] = exterior
	return out, err
}

// Exterior returns the exterior ring, or nil for an empty polygon.
func (p Polygon) Exterior() Ring {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// WKT renders the polygon as a WKT POLYGON. Open rings are closed on output
// because GEOS rejects them.
func (p Polygon) WKT() string {
	var b strings.Builder
	b.WriteString("POLYGON(")
	for i, ring := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		pts := ring
		if !ring.Closed() && len(ring) > 0 {
			pts = append(slices.Clone(ring), ring[0])
		}
		for k, pt := range pts {
			if k > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(pt[0], 'f', -1, 64))
			b.WriteByte(' ')
			b.WriteString(strconv.FormatFloat(pt[1], 'f', -1, 64))
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String()
}

// GeoJSON converts the polygon to a GeoJSON Polygon geometry.
func (p Polygon) GeoJSON() (*geojson.Geometry, error) {
	rings := make([][][]float64, len(p))
	for i, ring := range p {
		coords := make([][]float64, len(ring))
		for k, pt := range ring {
			coords[k] = []float64{pt[0], pt[1]}
		}
		rings[i] = coords
	}
	return geojson.NewPolygon(rings)
}

// FromGeoJSON converts a GeoJSON Polygon to a Polygon. MultiPolygon input is
// rejected; use FromGeoJSONAll when every member is needed.
func FromGeoJSON(g *geojson.Geometry) (Polygon, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: geometry is nil", ErrInvalidGeometry)
	}
	rings, err := g.Polygon()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return fromCoords(rings)
}

// FromGeoJSONAll converts a Polygon or MultiPolygon into its member polygons.
func FromGeoJSONAll(g *geojson.Geometry) ([]Polygon, error) {
	members, err := g.Polygons()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	out := make([]Polygon, 0, len(members))
	for _, m := range members {
		p, err := fromCoords(m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func fromCoords(rings [][][]float64) (Polygon, error) {
	if len(rings) == 0 {
		return nil, fmt.Errorf("%w: polygon has no rings", ErrInvalidGeometry)
	}
	out := make(Polygon, 0, len(rings))
	for _, coords := range rings {
		ring := make(Ring, 0, len(coords))
		for _, c := range coords {
			if len(c) < 2 {
				return nil, fmt.Errorf("%w: coordinate has %d values", ErrInvalidGeometry, len(c))
			}
			ring = append(ring, Point{c[0], c[1]})
		}
		if len(ring) < 3 {
			return nil, fmt.Errorf("%w: ring has %d points", ErrInvalidGeometry, len(ring))
		}
		out = append(out, ring)
	}
	return out, nil
}

// ParseWKT parses a WKT POLYGON.
func ParseWKT(wkt string) (Polygon, error) {
	g, err := geojson.FromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return FromGeoJSON(g)
}
