package geometry

import (
	"fmt"

	"github.com/twpayne/go-geos"

	"github.com/robert-malhotra/ifg-pair-selector/pkg/geojson"
)

// newGeom parses WKT into a GEOS geometry, repairing self-intersections.
func newGeom(wkt string) (*geos.Geom, error) {
	g, err := geos.NewGeomFromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if !g.IsValid() {
		g = g.MakeValid()
	}
	return g, nil
}

func shapeGeom(g *geojson.Geometry) (*geos.Geom, error) {
	wkt, err := geojson.ToWKT(g)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return newGeom(wkt)
}

// Union merges footprints into one covering polygon. Overlapping or touching
// footprints produce their exact union; disjoint footprints are bridged by
// the convex hull of the union. A union that collapses to something without
// area returns ErrDegenerate and a nil polygon.
func Union(polys []Polygon) (Polygon, error) {
	if len(polys) == 0 {
		return nil, fmt.Errorf("%w: no footprints to union", ErrDegenerate)
	}

	var acc *geos.Geom
	for i, p := range polys {
		g, err := newGeom(p.WKT())
		if err != nil {
			return nil, fmt.Errorf("footprint %d: %w", i, err)
		}
		if acc == nil {
			acc = g
			continue
		}
		acc = acc.Union(g)
	}

	if acc.TypeID() != geos.TypeIDPolygon {
		acc = acc.ConvexHull()
	}
	if acc.IsEmpty() || acc.TypeID() != geos.TypeIDPolygon || acc.Area() == 0 {
		return nil, fmt.Errorf("%w: union has no area", ErrDegenerate)
	}

	out, err := ParseWKT(acc.ToWKT())
	if err != nil {
		return nil, fmt.Errorf("decode union: %w", err)
	}
	return out, nil
}

// IntersectionArea returns the planar area of a ∩ b.
func IntersectionArea(a, b Polygon) (float64, error) {
	ga, err := newGeom(a.WKT())
	if err != nil {
		return 0, err
	}
	gb, err := newGeom(b.WKT())
	if err != nil {
		return 0, err
	}
	return intersectArea(ga, gb), nil
}

// IntersectArea returns the planar area of p intersected with a GeoJSON
// Polygon or MultiPolygon, such as an AOI location.
func IntersectArea(p Polygon, shape *geojson.Geometry) (float64, error) {
	gp, err := newGeom(p.WKT())
	if err != nil {
		return 0, err
	}
	gs, err := shapeGeom(shape)
	if err != nil {
		return 0, err
	}
	return intersectArea(gp, gs), nil
}

// PlanarArea is the unsigned GEOS area of the polygon, holes excluded.
func PlanarArea(p Polygon) (float64, error) {
	g, err := newGeom(p.WKT())
	if err != nil {
		return 0, err
	}
	return g.Area(), nil
}

func intersectArea(a, b *geos.Geom) float64 {
	inter := a.Intersection(b)
	if inter == nil || inter.IsEmpty() {
		return 0
	}
	return inter.Area()
}

// Shape is a parsed Polygon or MultiPolygon kept for repeated intersection,
// such as an AOI location or a land mask feature.
type Shape struct {
	g *geos.Geom
}

// NewShape parses WKT into a reusable Shape.
func NewShape(wkt string) (*Shape, error) {
	g, err := newGeom(wkt)
	if err != nil {
		return nil, err
	}
	return &Shape{g: g}, nil
}

// ShapeFromGeoJSON builds a Shape from a GeoJSON Polygon or MultiPolygon.
func ShapeFromGeoJSON(g *geojson.Geometry) (*Shape, error) {
	gg, err := shapeGeom(g)
	if err != nil {
		return nil, err
	}
	return &Shape{g: gg}, nil
}

// Area is the planar area of the shape.
func (s *Shape) Area() float64 {
	return s.g.Area()
}

// IntersectionArea returns the area of p within the shape.
func (s *Shape) IntersectionArea(p Polygon) (float64, error) {
	gp, err := newGeom(p.WKT())
	if err != nil {
		return 0, err
	}
	return intersectArea(gp, s.g), nil
}
