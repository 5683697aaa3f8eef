// Package geojson provides the GeoJSON geometry shapes used for acquisition
// footprints and AOI locations, plus conversion to and from WKT.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Geometry type names.
const (
	TypePolygon      = "Polygon"
	TypeMultiPolygon = "MultiPolygon"
)

// Geometry represents a GeoJSON geometry object. Coordinates are kept raw and
// decoded on demand by the typed accessors.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// NewPolygon builds a Polygon geometry from its rings. The first ring is the
// exterior, any further rings are holes.
func NewPolygon(rings [][][]float64) (*Geometry, error) {
	if len(rings) == 0 {
		return nil, fmt.Errorf("polygon requires at least one ring")
	}
	raw, err := json.Marshal(rings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon coordinates: %w", err)
	}
	return &Geometry{Type: TypePolygon, Coordinates: raw}, nil
}

// NewMultiPolygon builds a MultiPolygon geometry.
func NewMultiPolygon(polygons [][][][]float64) (*Geometry, error) {
	if len(polygons) == 0 {
		return nil, fmt.Errorf("multipolygon requires at least one polygon")
	}
	raw, err := json.Marshal(polygons)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal multipolygon coordinates: %w", err)
	}
	return &Geometry{Type: TypeMultiPolygon, Coordinates: raw}, nil
}

// Polygon returns the coordinates as a Polygon [][][lon, lat].
// Returns error if geometry is not a Polygon.
func (g *Geometry) Polygon() ([][][]float64, error) {
	if g.Type != TypePolygon {
		return nil, fmt.Errorf("geometry is not a Polygon, got %s", g.Type)
	}
	var coords [][][]float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Polygon coordinates: %w", err)
	}
	return coords, nil
}

// MultiPolygon returns the coordinates as a MultiPolygon [][][][lon, lat].
// Returns error if geometry is not a MultiPolygon.
func (g *Geometry) MultiPolygon() ([][][][]float64, error) {
	if g.Type != TypeMultiPolygon {
		return nil, fmt.Errorf("geometry is not a MultiPolygon, got %s", g.Type)
	}
	var coords [][][][]float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal MultiPolygon coordinates: %w", err)
	}
	return coords, nil
}

// Polygons returns the member polygons of a Polygon or MultiPolygon, so
// callers can treat both shapes uniformly.
func (g *Geometry) Polygons() ([][][][]float64, error) {
	if g == nil {
		return nil, fmt.Errorf("geometry is nil")
	}
	switch g.Type {
	case TypePolygon:
		p, err := g.Polygon()
		if err != nil {
			return nil, err
		}
		return [][][][]float64{p}, nil
	case TypeMultiPolygon:
		return g.MultiPolygon()
	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}
}

// BBox computes the bounding box of the geometry.
// Returns [west, south, east, north].
func (g *Geometry) BBox() ([]float64, error) {
	polygons, err := g.Polygons()
	if err != nil {
		return nil, err
	}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	for _, polygon := range polygons {
		for _, ring := range polygon {
			for _, point := range ring {
				if len(point) < 2 {
					continue
				}
				minLon = math.Min(minLon, point[0])
				maxLon = math.Max(maxLon, point[0])
				minLat = math.Min(minLat, point[1])
				maxLat = math.Max(maxLat, point[1])
			}
		}
	}

	if math.IsInf(minLon, 0) {
		return nil, fmt.Errorf("failed to compute bounding box: no valid coordinates found")
	}
	return []float64{minLon, minLat, maxLon, maxLat}, nil
}

// ToWKT converts a Polygon or MultiPolygon geometry to WKT.
func ToWKT(g *Geometry) (string, error) {
	if g == nil {
		return "", fmt.Errorf("geometry is nil")
	}

	switch g.Type {
	case TypePolygon:
		coords, err := g.Polygon()
		if err != nil {
			return "", err
		}
		body, err := polygonBody(coords)
		if err != nil {
			return "", err
		}
		return "POLYGON" + body, nil

	case TypeMultiPolygon:
		coords, err := g.MultiPolygon()
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(coords))
		for _, polygon := range coords {
			body, err := polygonBody(polygon)
			if err != nil {
				return "", err
			}
			parts = append(parts, body)
		}
		return "MULTIPOLYGON(" + strings.Join(parts, ",") + ")", nil

	default:
		return "", fmt.Errorf("unsupported geometry type for WKT conversion: %s", g.Type)
	}
}

func polygonBody(rings [][][]float64) (string, error) {
	parts := make([]string, 0, len(rings))
	for _, ring := range rings {
		points := make([]string, len(ring))
		for i, point := range ring {
			if len(point) < 2 {
				return "", fmt.Errorf("invalid point in polygon ring: expected at least 2 coordinates")
			}
			points[i] = formatFloat(point[0]) + " " + formatFloat(point[1])
		}
		parts = append(parts, "("+strings.Join(points, ",")+")")
	}
	return "(" + strings.Join(parts, ",") + ")", nil
}

// FromWKT parses a POLYGON or MULTIPOLYGON WKT string. Empty geometries
// ("POLYGON EMPTY") are rejected.
func FromWKT(wkt string) (*Geometry, error) {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return nil, fmt.Errorf("empty WKT string")
	}

	upper := strings.ToUpper(wkt)
	if strings.HasSuffix(upper, "EMPTY") {
		return nil, fmt.Errorf("empty WKT geometry")
	}

	open := strings.Index(wkt, "(")
	if open == -1 {
		return nil, fmt.Errorf("invalid WKT format")
	}
	tree, err := parseNested(wkt[open:])
	if err != nil {
		return nil, err
	}

	switch strings.TrimSpace(upper[:open]) {
	case "POLYGON":
		rings, err := tree.rings()
		if err != nil {
			return nil, fmt.Errorf("failed to parse POLYGON rings: %w", err)
		}
		return NewPolygon(rings)
	case "MULTIPOLYGON":
		polygons := make([][][][]float64, 0, len(tree.children))
		for _, child := range tree.children {
			rings, err := child.rings()
			if err != nil {
				return nil, fmt.Errorf("failed to parse MULTIPOLYGON polygons: %w", err)
			}
			polygons = append(polygons, rings)
		}
		return NewMultiPolygon(polygons)
	default:
		return nil, fmt.Errorf("unsupported WKT geometry type")
	}
}

// node is one parenthesised group of a WKT body. Leaves carry the raw
// coordinate text.
type node struct {
	children []*node
	text     string
}

func (n *node) rings() ([][][]float64, error) {
	if len(n.children) == 0 {
		return nil, fmt.Errorf("polygon has no rings")
	}
	rings := make([][][]float64, 0, len(n.children))
	for _, child := range n.children {
		if len(child.children) != 0 {
			return nil, fmt.Errorf("unexpected nesting in ring")
		}
		ring, err := parseRing(child.text)
		if err != nil {
			return nil, err
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

func parseNested(s string) (*node, error) {
	root := &node{}
	stack := []*node{}
	var text strings.Builder

	for i, ch := range s {
		switch ch {
		case '(':
			n := &node{}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if len(root.children) > 0 {
				return nil, fmt.Errorf("unexpected text after geometry at position %d", i)
			} else {
				root.children = append(root.children, n)
			}
			stack = append(stack, n)
			text.Reset()
		case ')':
			if len(stack) == 0 {
				return nil, fmt.Errorf("unmatched closing parenthesis at position %d", i)
			}
			top := stack[len(stack)-1]
			if len(top.children) == 0 {
				top.text = text.String()
			}
			stack = stack[:len(stack)-1]
			text.Reset()
		default:
			text.WriteRune(ch)
		}
	}

	if len(stack) != 0 || len(root.children) != 1 {
		return nil, fmt.Errorf("unmatched parentheses")
	}
	return root.children[0], nil
}

func parseRing(s string) ([][]float64, error) {
	pairs := strings.Split(s, ",")
	ring := make([][]float64, 0, len(pairs))
	for _, pair := range pairs {
		parts := strings.Fields(pair)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid coordinate pair: %q", strings.TrimSpace(pair))
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude: %s", parts[0])
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude: %s", parts[1])
		}
		ring = append(ring, []float64{lon, lat})
	}
	return ring, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
