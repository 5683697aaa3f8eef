package cmr

import "time"

// UMMSearchResponse is a CMR granules.umm_json response.
type UMMSearchResponse struct {
	Hits  int             `json:"hits"`
	Took  int             `json:"took"`
	Items []UMMResultItem `json:"items"`
}

// UMMResultItem wraps a UMM granule with its catalog metadata.
type UMMResultItem struct {
	Meta UMMMeta    `json:"meta"`
	UMM  UMMGranule `json:"umm"`
}

// UMMMeta is the CMR bookkeeping for a result item.
type UMMMeta struct {
	ConceptID    string    `json:"concept-id"`
	RevisionID   int       `json:"revision-id"`
	NativeID     string    `json:"native-id"`
	ProviderID   string    `json:"provider-id"`
	RevisionDate time.Time `json:"revision-date"`
}

// UMMGranule is the subset of a UMM-G record needed to build an acquisition.
type UMMGranule struct {
	GranuleUR                     string                         `json:"GranuleUR"`
	CollectionReference           CollectionReference            `json:"CollectionReference"`
	RelatedUrls                   []RelatedURL                   `json:"RelatedUrls,omitempty"`
	TemporalExtent                *TemporalExtent                `json:"TemporalExtent,omitempty"`
	SpatialExtent                 *SpatialExtent                 `json:"SpatialExtent,omitempty"`
	OrbitCalculatedSpatialDomains []OrbitCalculatedSpatialDomain `json:"OrbitCalculatedSpatialDomains,omitempty"`
	Platforms                     []Platform                     `json:"Platforms,omitempty"`
	AdditionalAttributes          []AdditionalAttribute          `json:"AdditionalAttributes,omitempty"`
}

// CollectionReference identifies the parent collection.
type CollectionReference struct {
	ShortName string `json:"ShortName"`
	Version   string `json:"Version"`
}

// RelatedURL is a link attached to the granule.
type RelatedURL struct {
	URL  string `json:"URL"`
	Type string `json:"Type"`
}

// TemporalExtent holds the acquisition time range.
type TemporalExtent struct {
	RangeDateTime  *RangeDateTime `json:"RangeDateTime,omitempty"`
	SingleDateTime string         `json:"SingleDateTime,omitempty"`
}

// RangeDateTime is a begin/end pair of ISO 8601 timestamps.
type RangeDateTime struct {
	BeginningDateTime string `json:"BeginningDateTime"`
	EndingDateTime    string `json:"EndingDateTime"`
}

// SpatialExtent holds the granule footprint.
type SpatialExtent struct {
	HorizontalSpatialDomain *HorizontalSpatialDomain `json:"HorizontalSpatialDomain,omitempty"`
}

// HorizontalSpatialDomain wraps the footprint geometry.
type HorizontalSpatialDomain struct {
	Geometry *Geometry `json:"Geometry,omitempty"`
}

// Geometry holds polygon or rectangle footprints.
type Geometry struct {
	GPolygons          []GPolygon          `json:"GPolygons,omitempty"`
	BoundingRectangles []BoundingRectangle `json:"BoundingRectangles,omitempty"`
}

// GPolygon is a polygon footprint.
type GPolygon struct {
	Boundary Boundary `json:"Boundary"`
}

// Boundary is the outer ring of a GPolygon.
type Boundary struct {
	Points []Point `json:"Points"`
}

// Point is a geographic point.
type Point struct {
	Longitude float64 `json:"Longitude"`
	Latitude  float64 `json:"Latitude"`
}

// BoundingRectangle is a lon/lat bounding box.
type BoundingRectangle struct {
	WestBoundingCoordinate  float64 `json:"WestBoundingCoordinate"`
	NorthBoundingCoordinate float64 `json:"NorthBoundingCoordinate"`
	EastBoundingCoordinate  float64 `json:"EastBoundingCoordinate"`
	SouthBoundingCoordinate float64 `json:"SouthBoundingCoordinate"`
}

// OrbitCalculatedSpatialDomain carries the absolute orbit.
type OrbitCalculatedSpatialDomain struct {
	OrbitNumber *int `json:"OrbitNumber,omitempty"`
}

// Platform names the satellite.
type Platform struct {
	ShortName string `json:"ShortName"`
}

// AdditionalAttribute is a named list of string values, used by ASF for SAR
// specific fields such as PATH_NUMBER.
type AdditionalAttribute struct {
	Name   string   `json:"Name"`
	Values []string `json:"Values"`
}

// Attribute returns the first value of an additional attribute, or "".
func (g *UMMGranule) Attribute(name string) string {
	for _, attr := range g.AdditionalAttributes {
		if attr.Name == name && len(attr.Values) > 0 {
			return attr.Values[0]
		}
	}
	return ""
}

// Times returns the raw begin and end timestamps. A single date time is used
// for both.
func (g *UMMGranule) Times() (begin, end string) {
	if g.TemporalExtent == nil {
		return "", ""
	}
	if r := g.TemporalExtent.RangeDateTime; r != nil {
		return r.BeginningDateTime, r.EndingDateTime
	}
	return g.TemporalExtent.SingleDateTime, g.TemporalExtent.SingleDateTime
}

// Footprint returns the first polygon footprint as closed lon/lat rings, or
// the first bounding rectangle when no polygon is present.
func (g *UMMGranule) Footprint() [][][]float64 {
	if g.SpatialExtent == nil || g.SpatialExtent.HorizontalSpatialDomain == nil {
		return nil
	}
	geom := g.SpatialExtent.HorizontalSpatialDomain.Geometry
	if geom == nil {
		return nil
	}

	if len(geom.GPolygons) > 0 {
		pts := geom.GPolygons[0].Boundary.Points
		ring := make([][]float64, 0, len(pts)+1)
		for _, pt := range pts {
			ring = append(ring, []float64{pt.Longitude, pt.Latitude})
		}
		if n := len(ring); n > 0 && (ring[0][0] != ring[n-1][0] || ring[0][1] != ring[n-1][1]) {
			ring = append(ring, ring[0])
		}
		return [][][]float64{ring}
	}

	if len(geom.BoundingRectangles) > 0 {
		r := geom.BoundingRectangles[0]
		return [][][]float64{{
			{r.WestBoundingCoordinate, r.SouthBoundingCoordinate},
			{r.EastBoundingCoordinate, r.SouthBoundingCoordinate},
			{r.EastBoundingCoordinate, r.NorthBoundingCoordinate},
			{r.WestBoundingCoordinate, r.NorthBoundingCoordinate},
			{r.WestBoundingCoordinate, r.SouthBoundingCoordinate},
		}}
	}
	return nil
}

// Orbit returns the absolute orbit number, or 0.
func (g *UMMGranule) Orbit() int {
	for _, d := range g.OrbitCalculatedSpatialDomains {
		if d.OrbitNumber != nil {
			return *d.OrbitNumber
		}
	}
	return 0
}

// DataURL returns the primary download link.
func (g *UMMGranule) DataURL() string {
	for _, u := range g.RelatedUrls {
		if u.Type == "GET DATA" {
			return u.URL
		}
	}
	return ""
}
