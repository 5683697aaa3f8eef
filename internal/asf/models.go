package asf

import "encoding/json"

// GeoJSONResponse is the FeatureCollection returned by the ASF search API
// with output=geojson.
type GeoJSONResponse struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single granule in a search response.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   *Geometry  `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry is the granule footprint.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Properties holds the granule metadata used for pair selection.
type Properties struct {
	SceneName  string `json:"sceneName"`
	FileID     string `json:"fileID"`
	Platform   string `json:"platform"`
	Instrument string `json:"instrument"`

	BeamModeType string `json:"beamModeType"`
	Polarization string `json:"polarization"`

	FlightDirection string `json:"flightDirection"`
	FrameNumber     *int   `json:"frameNumber"`
	AbsoluteOrbit   *int   `json:"absoluteOrbit"`
	RelativeOrbit   *int   `json:"relativeOrbit"`
	PathNumber      *int   `json:"pathNumber"`

	ProcessingLevel string `json:"processingLevel"`
	ProcessingDate  string `json:"processingDate"`

	// PGEVersion is the IPF version that produced the granule, e.g. "002.91".
	PGEVersion string `json:"pgeVersion"`

	StartTime string `json:"startTime"`
	StopTime  string `json:"stopTime"`

	URL      string `json:"url"`
	FileName string `json:"fileName"`
	GroupID  string `json:"groupID"`
}

// Track returns the relative orbit, falling back to the path number.
func (p *Properties) Track() int {
	switch {
	case p.RelativeOrbit != nil:
		return *p.RelativeOrbit
	case p.PathNumber != nil:
		return *p.PathNumber
	}
	return 0
}

// Orbit returns the absolute orbit, or 0.
func (p *Properties) Orbit() int {
	if p.AbsoluteOrbit == nil {
		return 0
	}
	return *p.AbsoluteOrbit
}
