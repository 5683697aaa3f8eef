package asf

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearchParams are the ASF search query parameters this service uses.
type SearchParams struct {
	Dataset  []string
	Platform []string

	// IntersectsWith is a WKT geometry.
	IntersectsWith string

	Start *time.Time
	End   *time.Time

	GranuleList []string

	BeamMode        []string
	Polarization    []string
	FlightDirection string
	RelativeOrbit   []int
	ProcessingLevel []string

	// MaxResults must stay zero when GranuleList is set; ASF rejects the
	// combination.
	MaxResults int
	Output     string
}

// ToQueryString encodes the parameters.
func (p *SearchParams) ToQueryString() string {
	return p.ToURLValues().Encode()
}

// ToURLValues converts the parameters to url.Values.
func (p *SearchParams) ToURLValues() url.Values {
	values := url.Values{}

	for _, d := range p.Dataset {
		values.Add("dataset", d)
	}
	for _, pl := range p.Platform {
		values.Add("platform", pl)
	}
	if p.IntersectsWith != "" {
		values.Set("intersectsWith", p.IntersectsWith)
	}
	if p.Start != nil {
		values.Set("start", formatTime(*p.Start))
	}
	if p.End != nil {
		values.Set("end", formatTime(*p.End))
	}
	if len(p.GranuleList) > 0 {
		values.Set("granule_list", strings.Join(p.GranuleList, ","))
	}
	for _, bm := range p.BeamMode {
		values.Add("beamMode", bm)
	}
	for _, pol := range p.Polarization {
		values.Add("polarization", pol)
	}
	if p.FlightDirection != "" {
		values.Set("flightDirection", p.FlightDirection)
	}
	for _, ro := range p.RelativeOrbit {
		values.Add("relativeOrbit", strconv.Itoa(ro))
	}
	if len(p.ProcessingLevel) > 0 {
		values.Set("processingLevel", strings.Join(p.ProcessingLevel, ","))
	}
	if p.MaxResults > 0 {
		values.Set("maxResults", strconv.Itoa(p.MaxResults))
	}
	if p.Output != "" {
		values.Set("output", p.Output)
	} else {
		values.Set("output", "geojson")
	}
	return values
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
