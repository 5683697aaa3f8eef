// Package acquisition defines the immutable Sentinel-1 acquisition record the
// pairing engine works on, and the parsing of catalog records into it.
package acquisition

import (
	"strings"
	"time"

	"github.com/robert-malhotra/ifg-pair-selector/internal/geometry"
)

// Platform names as reported by catalogs.
const (
	PlatformS1A = "Sentinel-1A"
	PlatformS1B = "Sentinel-1B"
)

// DEM types handed to the interferogram job.
const (
	DEMNed1   = "Ned1"
	DEMSRTMv3 = "SRTM+v3"
)

// City is the reverse-geocoded place attached to an acquisition.
type City struct {
	Name        string `json:"name,omitempty"`
	CountryName string `json:"country_name,omitempty"`
}

// Acquisition is a single SLC pass. Values are never mutated after
// construction; enrichment returns a modified copy.
type Acquisition struct {
	ID                string
	Identifier        string
	TrackNumber       int
	OrbitNumber       int
	StartTime         time.Time
	EndTime           time.Time
	Footprint         geometry.Polygon
	Platform          string
	ProcessingVersion string
	City              []City
}

// Mission returns the short mission code, S1B for Sentinel-1B and S1A
// otherwise.
func (a Acquisition) Mission() string {
	return MissionFor(a.Platform)
}

// MissionFor maps a platform name to its mission code.
func MissionFor(platform string) string {
	if strings.EqualFold(platform, PlatformS1B) {
		return "S1B"
	}
	return "S1A"
}

// DEMType picks the elevation model for the acquisition's location: NED1 for
// the United States, SRTM v3 everywhere else.
func (a Acquisition) DEMType() string {
	if len(a.City) > 0 && strings.EqualFold(a.City[0].CountryName, "united states") {
		return DEMNed1
	}
	return DEMSRTMv3
}

// Enrichment carries fields that become known after the record was built.
// Empty fields leave the corresponding value unchanged.
type Enrichment struct {
	ProcessingVersion string
}

// Enrich returns a copy of a with the enrichment merged in.
func (a Acquisition) Enrich(e Enrichment) Acquisition {
	out := a
	if e.ProcessingVersion != "" {
		out.ProcessingVersion = e.ProcessingVersion
	}
	return out
}

// WithProcessingVersion is shorthand for Enrich with only a version.
func (a Acquisition) WithProcessingVersion(v string) Acquisition {
	return a.Enrich(Enrichment{ProcessingVersion: v})
}
