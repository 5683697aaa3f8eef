// Package translate converts catalog responses (ASF search features, CMR
// UMM-G granules and raw acquisition records) into acquisitions.
package translate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/internal/asf"
	"github.com/robert-malhotra/ifg-pair-selector/internal/cmr"
	"github.com/robert-malhotra/ifg-pair-selector/internal/geometry"
	"github.com/robert-malhotra/ifg-pair-selector/pkg/geojson"
)

// FromASFFeature converts an ASF search result. The scene name is used as
// both id and identifier.
func FromASFFeature(f *asf.Feature) (acquisition.Acquisition, error) {
	if f == nil {
		return acquisition.Acquisition{}, fmt.Errorf("%w: feature is nil", acquisition.ErrInvalidRecord)
	}
	props := f.Properties

	name := props.SceneName
	if name == "" {
		name = strings.TrimSuffix(props.FileID, "-SLC")
	}

	var g *geojson.Geometry
	if f.Geometry != nil {
		g = &geojson.Geometry{Type: f.Geometry.Type, Coordinates: f.Geometry.Coordinates}
	}
	fp, err := footprint(g)
	if err != nil {
		return acquisition.Acquisition{}, fmt.Errorf("%w: %s: %v", acquisition.ErrInvalidRecord, name, err)
	}

	a := acquisition.Acquisition{
		ID:                name,
		Identifier:        name,
		TrackNumber:       props.Track(),
		OrbitNumber:       props.Orbit(),
		Footprint:         fp,
		Platform:          props.Platform,
		ProcessingVersion: props.PGEVersion,
	}
	if err := setTimes(&a, props.StartTime, props.StopTime); err != nil {
		return acquisition.Acquisition{}, err
	}
	fillFromIdentifier(&a)
	return a, a.Validate()
}

// FromGranule converts a CMR UMM-G granule. Track comes from the PATH_NUMBER
// attribute and the processing version from PGE_VERSION.
func FromGranule(g *cmr.UMMGranule) (acquisition.Acquisition, error) {
	if g == nil {
		return acquisition.Acquisition{}, fmt.Errorf("%w: granule is nil", acquisition.ErrInvalidRecord)
	}

	name := strings.TrimSuffix(g.GranuleUR, "-SLC")
	rings := g.Footprint()
	if len(rings) == 0 {
		return acquisition.Acquisition{}, fmt.Errorf("%w: %s has no footprint", acquisition.ErrInvalidRecord, name)
	}
	loc, err := geojson.NewPolygon(rings)
	if err != nil {
		return acquisition.Acquisition{}, fmt.Errorf("%w: %s: %v", acquisition.ErrInvalidRecord, name, err)
	}
	fp, err := footprint(loc)
	if err != nil {
		return acquisition.Acquisition{}, fmt.Errorf("%w: %s: %v", acquisition.ErrInvalidRecord, name, err)
	}

	track, _ := strconv.Atoi(strings.TrimSpace(g.Attribute("PATH_NUMBER")))
	a := acquisition.Acquisition{
		ID:                name,
		Identifier:        name,
		TrackNumber:       track,
		OrbitNumber:       g.Orbit(),
		Footprint:         fp,
		ProcessingVersion: g.Attribute("PGE_VERSION"),
	}
	if len(g.Platforms) > 0 {
		a.Platform = platformName(g.Platforms[0].ShortName)
	}

	begin, end := g.Times()
	if err := setTimes(&a, begin, end); err != nil {
		return acquisition.Acquisition{}, err
	}
	fillFromIdentifier(&a)
	return a, a.Validate()
}

func footprint(g *geojson.Geometry) (geometry.Polygon, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: no footprint", ErrInvalidGeometry)
	}
	members, err := geometry.FromGeoJSONAll(g)
	if err != nil {
		return nil, err
	}
	return members[0], nil
}

func setTimes(a *acquisition.Acquisition, start, end string) error {
	var err error
	if a.StartTime, err = ParseTime(start); err != nil {
		return fmt.Errorf("%w: %s starttime: %v", acquisition.ErrInvalidRecord, a.ID, err)
	}
	if a.EndTime, err = ParseTime(end); err != nil {
		return fmt.Errorf("%w: %s endtime: %v", acquisition.ErrInvalidRecord, a.ID, err)
	}
	return nil
}

// fillFromIdentifier backfills orbit and platform from the SLC product name
// when the catalog left them out.
func fillFromIdentifier(a *acquisition.Acquisition) {
	if a.OrbitNumber > 0 && a.Platform != "" {
		return
	}
	n, err := acquisition.ParseIdentifier(a.Identifier)
	if err != nil {
		return
	}
	if a.OrbitNumber <= 0 {
		a.OrbitNumber = n.AbsoluteOrbit
	}
	if a.Platform == "" {
		a.Platform = n.Platform()
	}
}

// platformName maps CMR platform short names ("SENTINEL-1A") to the catalog
// spelling ("Sentinel-1A").
func platformName(short string) string {
	switch strings.ToUpper(short) {
	case "SENTINEL-1A":
		return acquisition.PlatformS1A
	case "SENTINEL-1B":
		return acquisition.PlatformS1B
	}
	return short
}
