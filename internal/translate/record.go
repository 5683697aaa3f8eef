package translate

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/pkg/geojson"
)

// FromRecord converts one raw acquisition record as stored by the dataset
// catalog:
//
//	{"id": "acquisition-S1A_IW_SLC__...", "starttime": "...", "endtime": "...",
//	 "location": {...}, "city": [{"country_name": "..."}],
//	 "metadata": {"identifier": "...", "track_number": 42, "orbitNumber": [23304],
//	              "platform": "Sentinel-1A", "processing_version": "002.91"}}
func FromRecord(doc gjson.Result) (acquisition.Acquisition, error) {
	md := doc.Get("metadata")
	a := acquisition.Acquisition{
		ID:                doc.Get("id").String(),
		Identifier:        md.Get("identifier").String(),
		TrackNumber:       int(firstOf(md, "track_number", "trackNumber").Int()),
		OrbitNumber:       orbitNumber(md.Get("orbitNumber")),
		Platform:          md.Get("platform").String(),
		ProcessingVersion: md.Get("processing_version").String(),
	}
	if a.Identifier == "" {
		a.Identifier = strings.TrimPrefix(a.ID, "acquisition-")
	}

	loc := doc.Get("location")
	if !loc.IsObject() {
		return acquisition.Acquisition{}, fmt.Errorf("%w: %s has no location", acquisition.ErrInvalidRecord, a.ID)
	}
	fp, err := footprint(&geojson.Geometry{
		Type:        loc.Get("type").String(),
		Coordinates: []byte(loc.Get("coordinates").Raw),
	})
	if err != nil {
		return acquisition.Acquisition{}, fmt.Errorf("%w: %s: %v", acquisition.ErrInvalidRecord, a.ID, err)
	}
	a.Footprint = fp

	for _, c := range doc.Get("city").Array() {
		a.City = append(a.City, acquisition.City{
			Name:        c.Get("name").String(),
			CountryName: c.Get("country_name").String(),
		})
	}

	if err := setTimes(&a, doc.Get("starttime").String(), doc.Get("endtime").String()); err != nil {
		return acquisition.Acquisition{}, err
	}
	fillFromIdentifier(&a)
	return a, a.Validate()
}

// ParseRecords decodes a JSON array of records, or a search response whose
// records sit under hits.hits[]._source. Records that fail to convert are
// returned as errors alongside the good ones.
func ParseRecords(data []byte) ([]acquisition.Acquisition, []error) {
	if !gjson.ValidBytes(data) {
		return nil, []error{fmt.Errorf("%w: malformed json", acquisition.ErrInvalidRecord)}
	}
	root := gjson.ParseBytes(data)

	var docs []gjson.Result
	switch {
	case root.IsArray():
		docs = root.Array()
	case root.Get("hits.hits").Exists():
		docs = root.Get("hits.hits.#._source").Array()
	default:
		docs = []gjson.Result{root}
	}

	var (
		out  []acquisition.Acquisition
		errs []error
	)
	for i, d := range docs {
		a, err := FromRecord(d)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		out = append(out, a)
	}
	return out, errs
}

func orbitNumber(r gjson.Result) int {
	if r.IsArray() {
		arr := r.Array()
		if len(arr) == 0 {
			return 0
		}
		return int(arr[0].Int())
	}
	return int(r.Int())
}

func firstOf(doc gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := doc.Get(p); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}
