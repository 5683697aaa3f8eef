// Package aoi defines areas of interest and the SQLite catalog that stores
// them.
package aoi

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/robert-malhotra/ifg-pair-selector/internal/geometry"
	"github.com/robert-malhotra/ifg-pair-selector/pkg/geojson"
)

// Well-known tags.
const (
	TagInactive        = "inactive"
	TagStandardProduct = "standard_product"
)

var (
	// ErrInvalidAOI marks an AOI that cannot be evaluated. The AOI is skipped.
	ErrInvalidAOI = errors.New("invalid aoi")

	// ErrNotFound is returned when an AOI id is unknown.
	ErrNotFound = errors.New("aoi not found")
)

// AOI is an area of interest with an optional validity window. Nil start or
// end times mean the window is open on that side.
type AOI struct {
	ID        string            `json:"id"`
	Location  *geojson.Geometry `json:"location"`
	Priority  int               `json:"priority"`
	StartTime *time.Time        `json:"starttime,omitempty"`
	EndTime   *time.Time        `json:"endtime,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
}

// Validate checks the id, the location type and the window ordering.
func (a *AOI) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidAOI)
	}
	if a.Location == nil {
		return fmt.Errorf("%w: %s has no location", ErrInvalidAOI, a.ID)
	}
	if _, err := geometry.FromGeoJSONAll(a.Location); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidAOI, a.ID, err)
	}
	if a.StartTime != nil && a.EndTime != nil && a.EndTime.Before(*a.StartTime) {
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidAOI, a.ID)
	}
	return nil
}

// HasTag reports whether the AOI carries tag.
func (a *AOI) HasTag(tag string) bool {
	return slices.Contains(a.Tags, tag)
}

// Active reports whether the AOI's window overlaps [start, end] and the AOI is
// not tagged inactive.
func (a *AOI) Active(start, end time.Time) bool {
	if a.HasTag(TagInactive) {
		return false
	}
	if a.StartTime != nil && a.StartTime.After(end) {
		return false
	}
	if a.EndTime != nil && a.EndTime.Before(start) {
		return false
	}
	return true
}

// Shape parses the location for repeated intersection.
func (a *AOI) Shape() (*geometry.Shape, error) {
	s, err := geometry.ShapeFromGeoJSON(a.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAOI, a.ID, err)
	}
	return s, nil
}

// WKT renders the location, for catalog queries.
func (a *AOI) WKT() (string, error) {
	return geojson.ToWKT(a.Location)
}

// ParseRecord decodes an AOI document. Both the flat form produced by this
// service and catalog documents that nest priority and tags under
// "metadata" are accepted.
func ParseRecord(data []byte) (*AOI, error) {
	return parseRecord(data, "")
}

// ParseRecordWithID decodes an AOI document registered under id. A document
// without an id takes this one; a different id is rejected.
func ParseRecordWithID(data []byte, id string) (*AOI, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidAOI)
	}
	return parseRecord(data, id)
}

func parseRecord(data []byte, id string) (*AOI, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidAOI)
	}
	doc := gjson.ParseBytes(data)

	a := &AOI{ID: doc.Get("id").String()}
	switch {
	case id == "":
	case a.ID == "":
		a.ID = id
	case a.ID != id:
		return nil, fmt.Errorf("%w: document id %q does not match %q", ErrInvalidAOI, a.ID, id)
	}

	loc := doc.Get("location")
	if !loc.IsObject() {
		return nil, fmt.Errorf("%w: %s has no location", ErrInvalidAOI, a.ID)
	}
	a.Location = &geojson.Geometry{
		Type:        loc.Get("type").String(),
		Coordinates: []byte(loc.Get("coordinates").Raw),
	}

	a.Priority = int(firstOf(doc, "priority", "metadata.priority").Int())

	var err error
	if a.StartTime, err = optionalTime(doc.Get("starttime")); err != nil {
		return nil, fmt.Errorf("%w: %s starttime: %v", ErrInvalidAOI, a.ID, err)
	}
	if a.EndTime, err = optionalTime(doc.Get("endtime")); err != nil {
		return nil, fmt.Errorf("%w: %s endtime: %v", ErrInvalidAOI, a.ID, err)
	}

	for _, path := range []string{"tags", "metadata.tags", "metadata.user_tags"} {
		for _, t := range doc.Get(path).Array() {
			if tag := strings.TrimSpace(t.String()); tag != "" && !a.HasTag(tag) {
				a.Tags = append(a.Tags, tag)
			}
		}
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// ParseRecords decodes a JSON array of AOI documents; a lone document is read
// as an array of one. Invalid entries are returned as errors alongside the
// valid ones.
func ParseRecords(data []byte) ([]*AOI, []error) {
	if !gjson.ValidBytes(data) {
		return nil, []error{fmt.Errorf("%w: malformed json", ErrInvalidAOI)}
	}
	var (
		out  []*AOI
		errs []error
	)
	for i, item := range gjson.ParseBytes(data).Array() {
		a, err := ParseRecord([]byte(item.Raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		out = append(out, a)
	}
	return out, errs
}

func firstOf(doc gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := doc.Get(p); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func optionalTime(r gjson.Result) (*time.Time, error) {
	s := strings.TrimSpace(r.String())
	if !r.Exists() || r.Type == gjson.Null || s == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", s)
}
