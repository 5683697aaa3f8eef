// Package selector turns coverage results into candidate master/slave pairs.
package selector

import (
	"errors"
	"slices"
	"time"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/internal/coverage"
	"github.com/robert-malhotra/ifg-pair-selector/internal/geometry"
	"github.com/robert-malhotra/ifg-pair-selector/pkg/geojson"
)

// CandidatePair is the engine's output, handed to job submission.
type CandidatePair struct {
	AOIID        string            `json:"aoi_id"`
	Priority     int               `json:"priority"`
	Track        int               `json:"track"`
	Key          string            `json:"key"`
	MasterAcqs   []string          `json:"master_acqs"`
	SlaveAcqs    []string          `json:"slave_acqs"`
	UnionGeoJSON *geojson.Geometry `json:"union_geojson"`
	StartTime    time.Time         `json:"starttime"`
	EndTime      time.Time         `json:"endtime"`
	// MasterTime and SlaveTime are the earliest start of each role's
	// acquisitions. SlaveTime equals MasterTime for single-role clusters.
	MasterTime time.Time `json:"master_time"`
	SlaveTime  time.Time `json:"slave_time"`
	DEMType      string            `json:"dem_type"`
	Degenerate   bool              `json:"degenerate,omitempty"`
}

// Acquisitions returns master then slave ids.
func (p *CandidatePair) Acquisitions() []string {
	return append(slices.Clone(p.MasterAcqs), p.SlaveAcqs...)
}

// Skip reasons recorded on a Decision.
const (
	ReasonWaterMask  = "water mask check failed"
	ReasonBaseline   = "baseline check failed"
	ReasonSeparation = "temporal separation out of range"
	ReasonGeometry   = "union footprint unavailable"
)

// Decision is the selector's verdict on one cluster.
type Decision struct {
	Pair           *CandidatePair
	BaselinePassed bool
	Reason         string
}

// Policy holds the selection rules. The zero value allows every track and
// imposes no separation bounds.
type Policy struct {
	AllowedTracks   []int
	RequireBaseline bool
	MinSeparation   time.Duration
	MaxSeparation   time.Duration
}

// TrackAllowed reports whether a track passes the allow-list. An empty list
// allows all tracks.
func (p Policy) TrackAllowed(track int) bool {
	return len(p.AllowedTracks) == 0 || slices.Contains(p.AllowedTracks, track)
}

// BaselinePassed reports whether each role uses at most one processing
// version.
func BaselinePassed(res *coverage.Result) bool {
	return res.MasterIPFCount <= 1 && res.SlaveIPFCount <= 1
}

// Separation is the absolute gap between the earliest master start and the
// latest slave start. It is zero when either role is empty.
func Separation(master, slave []acquisition.Acquisition) time.Duration {
	if len(master) == 0 || len(slave) == 0 {
		return 0
	}
	earliest := master[0].StartTime
	for _, a := range master[1:] {
		if a.StartTime.Before(earliest) {
			earliest = a.StartTime
		}
	}
	latest := slave[0].StartTime
	for _, a := range slave[1:] {
		if a.StartTime.After(latest) {
			latest = a.StartTime
		}
	}
	d := earliest.Sub(latest)
	if d < 0 {
		d = -d
	}
	return d
}

func (p Policy) separationOK(res *coverage.Result) bool {
	if !res.Matched() {
		return true
	}
	sep := Separation(res.Master, res.Slave)
	if p.MinSeparation > 0 && sep < p.MinSeparation {
		return false
	}
	if p.MaxSeparation > 0 && sep > p.MaxSeparation {
		return false
	}
	return true
}

// Select applies the policy to one evaluated cluster of an AOI.
func (p Policy) Select(aoiID string, priority int, res *coverage.Result) Decision {
	d := Decision{BaselinePassed: BaselinePassed(res)}

	switch {
	case !res.Passed:
		d.Reason = ReasonWaterMask
		return d
	case p.RequireBaseline && !d.BaselinePassed:
		d.Reason = ReasonBaseline
		return d
	case !p.separationOK(res):
		d.Reason = ReasonSeparation
		return d
	case len(res.Union) == 0:
		d.Reason = ReasonGeometry
		return d
	}

	degenerate := res.Degenerate
	ring, err := res.Union.Normalize()
	if errors.Is(err, geometry.ErrDegenerate) {
		degenerate = true
	}
	union, err := ring.GeoJSON()
	if err != nil {
		d.Reason = ReasonGeometry
		return d
	}

	members := append(slices.Clone(res.Master), res.Slave...)
	start, end := timeSpan(members)
	masterTime, _ := timeSpan(res.Master)
	slaveTime := masterTime
	if len(res.Slave) > 0 {
		slaveTime, _ = timeSpan(res.Slave)
	}

	d.Pair = &CandidatePair{
		AOIID:        aoiID,
		Priority:     priority,
		Track:        res.Track,
		Key:          res.Key,
		MasterAcqs:   ids(res.Master),
		SlaveAcqs:    ids(res.Slave),
		UnionGeoJSON: union,
		StartTime:    start,
		EndTime:      end,
		MasterTime:   masterTime,
		SlaveTime:    slaveTime,
		DEMType:      members[0].DEMType(),
		Degenerate:   degenerate,
	}
	return d
}

func ids(acqs []acquisition.Acquisition) []string {
	out := make([]string, len(acqs))
	for i, a := range acqs {
		out[i] = a.ID
	}
	return out
}

func timeSpan(acqs []acquisition.Acquisition) (start, end time.Time) {
	for i, a := range acqs {
		if i == 0 || a.StartTime.Before(start) {
			start = a.StartTime
		}
		if i == 0 || a.EndTime.After(end) {
			end = a.EndTime
		}
	}
	return start, end
}
