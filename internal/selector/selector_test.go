package selector

import (
	"slices"
	"testing"
	"time"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/internal/coverage"
	"github.com/robert-malhotra/ifg-pair-selector/internal/geometry"
)

var day1 = time.Date(2018, 8, 20, 10, 41, 18, 0, time.UTC)

func acq(id string, start time.Time, version string) acquisition.Acquisition {
	return acquisition.Acquisition{
		ID:                id,
		StartTime:         start,
		EndTime:           start.Add(27 * time.Second),
		ProcessingVersion: version,
		City:              []acquisition.City{{CountryName: "United States"}},
	}
}

func passing(master, slave []acquisition.Acquisition) *coverage.Result {
	return &coverage.Result{
		Track:  42,
		Key:    "2018-08-20",
		Ratio:  1,
		Passed: true,
		Master: master,
		Slave:  slave,
		Union: geometry.Polygon{{
			{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0},
		}},
		MasterIPFCount: 1,
		SlaveIPFCount:  1,
	}
}

func TestTrackAllowed(t *testing.T) {
	if !(Policy{}).TrackAllowed(23679) {
		t.Error("empty allow-list should allow every track")
	}
	p := Policy{AllowedTracks: []int{23678}}
	if p.TrackAllowed(23679) {
		t.Error("track 23679 should be skipped")
	}
	if !p.TrackAllowed(23678) {
		t.Error("track 23678 should be allowed")
	}
}

func TestSelect_Accepted(t *testing.T) {
	m := acq("m1", day1.Add(24*time.Hour*12), "002.91")
	s1 := acq("s1", day1, "002.91")
	s2 := acq("s2", day1.Add(25*time.Second), "002.91")
	res := passing([]acquisition.Acquisition{m}, []acquisition.Acquisition{s1, s2})

	d := Policy{}.Select("aoi-1", 5, res)
	if d.Pair == nil {
		t.Fatalf("expected a pair, reason %q", d.Reason)
	}
	p := d.Pair

	if !slices.Equal(p.MasterAcqs, []string{"m1"}) || !slices.Equal(p.SlaveAcqs, []string{"s1", "s2"}) {
		t.Errorf("roles = %v / %v", p.MasterAcqs, p.SlaveAcqs)
	}
	if !p.StartTime.Equal(s1.StartTime) || !p.EndTime.Equal(m.EndTime) {
		t.Errorf("time span = %v - %v", p.StartTime, p.EndTime)
	}
	if p.StartTime.After(p.EndTime) {
		t.Error("starttime must not be after endtime")
	}
	if p.AOIID != "aoi-1" || p.Priority != 5 || p.Track != 42 {
		t.Errorf("pair metadata = %+v", p)
	}
	if p.DEMType != acquisition.DEMNed1 {
		t.Errorf("DEMType = %q, want %q", p.DEMType, acquisition.DEMNed1)
	}
	if !d.BaselinePassed {
		t.Error("baseline should pass")
	}
	if !p.MasterTime.Equal(m.StartTime) || !p.SlaveTime.Equal(s1.StartTime) {
		t.Errorf("role times = %v / %v", p.MasterTime, p.SlaveTime)
	}

	union, err := geometry.FromGeoJSON(p.UnionGeoJSON)
	if err != nil {
		t.Fatalf("FromGeoJSON() error: %v", err)
	}
	if geometry.Area(union.Exterior()) <= 0 || !union.Exterior().Closed() {
		t.Error("union_geojson must be a closed clockwise ring")
	}
}

func TestSelect_NormalizesUnionWinding(t *testing.T) {
	tests := []struct {
		name           string
		union          geometry.Polygon
		wantDegenerate bool
	}{
		{
			name:  "counter-clockwise",
			union: geometry.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
		},
		{
			name:  "clockwise",
			union: geometry.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}},
		},
		{
			name:           "collapsed",
			union:          geometry.Polygon{{{0, 0}, {1, 1}, {2, 2}, {0, 0}}},
			wantDegenerate: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := passing([]acquisition.Acquisition{acq("m", day1, "")}, nil)
			res.Union = tt.union

			d := Policy{}.Select("aoi", 0, res)
			if d.Pair == nil {
				t.Fatalf("expected a pair, reason %q", d.Reason)
			}
			if d.Pair.Degenerate != tt.wantDegenerate {
				t.Errorf("Degenerate = %v, want %v", d.Pair.Degenerate, tt.wantDegenerate)
			}
			union, err := geometry.FromGeoJSON(d.Pair.UnionGeoJSON)
			if err != nil {
				t.Fatalf("FromGeoJSON() error: %v", err)
			}
			if !union.Exterior().Closed() {
				t.Error("union_geojson ring must be closed")
			}
			if !tt.wantDegenerate && geometry.Area(union.Exterior()) <= 0 {
				t.Errorf("union area = %g, want clockwise", geometry.Area(union.Exterior()))
			}
			if geometry.Area(res.Union.Exterior()) != geometry.Area(tt.union.Exterior()) {
				t.Error("Select must not modify the coverage result")
			}
		})
	}
}

func TestSelect_Skips(t *testing.T) {
	m := acq("m1", day1.Add(12*24*time.Hour), "002.91")
	s := acq("s1", day1, "003.10")

	tests := []struct {
		name   string
		policy Policy
		mutate func(r *coverage.Result)
		reason string
	}{
		{
			name:   "water mask",
			mutate: func(r *coverage.Result) { r.Passed = false; r.Ratio = 0.5 },
			reason: ReasonWaterMask,
		},
		{
			name:   "baseline",
			policy: Policy{RequireBaseline: true},
			mutate: func(r *coverage.Result) { r.MasterIPFCount = 2 },
			reason: ReasonBaseline,
		},
		{
			name:   "too close",
			policy: Policy{MinSeparation: 24 * 24 * time.Hour},
			reason: ReasonSeparation,
		},
		{
			name:   "too far",
			policy: Policy{MaxSeparation: 6 * 24 * time.Hour},
			reason: ReasonSeparation,
		},
		{
			name:   "no union",
			mutate: func(r *coverage.Result) { r.Union = nil },
			reason: ReasonGeometry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := passing([]acquisition.Acquisition{m}, []acquisition.Acquisition{s})
			if tt.mutate != nil {
				tt.mutate(res)
			}
			d := tt.policy.Select("aoi", 0, res)
			if d.Pair != nil {
				t.Fatalf("expected skip, got pair %+v", d.Pair)
			}
			if d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestSelect_BaselineReportedWithoutGate(t *testing.T) {
	res := passing([]acquisition.Acquisition{acq("m", day1, "a")}, nil)
	res.MasterIPFCount = 2

	d := Policy{}.Select("aoi", 0, res)
	if d.Pair == nil {
		t.Fatal("baseline must not gate selection unless required")
	}
	if d.BaselinePassed {
		t.Error("BaselinePassed should be false with two master versions")
	}
}

func TestSelect_SeparationIgnoredForSingleRole(t *testing.T) {
	res := passing([]acquisition.Acquisition{acq("m", day1, "")}, nil)
	d := Policy{MinSeparation: time.Hour}.Select("aoi", 0, res)
	if d.Pair == nil {
		t.Fatalf("single-role cluster should be selected, reason %q", d.Reason)
	}
	if len(d.Pair.SlaveAcqs) != 0 {
		t.Errorf("SlaveAcqs = %v, want empty", d.Pair.SlaveAcqs)
	}
}

func TestSeparation(t *testing.T) {
	master := []acquisition.Acquisition{acq("m2", day1.Add(13*24*time.Hour), ""), acq("m1", day1.Add(12*24*time.Hour), "")}
	slave := []acquisition.Acquisition{acq("s1", day1, ""), acq("s2", day1.Add(time.Hour), "")}

	if got, want := Separation(master, slave), 12*24*time.Hour-time.Hour; got != want {
		t.Errorf("Separation() = %v, want %v", got, want)
	}
	if got := Separation(nil, slave); got != 0 {
		t.Errorf("Separation(nil, slave) = %v, want 0", got)
	}
}

func TestResolveOwnership(t *testing.T) {
	low := AOIPairs{AOIID: "low", Priority: 1, Pairs: []*CandidatePair{
		{AOIID: "low", MasterAcqs: []string{"a"}, SlaveAcqs: []string{"b"}},
		{AOIID: "low", MasterAcqs: []string{"c"}},
	}}
	high := AOIPairs{AOIID: "high", Priority: 5, Pairs: []*CandidatePair{
		{AOIID: "high", MasterAcqs: []string{"b"}},
	}}
	tieFirst := AOIPairs{AOIID: "first", Priority: 0, Pairs: []*CandidatePair{
		{AOIID: "first", MasterAcqs: []string{"z"}},
	}}
	tieSecond := AOIPairs{AOIID: "second", Priority: 0, Pairs: []*CandidatePair{
		{AOIID: "second", MasterAcqs: []string{"z"}},
	}}

	out, removed := ResolveOwnership([]AOIPairs{low, high, tieFirst, tieSecond})
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	if len(out[0].Pairs) != 1 || out[0].Pairs[0].MasterAcqs[0] != "c" {
		t.Errorf("low AOI kept %v, want only the pair on c", out[0].Pairs)
	}
	if len(out[1].Pairs) != 1 {
		t.Errorf("high AOI kept %d pairs, want 1", len(out[1].Pairs))
	}
	if len(out[2].Pairs) != 1 || len(out[3].Pairs) != 0 {
		t.Errorf("tie should go to the first AOI: %d / %d", len(out[2].Pairs), len(out[3].Pairs))
	}
	if len(low.Pairs) != 2 {
		t.Error("input must not be modified")
	}
}
