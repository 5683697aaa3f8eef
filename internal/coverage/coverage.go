// Package coverage runs the water mask check on track/date clusters.
//
// A cluster is compared with the union of every acquisition on the same
// track. When the cluster's land footprint is close to the track's, no
// scenes are missing over land for that date.
package coverage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/internal/geometry"
	"github.com/robert-malhotra/ifg-pair-selector/internal/grouper"
	"github.com/robert-malhotra/ifg-pair-selector/internal/role"
	"github.com/robert-malhotra/ifg-pair-selector/internal/watermask"
)

// DefaultThresholdPercent is the land coverage a cluster must exceed.
const DefaultThresholdPercent = 98.0

// ErrMaskLookup wraps failures of the land mask. It aborts the current AOI.
var ErrMaskLookup = errors.New("land mask lookup failed")

// Reference is the full-track baseline shared by all clusters of a track.
type Reference struct {
	Track      int
	Union      geometry.Polygon
	Land       float64
	AOIArea    float64
	Degenerate bool
}

// Result is the outcome of evaluating one cluster.
type Result struct {
	Track int
	Key   string

	// TrackLand and ClusterLand are the land areas of the track and cluster
	// unions.
	TrackLand   float64
	ClusterLand float64

	Ratio  float64
	Passed bool

	TrackAOIArea   float64
	ClusterAOIArea float64

	Master         []acquisition.Acquisition
	Slave          []acquisition.Acquisition
	MasterIPFCount int
	SlaveIPFCount  int

	Union      geometry.Polygon
	Degenerate bool
}

// Matched reports whether both roles have acquisitions.
func (r *Result) Matched() bool {
	return len(r.Master) > 0 && len(r.Slave) > 0
}

// Evaluator computes Results. It holds no per-run state and may be shared.
type Evaluator struct {
	mask      watermask.Mask
	threshold float64
	roles     role.Assigner
	logger    *slog.Logger
}

// NewEvaluator creates an Evaluator. A non-positive threshold selects
// DefaultThresholdPercent and a nil assigner makes every acquisition a master.
func NewEvaluator(mask watermask.Mask, thresholdPercent float64, roles role.Assigner) *Evaluator {
	if thresholdPercent <= 0 {
		thresholdPercent = DefaultThresholdPercent
	}
	if roles == nil {
		roles = role.Fixed(role.Master)
	}
	return &Evaluator{
		mask:      mask,
		threshold: thresholdPercent,
		roles:     roles,
		logger:    slog.Default(),
	}
}

// WithLogger sets a custom logger for the evaluator.
func (e *Evaluator) WithLogger(logger *slog.Logger) *Evaluator {
	e.logger = logger
	return e
}

// WithRoles returns a copy of the evaluator using a different role policy.
func (e *Evaluator) WithRoles(roles role.Assigner) *Evaluator {
	out := *e
	if roles != nil {
		out.roles = roles
	}
	return &out
}

// Threshold is the configured acceptance threshold in percent.
func (e *Evaluator) Threshold() float64 {
	return e.threshold
}

// Accept applies the threshold to a ratio.
func (e *Evaluator) Accept(ratio float64) bool {
	return ratio*100 > e.threshold
}

// TrackReference computes the union of every acquisition of the track, its
// land area and its intersection with the AOI.
func (e *Evaluator) TrackReference(ctx context.Context, aoi *geometry.Shape, g *grouper.Grouping, t *grouper.Track) (*Reference, error) {
	ref := &Reference{Track: t.Number}

	union, err := e.union(g.Acquisitions(t.IDs()))
	if err != nil {
		e.logger.Warn("track union is degenerate",
			slog.Int("track", t.Number),
			slog.String("error", err.Error()),
		)
		ref.Degenerate = true
		return ref, nil
	}
	ref.Union = union

	if ref.Land, err = e.landArea(ctx, union); err != nil {
		return nil, fmt.Errorf("track %d: %w", t.Number, err)
	}
	if ref.AOIArea, err = aoi.IntersectionArea(union); err != nil {
		return nil, fmt.Errorf("track %d aoi intersection: %w", t.Number, err)
	}
	return ref, nil
}

// Evaluate scores one cluster against its track reference. The returned
// Result is complete whether or not the cluster passed.
func (e *Evaluator) Evaluate(ctx context.Context, aoi *geometry.Shape, g *grouper.Grouping, ref *Reference, c *grouper.Cluster) (*Result, error) {
	members := g.Acquisitions(c.IDs)
	res := &Result{
		Track:        c.Track,
		Key:          c.Key,
		TrackLand:    ref.Land,
		TrackAOIArea: ref.AOIArea,
	}

	res.Master, res.Slave = role.Partition(e.roles, members)
	res.MasterIPFCount = ipfCount(res.Master)
	res.SlaveIPFCount = ipfCount(res.Slave)

	union, err := e.union(members)
	if err != nil {
		e.logger.Warn("cluster union is degenerate",
			slog.Int("track", c.Track),
			slog.String("key", c.Key),
			slog.String("error", err.Error()),
		)
		res.Degenerate = true
		return res, nil
	}

	res.Union, err = union.Normalize()
	if errors.Is(err, geometry.ErrDegenerate) {
		e.logger.Warn("cluster union winding could not be normalized",
			slog.Int("track", c.Track),
			slog.String("key", c.Key),
		)
		res.Degenerate = true
	}

	if res.ClusterLand, err = e.landArea(ctx, res.Union); err != nil {
		return nil, fmt.Errorf("track %d cluster %s: %w", c.Track, c.Key, err)
	}
	if res.ClusterAOIArea, err = aoi.IntersectionArea(res.Union); err != nil {
		return nil, fmt.Errorf("track %d cluster %s aoi intersection: %w", c.Track, c.Key, err)
	}

	res.Ratio = Ratio(res.ClusterLand, res.TrackLand)
	if res.TrackLand <= 0 {
		e.logger.Warn("track reference has no land area",
			slog.Int("track", c.Track),
			slog.String("key", c.Key),
		)
	}
	res.Passed = e.Accept(res.Ratio)
	return res, nil
}

// Ratio is clusterLand / trackLand clamped to [0, 1]. A track without land
// yields 0.
func Ratio(clusterLand, trackLand float64) float64 {
	if trackLand <= 0 || clusterLand <= 0 {
		return 0
	}
	r := clusterLand / trackLand
	if r > 1 {
		return 1
	}
	return r
}

func (e *Evaluator) union(acqs []acquisition.Acquisition) (geometry.Polygon, error) {
	footprints := make([]geometry.Polygon, 0, len(acqs))
	for _, a := range acqs {
		if len(a.Footprint) > 0 {
			footprints = append(footprints, a.Footprint)
		}
	}
	return geometry.Union(footprints)
}

func (e *Evaluator) landArea(ctx context.Context, p geometry.Polygon) (float64, error) {
	area, err := e.mask.LandArea(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMaskLookup, err)
	}
	return area, nil
}

// ipfCount is the number of distinct known processing versions.
func ipfCount(acqs []acquisition.Acquisition) int {
	seen := make(map[string]struct{})
	for _, a := range acqs {
		if a.ProcessingVersion != "" {
			seen[a.ProcessingVersion] = struct{}{}
		}
	}
	return len(seen)
}
