// Package engine drives pair selection for a set of AOIs: grouping, coverage
// evaluation, selection and decision logging, in a fixed order of AOI, track
// and cluster.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/internal/aoi"
	"github.com/robert-malhotra/ifg-pair-selector/internal/coverage"
	"github.com/robert-malhotra/ifg-pair-selector/internal/geometry"
	"github.com/robert-malhotra/ifg-pair-selector/internal/grouper"
	"github.com/robert-malhotra/ifg-pair-selector/internal/observability"
	"github.com/robert-malhotra/ifg-pair-selector/internal/report"
	"github.com/robert-malhotra/ifg-pair-selector/internal/role"
	"github.com/robert-malhotra/ifg-pair-selector/internal/selector"
)

// Config is everything the engine needs. Evaluator and Log are required.
type Config struct {
	Mode      grouper.Mode
	Evaluator *coverage.Evaluator
	Policy    selector.Policy
	Log       *report.Log

	// OrbitFile labels log lines; only its base name is used.
	OrbitFile string

	Metrics *observability.Collector
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// Engine evaluates AOIs. It keeps no state between calls.
type Engine struct {
	cfg    Config
	group  *grouper.Grouper
	tracer trace.Tracer
	logger *slog.Logger
}

// New validates cfg and builds an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Evaluator == nil {
		return nil, errors.New("engine: evaluator is required")
	}
	if cfg.Log == nil {
		return nil, errors.New("engine: decision log is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.Tracer()
	}
	cfg.Evaluator = cfg.Evaluator.WithLogger(logger)

	return &Engine{
		cfg:    cfg,
		group:  grouper.New(cfg.Mode, logger),
		tracer: tracer,
		logger: logger,
	}, nil
}

// WithPolicy returns a copy of the engine applying a different selection
// policy, for runs that narrow the track allow-list.
func (e *Engine) WithPolicy(p selector.Policy) *Engine {
	out := *e
	out.cfg.Policy = p
	return &out
}

// Policy is the selection policy in effect.
func (e *Engine) Policy() selector.Policy {
	return e.cfg.Policy
}

// AOIInput is one AOI with the acquisitions found for it. Roles overrides the
// evaluator's role policy for this AOI when set.
type AOIInput struct {
	AOI          *aoi.AOI
	Acquisitions []acquisition.Acquisition
	Roles        role.Assigner
}

// AOISelection is the outcome for one AOI.
type AOISelection struct {
	AOIID      string
	Priority   int
	Pairs      []*selector.CandidatePair
	Evaluated  int
	Accepted   int
	Dropped    []string
	ReportPath string
}

// SelectAOI evaluates one AOI with the configured role policy.
func (e *Engine) SelectAOI(ctx context.Context, a *aoi.AOI, acqs []acquisition.Acquisition) (*AOISelection, error) {
	return e.selectAOI(ctx, AOIInput{AOI: a, Acquisitions: acqs})
}

func (e *Engine) selectAOI(ctx context.Context, in AOIInput) (_ *AOISelection, err error) {
	a := in.AOI
	if a == nil {
		return nil, fmt.Errorf("%w: nil aoi", aoi.ErrInvalidAOI)
	}

	ctx, span := e.tracer.Start(ctx, "engine.SelectAOI", trace.WithAttributes(
		attribute.String("aoi.id", a.ID),
		attribute.Int("aoi.priority", a.Priority),
		attribute.Int("acquisitions", len(in.Acquisitions)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := a.Validate(); err != nil {
		return nil, err
	}
	shape, err := a.Shape()
	if err != nil {
		return nil, err
	}

	logger := e.logger.With(slog.String("aoi", a.ID))
	if e.cfg.OrbitFile != "" {
		logger = logger.With(slog.String("orbit_file", filepath.Base(e.cfg.OrbitFile)))
	}

	if err := e.cfg.Log.Start(a.ID); err != nil {
		return nil, err
	}
	sel := &AOISelection{AOIID: a.ID, Priority: a.Priority, ReportPath: e.cfg.Log.Path(a.ID)}

	acqs, invalid := validAcquisitions(ctx, logger, in.Acquisitions)
	sel.Dropped = invalid
	if len(acqs) == 0 {
		logger.WarnContext(ctx, "no acquisitions found for aoi")
		return sel, nil
	}

	eval := e.cfg.Evaluator
	if in.Roles != nil {
		eval = eval.WithRoles(in.Roles)
	}

	g := e.group.Group(acqs)
	sel.Dropped = append(sel.Dropped, g.Dropped...)

	for _, t := range g.Tracks {
		if !e.cfg.Policy.TrackAllowed(t.Number) {
			logger.InfoContext(ctx, "track not selected, skipping", slog.Int("track", t.Number))
			for range t.Clusters {
				e.cfg.Metrics.ClusterEvaluated(observability.OutcomeSkipped)
			}
			continue
		}

		ref, err := eval.TrackReference(ctx, shape, g, t)
		if err != nil {
			return nil, err
		}

		for _, c := range t.SortedClusters() {
			pair, err := e.evaluateCluster(ctx, logger, eval, shape, g, ref, a, c)
			if err != nil {
				return nil, err
			}
			sel.Evaluated++
			if pair != nil {
				sel.Accepted++
				sel.Pairs = append(sel.Pairs, pair)
			}
		}
	}

	logger.InfoContext(ctx, "aoi evaluated",
		slog.Int("tracks", len(g.Tracks)),
		slog.Int("clusters", sel.Evaluated),
		slog.Int("pairs", len(sel.Pairs)),
		slog.Int("dropped", len(sel.Dropped)),
	)
	return sel, nil
}

// validAcquisitions drops acquisitions that fail Validate and returns the
// dropped ids alongside the kept records.
func validAcquisitions(ctx context.Context, logger *slog.Logger, acqs []acquisition.Acquisition) ([]acquisition.Acquisition, []string) {
	var dropped []string
	kept := make([]acquisition.Acquisition, 0, len(acqs))
	for _, a := range acqs {
		if err := a.Validate(); err != nil {
			logger.WarnContext(ctx, "skipping invalid acquisition",
				slog.String("acquisition", a.ID),
				slog.String("error", err.Error()),
			)
			dropped = append(dropped, a.ID)
			continue
		}
		kept = append(kept, a)
	}
	return kept, dropped
}

func (e *Engine) evaluateCluster(
	ctx context.Context,
	logger *slog.Logger,
	eval *coverage.Evaluator,
	shape *geometry.Shape,
	g *grouper.Grouping,
	ref *coverage.Reference,
	a *aoi.AOI,
	c *grouper.Cluster,
) (*selector.CandidatePair, error) {
	ctx, span := e.tracer.Start(ctx, "engine.EvaluateCluster", trace.WithAttributes(
		attribute.Int("track", c.Track),
		attribute.String("key", c.Key),
		attribute.Int("members", len(c.IDs)),
	))
	defer span.End()

	res, err := eval.Evaluate(ctx, shape, g, ref, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	d := e.cfg.Policy.Select(a.ID, a.Priority, res)
	pairs := 0
	if d.Pair != nil {
		pairs = 1
	}

	if err := e.cfg.Log.Append(a.ID, report.NewRow(res, d.BaselinePassed, pairs)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("ratio", res.Ratio),
		attribute.Bool("accepted", d.Pair != nil),
	)

	attrs := []any{
		slog.Int("track", c.Track),
		slog.String("key", c.Key),
		slog.Float64("ratio", res.Ratio),
		slog.Int("master", len(res.Master)),
		slog.Int("slave", len(res.Slave)),
	}
	if d.Pair == nil {
		e.cfg.Metrics.ClusterEvaluated(observability.OutcomeRejected)
		logger.InfoContext(ctx, "cluster rejected", append(attrs, slog.String("reason", d.Reason))...)
		return nil, nil
	}

	e.cfg.Metrics.ClusterEvaluated(observability.OutcomeAccepted)
	logger.InfoContext(ctx, "cluster accepted", attrs...)
	return d.Pair, nil
}

// Failure is an AOI aborted by an I/O fault.
type Failure struct {
	AOIID string
	Err   error
}

// Selection is the outcome of a multi-AOI run.
type Selection struct {
	AOIs     []*AOISelection
	Pairs    []*selector.CandidatePair
	Failures []Failure
	// Skipped lists AOIs rejected as invalid input.
	Skipped          []string
	OwnershipDropped int
}

// NothingSelected is the clean "no candidates" outcome: no failures and no
// pairs.
func (s *Selection) NothingSelected() bool {
	return len(s.Pairs) == 0 && len(s.Failures) == 0
}

// Err joins the per-AOI failures, or returns nil.
func (s *Selection) Err() error {
	errs := make([]error, 0, len(s.Failures))
	for _, f := range s.Failures {
		errs = append(errs, fmt.Errorf("aoi %s: %w", f.AOIID, f.Err))
	}
	return errors.Join(errs...)
}

// Select evaluates the AOIs in order. A failing AOI is recorded and the rest
// continue. Acquisitions claimed by several AOIs go to the highest priority
// one before the pairs are collected.
func (e *Engine) Select(ctx context.Context, inputs []AOIInput) *Selection {
	out := &Selection{}

	for _, in := range inputs {
		started := time.Now()
		sel, err := e.selectAOI(ctx, in)
		e.cfg.Metrics.AOIEvaluated(time.Since(started), err != nil && !errors.Is(err, aoi.ErrInvalidAOI))

		id := ""
		if in.AOI != nil {
			id = in.AOI.ID
		}
		switch {
		case errors.Is(err, aoi.ErrInvalidAOI):
			e.logger.WarnContext(ctx, "skipping invalid aoi", slog.String("aoi", id), slog.String("error", err.Error()))
			out.Skipped = append(out.Skipped, id)
		case err != nil:
			e.logger.ErrorContext(ctx, "aoi aborted", slog.String("aoi", id), slog.String("error", err.Error()))
			out.Failures = append(out.Failures, Failure{AOIID: id, Err: err})
		default:
			out.AOIs = append(out.AOIs, sel)
		}
	}

	sets := make([]selector.AOIPairs, len(out.AOIs))
	for i, sel := range out.AOIs {
		sets[i] = selector.AOIPairs{AOIID: sel.AOIID, Priority: sel.Priority, Pairs: sel.Pairs}
	}
	resolved, removed := selector.ResolveOwnership(sets)
	out.OwnershipDropped = removed
	for i, set := range resolved {
		out.AOIs[i].Pairs = set.Pairs
		out.Pairs = append(out.Pairs, set.Pairs...)
	}
	e.cfg.Metrics.PairsEmitted(len(out.Pairs), removed)

	if removed > 0 {
		e.logger.InfoContext(ctx, "pairs removed by acquisition ownership", slog.Int("removed", removed))
	}
	return out
}
