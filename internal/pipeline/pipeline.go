// Package pipeline runs one end-to-end selection: resolve AOIs, query the
// acquisition catalog, evaluate, and optionally submit jobs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robert-malhotra/ifg-pair-selector/internal/aoi"
	"github.com/robert-malhotra/ifg-pair-selector/internal/catalog"
	"github.com/robert-malhotra/ifg-pair-selector/internal/engine"
	"github.com/robert-malhotra/ifg-pair-selector/internal/observability"
	"github.com/robert-malhotra/ifg-pair-selector/internal/submit"
)

// Run triggers, used as metric labels.
const (
	TriggerAPI  = "api"
	TriggerCron = "cron"
	TriggerCLI  = "cli"
)

// Run results, used as metric labels.
const (
	ResultOK      = "ok"
	ResultNothing = "nothing_selected"
	ResultFailed  = "failed"
)

// AOIStore is the AOI catalog as seen by a run.
type AOIStore interface {
	Active(ctx context.Context, start, end time.Time, tag string) ([]*aoi.AOI, error)
	ByIDs(ctx context.Context, ids []string) ([]*aoi.AOI, error)
}

// Request describes one run.
type Request struct {
	Start    time.Time
	End      time.Time
	Platform string
	// AOIIDs replaces the active-AOI query when not empty.
	AOIIDs []string
	// Tracks narrows the track allow-list when not empty.
	Tracks  []int
	Submit  bool
	Trigger string
}

// Validate checks the window.
func (r Request) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRequest)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: end before start", ErrInvalidRequest)
	}
	return nil
}

// ErrInvalidRequest marks a malformed run request.
var ErrInvalidRequest = errors.New("invalid run request")

// Result is the outcome of a run.
type Result struct {
	ID        string            `json:"id"`
	Request   Request           `json:"-"`
	Started   time.Time         `json:"started"`
	Finished  time.Time         `json:"finished"`
	AOIs      []string          `json:"aois"`
	Selection *engine.Selection `json:"-"`
	Jobs      []submit.Outcome  `json:"jobs,omitempty"`
}

// NothingSelected reports the clean early exit: no AOI failed and no pair was
// selected.
func (r *Result) NothingSelected() bool {
	return r.Selection == nil || r.Selection.NothingSelected()
}

// Status is the metric label for the run.
func (r *Result) Status() string {
	switch {
	case r.Selection != nil && len(r.Selection.Failures) > 0:
		return ResultFailed
	case r.NothingSelected():
		return ResultNothing
	default:
		return ResultOK
	}
}

// Config wires a Pipeline.
type Config struct {
	AOIs      AOIStore
	Source    catalog.Source
	Engine    *engine.Engine
	Submitter submit.Submitter
	JobData   submit.JobData
	// AOITag restricts the active-AOI query to AOIs carrying it.
	AOITag  string
	Metrics *observability.Collector
	Logger  *slog.Logger
}

// Pipeline executes runs. Runs are serialized so two runs never write the
// same decision log at once.
type Pipeline struct {
	mu     sync.Mutex
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.AOIs == nil || cfg.Source == nil || cfg.Engine == nil {
		return nil, errors.New("pipeline: aoi store, acquisition source and engine are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Submitter == nil {
		cfg.Submitter = submit.LogSubmitter{Logger: logger}
	}
	return &Pipeline{cfg: cfg, logger: logger}, nil
}

// Run executes one request. The returned error covers failures that stop the
// whole run; per-AOI failures are reported in Result.Selection.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if req.Trigger == "" {
		req.Trigger = TriggerAPI
	}
	res = &Result{ID: uuid.NewString(), Request: req, Started: time.Now().UTC()}
	logger := p.logger.With(slog.String("run", res.ID), slog.String("trigger", req.Trigger))

	defer func() {
		res.Finished = time.Now().UTC()
		status := res.Status()
		if err != nil {
			status = ResultFailed
		}
		p.cfg.Metrics.RunFinished(req.Trigger, status)
	}()

	if err := req.Validate(); err != nil {
		return res, err
	}
	tracks, err := narrowTracks(p.cfg.Engine.Policy().AllowedTracks, req.Tracks)
	if err != nil {
		return res, err
	}
	req.Tracks = tracks
	res.Request.Tracks = tracks

	aois, err := p.resolveAOIs(ctx, req)
	if err != nil {
		return res, err
	}
	for _, a := range aois {
		res.AOIs = append(res.AOIs, a.ID)
	}
	if len(aois) == 0 {
		logger.InfoContext(ctx, "no active aois for window",
			slog.Time("start", req.Start),
			slog.Time("end", req.End),
		)
		res.Selection = &engine.Selection{}
		return res, nil
	}

	eng := p.cfg.Engine
	if len(req.Tracks) > 0 {
		policy := eng.Policy()
		policy.AllowedTracks = req.Tracks
		eng = eng.WithPolicy(policy)
	}

	inputs := make([]engine.AOIInput, 0, len(aois))
	var catalogFailures []engine.Failure
	for _, a := range aois {
		acqs, qerr := p.cfg.Source.Acquisitions(ctx, catalog.Query{
			AOI:      a,
			Start:    req.Start,
			End:      req.End,
			Platform: req.Platform,
			Tracks:   req.Tracks,
		})
		p.cfg.Metrics.CatalogQueried(p.cfg.Source.Name(), qerr == nil)
		if qerr != nil {
			logger.ErrorContext(ctx, "acquisition query failed",
				slog.String("aoi", a.ID),
				slog.String("source", p.cfg.Source.Name()),
				slog.String("error", qerr.Error()),
			)
			catalogFailures = append(catalogFailures, engine.Failure{AOIID: a.ID, Err: qerr})
			continue
		}
		logger.InfoContext(ctx, "acquisitions found", slog.String("aoi", a.ID), slog.Int("count", len(acqs)))
		inputs = append(inputs, engine.AOIInput{AOI: a, Acquisitions: acqs})
	}

	res.Selection = eng.Select(ctx, inputs)
	res.Selection.Failures = append(res.Selection.Failures, catalogFailures...)

	logger.InfoContext(ctx, "selection finished",
		slog.Int("aois", len(aois)),
		slog.Int("pairs", len(res.Selection.Pairs)),
		slog.Int("failures", len(res.Selection.Failures)),
		slog.Int("skipped", len(res.Selection.Skipped)),
	)

	if req.Submit && len(res.Selection.Pairs) > 0 {
		res.Jobs, err = p.submit(ctx, req, res)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// narrowTracks intersects the requested tracks with the configured allow-list,
// keeping the request order. An empty allow-list admits every requested track.
func narrowTracks(allowed, requested []int) ([]int, error) {
	if len(requested) == 0 || len(allowed) == 0 {
		return requested, nil
	}
	var out []int
	for _, t := range requested {
		if slices.Contains(allowed, t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: tracks %v are outside the allow-list %v", ErrInvalidRequest, requested, allowed)
	}
	return out, nil
}

func (p *Pipeline) resolveAOIs(ctx context.Context, req Request) ([]*aoi.AOI, error) {
	if len(req.AOIIDs) > 0 {
		return p.cfg.AOIs.ByIDs(ctx, req.AOIIDs)
	}
	return p.cfg.AOIs.Active(ctx, req.Start, req.End, p.cfg.AOITag)
}

func (p *Pipeline) submit(ctx context.Context, req Request, res *Result) ([]submit.Outcome, error) {
	data := p.cfg.JobData
	if len(req.Tracks) > 0 {
		data.SelectedTracks = req.Tracks
	}

	jobs := make([]submit.Job, 0, len(res.Selection.Pairs))
	for _, pair := range res.Selection.Pairs {
		job, err := submit.BuildJob(pair, data)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	outcomes, err := submit.SubmitAll(ctx, p.cfg.Submitter, jobs)
	for _, o := range outcomes {
		if !o.Duplicate {
			p.cfg.Metrics.JobSubmitted(o.Error == "")
		}
	}
	if err != nil {
		return outcomes, fmt.Errorf("submit jobs: %w", err)
	}
	return outcomes, nil
}
