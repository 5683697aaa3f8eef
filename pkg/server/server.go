// Package server assembles the pair selector from configuration. The service
// binary, the CLI and embedding applications all build on it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/robert-malhotra/ifg-pair-selector/internal/aoi"
	"github.com/robert-malhotra/ifg-pair-selector/internal/api"
	"github.com/robert-malhotra/ifg-pair-selector/internal/asf"
	"github.com/robert-malhotra/ifg-pair-selector/internal/catalog"
	"github.com/robert-malhotra/ifg-pair-selector/internal/cmr"
	"github.com/robert-malhotra/ifg-pair-selector/internal/config"
	"github.com/robert-malhotra/ifg-pair-selector/internal/coverage"
	"github.com/robert-malhotra/ifg-pair-selector/internal/engine"
	"github.com/robert-malhotra/ifg-pair-selector/internal/grouper"
	"github.com/robert-malhotra/ifg-pair-selector/internal/observability"
	"github.com/robert-malhotra/ifg-pair-selector/internal/pipeline"
	"github.com/robert-malhotra/ifg-pair-selector/internal/report"
	"github.com/robert-malhotra/ifg-pair-selector/internal/selector"
	"github.com/robert-malhotra/ifg-pair-selector/internal/stac"
	"github.com/robert-malhotra/ifg-pair-selector/internal/submit"
	"github.com/robert-malhotra/ifg-pair-selector/internal/watermask"
)

// runCleanupInterval is how often expired runs are evicted.
const runCleanupInterval = 5 * time.Minute

// Options configures a Server. Config is required.
type Options struct {
	Config *config.Config

	// Source replaces the configured acquisition catalog when set.
	Source catalog.Source

	// OrbitFile is attached to jobs and log lines.
	OrbitFile string

	// Registerer receives the metrics. Default: prometheus.DefaultRegisterer
	Registerer prometheus.Registerer

	// Logger is the slog logger to use.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Server is an assembled pair selector.
type Server struct {
	cfg      *config.Config
	store    *aoi.Store
	pipeline *pipeline.Pipeline
	runs     *stac.RunStore[*pipeline.Result]
	metrics  *observability.Collector
	router   chi.Router
	cron     *cron.Cron
	now      func() time.Time
	logger   *slog.Logger
}

// New opens the AOI catalog and wires every component.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := observability.NewCollector(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	source := opts.Source
	if source == nil {
		if source, err = NewSource(cfg, logger); err != nil {
			return nil, err
		}
	}

	mask, err := NewMask(cfg.Mask, logger)
	if err != nil {
		return nil, err
	}

	mode, err := grouper.ParseMode(cfg.Selector.Grouping)
	if err != nil {
		return nil, err
	}

	log := report.NewLog(cfg.Report.Dir)
	eng, err := engine.New(engine.Config{
		Mode:      mode,
		Evaluator: coverage.NewEvaluator(mask, cfg.Selector.ThresholdPercent, nil),
		Policy:    PolicyFromConfig(cfg.Selector),
		Log:       log,
		OrbitFile: opts.OrbitFile,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := aoi.Open(cfg.AOI.DBPath)
	if err != nil {
		return nil, err
	}
	store.WithLogger(logger)

	data := JobDataFromConfig(cfg.Submit)
	data.OrbitFile = opts.OrbitFile
	p, err := pipeline.New(pipeline.Config{
		AOIs:      store,
		Source:    source,
		Engine:    eng,
		Submitter: NewSubmitter(cfg.Submit, logger),
		JobData:   data,
		AOITag:    cfg.Selector.AOITag,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	runs := stac.NewRunStore[*pipeline.Result](cfg.Selector.RunTTL, runCleanupInterval)
	handlers := api.NewHandlers(api.Config{
		AOIs:        store,
		Runner:      p,
		Runs:        runs,
		Reports:     log,
		Metrics:     metrics,
		BaseURL:     cfg.Server.BaseURL,
		Platform:    cfg.Selector.Platform,
		Window:      cfg.Selector.Window,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})

	return &Server{
		cfg:      cfg,
		store:    store,
		pipeline: p,
		runs:     runs,
		metrics:  metrics,
		router:   api.NewRouter(handlers, logger),
		now:      time.Now,
		logger:   logger,
	}, nil
}

// NewSource builds the configured acquisition catalog. Remote catalogs are
// wrapped so that missing processing versions are looked up on ASF.
func NewSource(cfg *config.Config, logger *slog.Logger) (catalog.Source, error) {
	asfClient := asf.NewClient(cfg.ASF.BaseURL, cfg.ASF.Timeout, cfg.ASF.Retries).WithLogger(logger)

	var source catalog.Source
	switch cfg.Catalog.Backend {
	case config.BackendCMR:
		cmrClient := cmr.NewClient(cfg.CMR.BaseURL, cfg.CMR.Provider, cfg.CMR.Timeout, cfg.CMR.Retries).WithLogger(logger)
		source = catalog.NewCMRSource(cmrClient, cfg.Catalog.MaxResults, logger)
		logger.Info("using CMR catalog", "base_url", cfg.CMR.BaseURL, "provider", cfg.CMR.Provider)
	case config.BackendRecords:
		records, err := catalog.LoadRecords(cfg.Catalog.RecordsPath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using records catalog", "path", cfg.Catalog.RecordsPath, "count", records.Len())
		return records, nil
	default:
		source = catalog.NewASFSource(asfClient, cfg.Catalog.MaxResults, logger)
		logger.Info("using ASF catalog", "base_url", cfg.ASF.BaseURL)
	}

	if cfg.Catalog.ResolveVersions {
		source = catalog.Enriched{Source: source, Resolver: catalog.NewVersionResolver(asfClient, logger)}
	}
	return source, nil
}

// NewMask loads the land mask. Without a path every footprint counts as land.
func NewMask(cfg config.MaskConfig, logger *slog.Logger) (watermask.Mask, error) {
	if cfg.Path == "" {
		logger.Warn("no land mask configured, treating all footprints as land")
		return watermask.AllLand{}, nil
	}
	m, err := watermask.LoadVectorMask(cfg.Path, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded land mask", "path", cfg.Path, "polygons", m.Len())
	return m, nil
}

// NewSubmitter returns the orchestrator client, or a logging stand-in for
// dry runs.
func NewSubmitter(cfg config.SubmitConfig, logger *slog.Logger) submit.Submitter {
	if cfg.DryRun {
		return submit.LogSubmitter{Logger: logger}
	}
	return submit.NewHTTPSubmitter(cfg.Endpoint, cfg.Timeout, cfg.Retries).WithLogger(logger)
}

// PolicyFromConfig maps the selector settings onto a policy.
func PolicyFromConfig(cfg config.SelectorConfig) selector.Policy {
	return selector.Policy{
		AllowedTracks:   cfg.AllowedTracks,
		RequireBaseline: cfg.RequireBaseline,
		MinSeparation:   cfg.MinSeparation,
		MaxSeparation:   cfg.MaxSeparation,
	}
}

// JobDataFromConfig maps the submission settings onto job metadata.
func JobDataFromConfig(cfg config.SubmitConfig) submit.JobData {
	return submit.JobData{
		Project:            cfg.Project,
		JobType:            cfg.JobType,
		JobVersion:         cfg.JobVersion,
		Priority:           cfg.Priority,
		MinMatch:           cfg.MinMatch,
		ThresholdPixel:     cfg.ThresholdPixel,
		AcquisitionVersion: cfg.AcquisitionVersion,
	}
}

// Router returns the chi.Router for mounting in another application.
func (s *Server) Router() chi.Router {
	return s.router
}

// Pipeline runs selections directly, bypassing HTTP.
func (s *Server) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Store is the AOI catalog.
func (s *Server) Store() *aoi.Store {
	return s.store
}

// Metrics is the metrics collector.
func (s *Server) Metrics() *observability.Collector {
	return s.metrics
}

// StartSchedule runs RunScheduled on the configured cron expression. It is a
// no-op when no schedule is configured.
func (s *Server) StartSchedule(ctx context.Context) error {
	if s.cfg.Selector.Schedule == "" {
		return nil
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.Selector.Schedule, func() {
		if _, err := s.RunScheduled(ctx); err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", s.cfg.Selector.Schedule, err)
	}
	s.cron.Start()
	s.logger.Info("scheduled runs enabled", "schedule", s.cfg.Selector.Schedule, "window", s.cfg.Selector.Window)
	return nil
}

// RunScheduled runs the selector over the window ending now and stores the
// result so it can be fetched over HTTP.
func (s *Server) RunScheduled(ctx context.Context) (*pipeline.Result, error) {
	end := s.now().UTC()
	res, err := s.pipeline.Run(ctx, pipeline.Request{
		Start:    end.Add(-s.cfg.Selector.Window),
		End:      end,
		Platform: s.cfg.Selector.Platform,
		Submit:   true,
		Trigger:  pipeline.TriggerCron,
	})
	if res != nil {
		s.runs.Put(res.ID, res)
	}
	return res, err
}

// Close stops the schedule, waiting for a running job, and releases the AOI
// catalog.
func (s *Server) Close() error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.runs.Stop()
	return s.store.Close()
}
