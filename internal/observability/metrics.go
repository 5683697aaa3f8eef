// Package observability provides the Prometheus metrics and OpenTelemetry
// tracing used by the engine, the pipeline and the HTTP service.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cluster outcomes used as the "outcome" label.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
)

// Collector bundles the service's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Clusters        *prometheus.CounterVec
	Pairs           prometheus.Counter
	OwnershipDrops  prometheus.Counter
	AOIFailures     prometheus.Counter
	AOIDuration     prometheus.Histogram
	Runs            *prometheus.CounterVec
	JobsSubmitted   *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDurations   *prometheus.HistogramVec
	CatalogRequests *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil. Metrics that are already registered are
// reused, so several collectors may share one registry.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.Clusters, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairsel_clusters_total",
		Help: "Clusters evaluated, labeled by outcome.",
	}, []string{"outcome"}), "pairsel_clusters_total"); err != nil {
		return nil, err
	}
	if c.Pairs, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairsel_candidate_pairs_total",
		Help: "Candidate pairs emitted after ownership resolution.",
	}), "pairsel_candidate_pairs_total"); err != nil {
		return nil, err
	}
	if c.OwnershipDrops, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairsel_ownership_dropped_pairs_total",
		Help: "Candidate pairs removed because another AOI owns one of their acquisitions.",
	}), "pairsel_ownership_dropped_pairs_total"); err != nil {
		return nil, err
	}
	if c.AOIFailures, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairsel_aoi_failures_total",
		Help: "AOIs aborted by an I/O fault.",
	}), "pairsel_aoi_failures_total"); err != nil {
		return nil, err
	}
	if c.AOIDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pairsel_aoi_evaluation_seconds",
		Help:    "Time spent evaluating one AOI.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "pairsel_aoi_evaluation_seconds"); err != nil {
		return nil, err
	}
	if c.Runs, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairsel_runs_total",
		Help: "Selection runs, labeled by trigger and result.",
	}, []string{"trigger", "result"}), "pairsel_runs_total"); err != nil {
		return nil, err
	}
	if c.JobsSubmitted, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairsel_jobs_submitted_total",
		Help: "Interferogram jobs handed to the orchestrator, labeled by result.",
	}, []string{"result"}), "pairsel_jobs_submitted_total"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairsel_http_requests_total",
		Help: "HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "pairsel_http_requests_total"); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pairsel_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "route"}), "pairsel_http_request_duration_seconds"); err != nil {
		return nil, err
	}
	if c.CatalogRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairsel_catalog_queries_total",
		Help: "Acquisition catalog queries, labeled by source and result.",
	}, []string{"source", "result"}), "pairsel_catalog_queries_total"); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// ClusterEvaluated counts one cluster outcome.
func (c *Collector) ClusterEvaluated(outcome string) {
	if c == nil {
		return
	}
	c.Clusters.WithLabelValues(outcome).Inc()
}

// AOIEvaluated records the duration of one AOI and whether it failed.
func (c *Collector) AOIEvaluated(d time.Duration, failed bool) {
	if c == nil {
		return
	}
	c.AOIDuration.Observe(d.Seconds())
	if failed {
		c.AOIFailures.Inc()
	}
}

// PairsEmitted counts emitted pairs and ownership drops.
func (c *Collector) PairsEmitted(emitted, dropped int) {
	if c == nil {
		return
	}
	c.Pairs.Add(float64(emitted))
	c.OwnershipDrops.Add(float64(dropped))
}

// RunFinished counts a pipeline run.
func (c *Collector) RunFinished(trigger, result string) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(trigger, result).Inc()
}

// JobSubmitted counts one job submission.
func (c *Collector) JobSubmitted(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	c.JobsSubmitted.WithLabelValues(result).Inc()
}

// CatalogQueried counts one catalog query.
func (c *Collector) CatalogQueried(source string, ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	c.CatalogRequests.WithLabelValues(source, result).Inc()
}

// HTTPObserved records one HTTP request.
func (c *Collector) HTTPObserved(method, route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, fmt.Sprint(code)).Inc()
	c.HTTPDurations.WithLabelValues(method, route).Observe(d.Seconds())
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
