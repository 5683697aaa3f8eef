package observability

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.ClusterEvaluated(OutcomeAccepted)
	c.ClusterEvaluated(OutcomeAccepted)
	c.ClusterEvaluated(OutcomeRejected)
	c.PairsEmitted(3, 1)
	c.AOIEvaluated(20*time.Millisecond, true)
	c.RunFinished("api", "ok")
	c.JobSubmitted(false)

	if got := testutil.ToFloat64(c.Clusters.WithLabelValues(OutcomeAccepted)); got != 2 {
		t.Errorf("accepted clusters = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Pairs); got != 3 {
		t.Errorf("pairs = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.OwnershipDrops); got != 1 {
		t.Errorf("ownership drops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.AOIFailures); got != 1 {
		t.Errorf("aoi failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.JobsSubmitted.WithLabelValues("error")); got != 1 {
		t.Errorf("failed jobs = %v, want 1", got)
	}
}

func TestCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}
	second.Pairs.Inc()
	if got := testutil.ToFloat64(first.Pairs); got != 1 {
		t.Errorf("shared counter = %v, want 1", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ClusterEvaluated(OutcomeSkipped)
	c.PairsEmitted(1, 1)
	c.HTTPObserved("GET", "/health", 200, time.Millisecond)
	if c.Handler() == nil {
		t.Error("nil collector should still serve the default registry")
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	c.HTTPObserved("GET", "/aois", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "pairsel_http_requests_total") {
		t.Error("metrics output missing pairsel_http_requests_total")
	}
}

func TestInitTracing(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitTracing(ctx, TracingConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("InitTracing(disabled): %v", err)
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("noop shutdown: %v", err)
	}

	var buf bytes.Buffer
	shutdown, err = InitTracing(ctx, TracingConfig{Enabled: true, ServiceName: "test", Exporter: "stdout", Writer: &buf}, nil)
	if err != nil {
		t.Fatalf("InitTracing(stdout): %v", err)
	}
	_, span := Tracer().Start(ctx, "unit")
	span.End()
	ShutdownWithTimeout(ctx, shutdown, nil)
	if !strings.Contains(buf.String(), "unit") {
		t.Error("stdout exporter did not receive the span")
	}

	if _, err := InitTracing(ctx, TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Error("unknown exporter should fail")
	}
}
