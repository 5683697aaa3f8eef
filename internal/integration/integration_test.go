//go:build integration

// Package integration runs the catalog sources and a full selection against
// the live ASF and CMR services.
// Run with: go test -v ./internal/integration -tags=integration
package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
	"github.com/robert-malhotra/ifg-pair-selector/internal/aoi"
	"github.com/robert-malhotra/ifg-pair-selector/internal/asf"
	"github.com/robert-malhotra/ifg-pair-selector/internal/catalog"
	"github.com/robert-malhotra/ifg-pair-selector/internal/cmr"
	"github.com/robert-malhotra/ifg-pair-selector/internal/config"
	"github.com/robert-malhotra/ifg-pair-selector/internal/pipeline"
	"github.com/robert-malhotra/ifg-pair-selector/pkg/geojson"
	"github.com/robert-malhotra/ifg-pair-selector/pkg/server"
)

// Los Angeles basin, a well covered Sentinel-1A target in 2018.
var (
	windowStart = time.Date(2018, 8, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2018, 8, 13, 0, 0, 0, 0, time.UTC)
	laRing      = [][][]float64{{{-118.6, 33.7}, {-117.8, 33.7}, {-117.8, 34.3}, {-118.6, 34.3}, {-118.6, 33.7}}}
)

const timeout = 60 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAOI(t *testing.T) *aoi.AOI {
	t.Helper()
	loc, err := geojson.NewPolygon(laRing)
	if err != nil {
		t.Fatal(err)
	}
	return &aoi.AOI{ID: "AOI_los_angeles", Priority: 5, Location: loc}
}

func query(t *testing.T) catalog.Query {
	return catalog.Query{AOI: testAOI(t), Start: windowStart, End: windowEnd, Platform: "Sentinel-1A"}
}

func checkAcquisitions(t *testing.T, source string, acqs []acquisition.Acquisition) {
	t.Helper()
	if len(acqs) == 0 {
		t.Fatalf("%s returned no acquisitions", source)
	}
	seen := make(map[string]bool)
	for _, a := range acqs {
		if seen[a.Identifier] {
			t.Errorf("%s returned %s twice", source, a.Identifier)
		}
		seen[a.Identifier] = true
		if a.TrackNumber <= 0 {
			t.Errorf("%s: %s has no track", source, a.Identifier)
		}
		if len(a.Footprint) == 0 {
			t.Errorf("%s: %s has no footprint", source, a.Identifier)
		}
		if a.StartTime.Before(windowStart.Add(-time.Hour)) || a.StartTime.After(windowEnd.Add(time.Hour)) {
			t.Errorf("%s: %s starts at %v, outside the window", source, a.Identifier, a.StartTime)
		}
	}
	t.Logf("%s returned %d acquisitions", source, len(acqs))
}

func TestASFSource(t *testing.T) {
	client := asf.NewClient("https://api.daac.asf.alaska.edu", timeout, 2)
	src := catalog.NewASFSource(client, 250, discardLogger())

	acqs, err := src.Acquisitions(context.Background(), query(t))
	if err != nil {
		t.Fatalf("Acquisitions() error: %v", err)
	}
	checkAcquisitions(t, src.Name(), acqs)

	t.Run("version lookup", func(t *testing.T) {
		resolved := catalog.NewVersionResolver(client, discardLogger()).Resolve(context.Background(), acqs[:1])
		if resolved[0].ProcessingVersion == "" {
			t.Errorf("no processing version for %s", resolved[0].Identifier)
		}
	})
}

func TestCMRSource(t *testing.T) {
	client := cmr.NewClient("https://cmr.earthdata.nasa.gov/search", "ASF", timeout, 2)
	src := catalog.NewCMRSource(client, 250, discardLogger())

	acqs, err := src.Acquisitions(context.Background(), query(t))
	if err != nil {
		t.Fatalf("Acquisitions() error: %v", err)
	}
	checkAcquisitions(t, src.Name(), acqs)
}

// Both catalogs index the same granules; their answers should largely agree.
func TestBackendsAgree(t *testing.T) {
	ctx := context.Background()
	asfAcqs, err := catalog.NewASFSource(asf.NewClient("https://api.daac.asf.alaska.edu", timeout, 2), 250, discardLogger()).
		Acquisitions(ctx, query(t))
	if err != nil {
		t.Fatalf("asf: %v", err)
	}
	cmrAcqs, err := catalog.NewCMRSource(cmr.NewClient("https://cmr.earthdata.nasa.gov/search", "ASF", timeout, 2), 250, discardLogger()).
		Acquisitions(ctx, query(t))
	if err != nil {
		t.Fatalf("cmr: %v", err)
	}

	inCMR := make(map[string]bool, len(cmrAcqs))
	for _, a := range cmrAcqs {
		inCMR[a.Identifier] = true
	}
	shared := 0
	for _, a := range asfAcqs {
		if inCMR[a.Identifier] {
			shared++
		}
	}
	t.Logf("asf=%d cmr=%d shared=%d", len(asfAcqs), len(cmrAcqs), shared)
	if shared == 0 {
		t.Error("catalogs share no acquisitions")
	}
}

func TestSelection(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CATALOG_BACKEND", config.BackendASF)
	t.Setenv("AOI_DB_PATH", filepath.Join(dir, "aoi.db"))
	t.Setenv("REPORT_DIR", filepath.Join(dir, "reports"))
	if os.Getenv("MASK_PATH") == "" {
		t.Log("MASK_PATH not set, every footprint counts as land")
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error: %v", err)
	}
	srv, err := server.New(server.Options{
		Config:     cfg,
		Registerer: prometheus.NewRegistry(),
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("server.New() error: %v", err)
	}
	defer srv.Close()

	ctx := context.Background()
	if err := srv.Store().Upsert(ctx, testAOI(t)); err != nil {
		t.Fatal(err)
	}

	res, err := srv.Pipeline().Run(ctx, pipeline.Request{
		Start:    windowStart,
		End:      windowEnd,
		Platform: "Sentinel-1A",
		Trigger:  pipeline.TriggerCLI,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if err := res.Selection.Err(); err != nil {
		t.Fatalf("selection failures: %v", err)
	}
	if res.NothingSelected() {
		t.Fatal("no pairs selected over a covered AOI")
	}
	for _, p := range res.Selection.Pairs {
		t.Logf("%s track %d: %d master / %d slave", p.Key, p.Track, len(p.MasterAcqs), len(p.SlaveAcqs))
	}
}
