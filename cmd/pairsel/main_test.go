package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robert-malhotra/ifg-pair-selector/internal/config"
	"github.com/robert-malhotra/ifg-pair-selector/internal/jobctx"
)

const recordsDoc = `[{
  "id": "acquisition-scene-a",
  "starttime": "2018-08-20T10:41:18",
  "endtime": "2018-08-20T10:41:45",
  "location": {"type": "Polygon", "coordinates": [[[0,0],[0,1],[1,1],[1,0],[0,0]]]},
  "metadata": {"track_number": 42, "platform": "Sentinel-1A", "identifier": "scene-a"}
}]`

const aoisDoc = `[
  {"id": "AOI_a", "priority": 3, "location": {"type": "Polygon", "coordinates": [[[0,0],[0,1],[1,1],[1,0],[0,0]]]}},
  {"id": "AOI_broken", "location": {"type": "Point", "coordinates": [0, 0]}}
]`

const contextDoc = `{
  "project": "grfn",
  "job_priority": 4,
  "track_numbers": "42",
  "aoi_name": "AOI_a",
  "starttime": "2018-08-19T00:00:00",
  "endtime": "2018-08-21T00:00:00"
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AOI_DB_PATH", filepath.Join(dir, "aoi.db"))
	t.Setenv("REPORT_DIR", filepath.Join(dir, "reports"))
	t.Setenv("CATALOG_RESOLVE_VERSIONS", "false")
	t.Setenv("SUBMIT_DRY_RUN", "true")
	return dir
}

func TestImportAndRun(t *testing.T) {
	dir := testEnv(t)
	envFile := filepath.Join(dir, "missing.env")

	out, err := execute(t, "aoi", "import", writeFile(t, dir, "aois.json", aoisDoc), "--env", envFile)
	if err != nil {
		t.Fatalf("aoi import error: %v", err)
	}
	if !strings.Contains(out, "imported 1 aois (1 skipped)") {
		t.Errorf("import output = %q", out)
	}

	out, err = execute(t, "aoi", "list", "--env", envFile)
	if err != nil {
		t.Fatalf("aoi list error: %v", err)
	}
	if !strings.Contains(out, `"id": "AOI_a"`) {
		t.Errorf("list output = %q", out)
	}

	out, err = execute(t, "run",
		"--env", envFile,
		"-c", writeFile(t, dir, "_context.json", contextDoc),
		"--records", writeFile(t, dir, "records.json", recordsDoc),
		"--submit",
	)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	var got runOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("run output is not json: %v\n%s", err, out)
	}
	if got.NothingSelected || len(got.Pairs) != 1 {
		t.Fatalf("pairs = %+v", got.Pairs)
	}
	if p := got.Pairs[0]; p.AOIID != "AOI_a" || p.Track != 42 {
		t.Errorf("pair = %+v", p)
	}
	if len(got.Jobs) != 1 || got.Jobs[0].Error != "" {
		t.Errorf("jobs = %+v", got.Jobs)
	}
	if !strings.Contains(got.Jobs[0].JobID, "_TN042_") {
		t.Errorf("job id = %q", got.Jobs[0].JobID)
	}
}

func TestImport_Strict(t *testing.T) {
	dir := testEnv(t)
	_, err := execute(t, "aoi", "import", "--strict", "--env", filepath.Join(dir, "missing.env"),
		writeFile(t, dir, "aois.json", aoisDoc))
	if err == nil {
		t.Fatal("strict import accepted an invalid document")
	}
	if _, err := os.Stat(filepath.Join(dir, "aoi.db")); !os.IsNotExist(err) {
		t.Error("strict import opened the catalog")
	}
}

func TestRun_NothingSelected(t *testing.T) {
	dir := testEnv(t)
	out, err := execute(t, "run",
		"--env", filepath.Join(dir, "missing.env"),
		"-c", writeFile(t, dir, "_context.json", contextDoc),
		"--records", writeFile(t, dir, "records.json", `[]`),
	)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !strings.Contains(out, `"nothing_selected": true`) {
		t.Errorf("output = %s", out)
	}
}

func TestApplyContext(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		jc      jobctx.Context
		wantSep time.Duration
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name:    "baseline bounds separation",
			jc:      jobctx.Context{TemporalBaseline: 24, Priority: 2},
			wantSep: 24 * 24 * time.Hour,
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Submit.Priority != 2 {
					t.Errorf("Priority = %d", cfg.Submit.Priority)
				}
			},
		},
		{
			name:    "configured separation wins",
			cfg:     config.Config{Selector: config.SelectorConfig{MaxSeparation: time.Hour}},
			jc:      jobctx.Context{TemporalBaseline: 24},
			wantSep: time.Hour,
		},
		{
			name: "job metadata",
			cfg:  config.Config{Submit: config.SubmitConfig{Project: "default", MinMatch: 1}},
			jc: jobctx.Context{
				Project: "grfn", JobType: "job-ifg", JobVersion: "v1", MinMatch: 3,
				ThresholdPixel: 7, AcquisitionVersion: "v2.0", Platform: "Sentinel-1B",
			},
			check: func(t *testing.T, cfg *config.Config) {
				s := cfg.Submit
				if s.Project != "grfn" || s.JobType != "job-ifg" || s.JobVersion != "v1" ||
					s.MinMatch != 3 || s.ThresholdPixel != 7 || s.AcquisitionVersion != "v2.0" {
					t.Errorf("Submit = %+v", s)
				}
				if cfg.Selector.Platform != "Sentinel-1B" {
					t.Errorf("Platform = %q", cfg.Selector.Platform)
				}
			},
		},
		{
			name: "empty context keeps config",
			cfg:  config.Config{Submit: config.SubmitConfig{Project: "default", MinMatch: 1}},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Submit.Project != "default" || cfg.Submit.MinMatch != 1 {
					t.Errorf("Submit = %+v", cfg.Submit)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			applyContext(&cfg, &tt.jc)
			if cfg.Selector.MaxSeparation != tt.wantSep {
				t.Errorf("MaxSeparation = %s, want %s", cfg.Selector.MaxSeparation, tt.wantSep)
			}
			if tt.check != nil {
				tt.check(t, &cfg)
			}
		})
	}
}
