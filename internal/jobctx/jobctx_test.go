package jobctx

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const orbitURL = "s3://bucket/orbits/S1A_OPER_AUX_POEORB_OPOD_20180915T120754_V20180825T225942_20180827T005942"

const contextDoc = `{
  "project": "grfn",
  "job_priority": "5",
  "minMatch": 2,
  "dataset_version": "v2.0.0",
  "acquisition_version": "v2.0",
  "threshold_pixel": 5,
  "job_specification": {"id": "job-acquisition-selector:release-20190101"},
  "track_numbers": " 49, abc,64,49 ",
  "aoi_name": "AOI_a, AOI_b,AOI_a,",
  "starttime": "2018-08-25T22:59:42",
  "endtime": "2018-08-27T00:59:42",
  "platform": "Sentinel-1A",
  "localize_urls": [{"url": "` + orbitURL + `"}]
}`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(contextDoc), discardLogger())
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if c.Project != "grfn" || c.Priority != 5 || c.MinMatch != 2 || c.ThresholdPixel != 5 {
		t.Errorf("scalars = %+v", c)
	}
	if c.JobType != "job-acquisition-selector" || c.JobVersion != "release-20190101" {
		t.Errorf("job spec = %q %q", c.JobType, c.JobVersion)
	}
	if !reflect.DeepEqual(c.Tracks, []int{49, 64}) {
		t.Errorf("Tracks = %v", c.Tracks)
	}
	if !reflect.DeepEqual(c.AOIs, []string{"AOI_a", "AOI_b"}) {
		t.Errorf("AOIs = %v", c.AOIs)
	}
	if !c.Start.Equal(time.Date(2018, 8, 25, 22, 59, 42, 0, time.UTC)) {
		t.Errorf("Start = %v", c.Start)
	}
	if c.TemporalBaseline != DefaultTemporalBaseline {
		t.Errorf("TemporalBaseline = %d", c.TemporalBaseline)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `{`},
		{"no start", `{"endtime": "2018-01-01"}`},
		{"bad end", `{"starttime": "2018-01-01", "endtime": "soon"}`},
		{"reversed", `{"starttime": "2018-02-01", "endtime": "2018-01-01"}`},
		{"bad job spec", `{"starttime": "2018-01-01", "endtime": "2018-01-02", "job_specification": {"id": "noversion"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc), discardLogger()); !errors.Is(err, ErrInvalidContext) {
				t.Errorf("Parse() error = %v, want ErrInvalidContext", err)
			}
		})
	}
}

func TestParse_TemporalBaseline(t *testing.T) {
	c, err := Parse([]byte(`{"starttime": "2018-01-01", "endtime": "2018-01-02", "temporalBaseline": "36"}`), discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if c.TemporalBaseline != 36 {
		t.Errorf("TemporalBaseline = %d, want 36", c.TemporalBaseline)
	}
}

func TestOrbitDir(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{orbitURL, "S1A_OPER_AUX_POEORB_OPOD_20180915T120754_V20180825T225942_20180827T005942"},
		{"https://host/a/b/dir/", "dir"},
		{"localdir", "localdir"},
	}
	for _, tt := range tests {
		if got := OrbitDir(tt.in); got != tt.want {
			t.Errorf("OrbitDir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	orbitDir := filepath.Join(dir, OrbitDir(orbitURL))
	if err := os.Mkdir(orbitDir, 0o755); err != nil {
		t.Fatal(err)
	}
	eof := filepath.Join(orbitDir, "S1A_OPER_AUX_POEORB.EOF")
	for _, name := range []string{"readme.txt", filepath.Base(eof)} {
		if err := os.WriteFile(filepath.Join(orbitDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	file := filepath.Join(dir, "_context.json")
	if err := os.WriteFile(file, []byte(contextDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(file, discardLogger())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.OrbitFile != eof {
		t.Errorf("OrbitFile = %q, want %q", c.OrbitFile, eof)
	}
}

func TestLoad_MissingOrbitFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, OrbitDir(orbitURL)), 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(dir, "_context.json")
	if err := os.WriteFile(file, []byte(contextDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(file, discardLogger()); !errors.Is(err, ErrOrbitFileNotFound) {
		t.Errorf("Load() error = %v, want ErrOrbitFileNotFound", err)
	}
}
