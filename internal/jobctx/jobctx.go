// Package jobctx loads the _context.json handed to a selection job by the
// orchestrator.
package jobctx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/robert-malhotra/ifg-pair-selector/internal/translate"
)

// DefaultTemporalBaseline is used when the context names none, in days.
const DefaultTemporalBaseline = 24

// OrbitFileExt is the extension of precise orbit files.
const OrbitFileExt = ".EOF"

var (
	// ErrInvalidContext marks a context file missing required fields.
	ErrInvalidContext = errors.New("invalid job context")

	// ErrOrbitFileNotFound is returned when the localized orbit directory
	// holds no orbit file.
	ErrOrbitFileNotFound = errors.New("orbit file not found")
)

// Context is the decoded job context.
type Context struct {
	Project            string
	Priority           int
	MinMatch           int
	DatasetVersion     string
	AcquisitionVersion string
	ThresholdPixel     int
	JobType            string
	JobVersion         string

	// Tracks is the track allow-list; empty allows every track.
	Tracks []int
	// AOIs overrides the active-AOI query when not empty.
	AOIs []string

	Start    time.Time
	End      time.Time
	Platform string

	// OrbitURL is the first localized url; its base name is the local
	// directory holding the orbit file.
	OrbitURL  string
	OrbitFile string

	// TemporalBaseline in days.
	TemporalBaseline int
}

// Load reads and parses a context file, then locates the orbit file in the
// localized directory next to it.
func Load(file string, logger *slog.Logger) (*Context, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read job context: %w", err)
	}
	c, err := Parse(data, logger)
	if err != nil {
		return nil, err
	}
	if c.OrbitURL == "" {
		return c, nil
	}
	if c.OrbitFile, err = FindOrbitFile(filepath.Join(filepath.Dir(file), OrbitDir(c.OrbitURL))); err != nil {
		return nil, err
	}
	logger.Info("orbit file located", slog.String("orbit_file", c.OrbitFile))
	return c, nil
}

// Parse decodes a context document. Malformed track numbers are skipped and
// AOI names are de-duplicated keeping first occurrence.
func Parse(data []byte, logger *slog.Logger) (*Context, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidContext)
	}
	doc := gjson.ParseBytes(data)

	c := &Context{
		Project:            doc.Get("project").String(),
		Priority:           int(doc.Get("job_priority").Int()),
		MinMatch:           int(doc.Get("minMatch").Int()),
		DatasetVersion:     doc.Get("dataset_version").String(),
		AcquisitionVersion: doc.Get("acquisition_version").String(),
		ThresholdPixel:     int(doc.Get("threshold_pixel").Int()),
		Platform:           doc.Get("platform").String(),
		OrbitURL:           doc.Get("localize_urls.0.url").String(),
		TemporalBaseline:   DefaultTemporalBaseline,
	}

	if spec := doc.Get("job_specification.id").String(); spec != "" {
		jobType, version, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("%w: job_specification.id %q is not type:version", ErrInvalidContext, spec)
		}
		c.JobType, c.JobVersion = jobType, version
	}

	if tb := doc.Get("temporalBaseline"); tb.Exists() && tb.Type != gjson.Null {
		c.TemporalBaseline = int(tb.Int())
	}

	var err error
	if c.Start, err = requiredTime(doc, "starttime"); err != nil {
		return nil, err
	}
	if c.End, err = requiredTime(doc, "endtime"); err != nil {
		return nil, err
	}
	if c.End.Before(c.Start) {
		return nil, fmt.Errorf("%w: endtime before starttime", ErrInvalidContext)
	}

	c.Tracks = ParseTracks(doc.Get("track_numbers").String(), logger)
	c.AOIs = ParseNames(doc.Get("aoi_name").String())
	return c, nil
}

// ParseTracks splits a comma separated track list. Entries that are not
// integers are logged and skipped.
func ParseTracks(s string, logger *slog.Logger) []int {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			logger.Warn("ignoring track number", slog.String("value", f))
			continue
		}
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// ParseNames splits a comma separated list, trimming and de-duplicating.
func ParseNames(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// OrbitDir is the local directory name a localized url unpacks into.
func OrbitDir(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(strings.TrimSuffix(u.Path, "/"))
	}
	return path.Base(strings.TrimSuffix(rawURL, "/"))
}

// FindOrbitFile returns the orbit file in dir. When several exist the last in
// lexical order wins.
func FindOrbitFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOrbitFileNotFound, err)
	}
	found := ""
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), OrbitFileExt) {
			found = filepath.Join(dir, e.Name())
		}
	}
	if found == "" {
		return "", fmt.Errorf("%w in %s", ErrOrbitFileNotFound, dir)
	}
	return found, nil
}

func requiredTime(doc gjson.Result, field string) (time.Time, error) {
	s := strings.TrimSpace(doc.Get(field).String())
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing %s", ErrInvalidContext, field)
	}
	t, err := translate.ParseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalidContext, field, err)
	}
	return t, nil
}
