// Package report writes the per-AOI decision log: one CSV row per evaluated
// cluster.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robert-malhotra/ifg-pair-selector/internal/coverage"
)

// ErrWrite wraps every decision log I/O failure. A failed write aborts the
// AOI being processed.
var ErrWrite = errors.New("decision log write failed")

// Header is the column layout of the decision log.
var Header = []string{
	"Date",
	"Track",
	"Track_POEORB_Land",
	"ACQ_Union_POEORB_Land",
	"ACQ_Union_Land",
	"RES",
	"WATER_MASK_PASSED",
	"Master_Ipf_Count",
	"Slave_Ipf_Count",
	"MATCHED",
	"BL_PASSED",
	"Candidate_Pairs",
	"Track_AOI_Intersection",
	"ACQ_POEORB_AOI_Intersection",
	"ACQ_AOI_Intersection",
}

// Row is one decision log entry.
type Row struct {
	Key            string
	Track          int
	TrackLand      float64
	ClusterLand    float64
	Ratio          float64
	Passed         bool
	MasterIPFCount int
	SlaveIPFCount  int
	Matched        bool
	BaselinePassed bool
	CandidatePairs int
	TrackAOIArea   float64
	ClusterAOIArea float64
}

// NewRow builds a row from a coverage result and the selector outcome.
func NewRow(res *coverage.Result, baselinePassed bool, candidatePairs int) Row {
	return Row{
		Key:            res.Key,
		Track:          res.Track,
		TrackLand:      res.TrackLand,
		ClusterLand:    res.ClusterLand,
		Ratio:          res.Ratio,
		Passed:         res.Passed,
		MasterIPFCount: res.MasterIPFCount,
		SlaveIPFCount:  res.SlaveIPFCount,
		Matched:        res.Matched(),
		BaselinePassed: baselinePassed,
		CandidatePairs: candidatePairs,
		TrackAOIArea:   res.TrackAOIArea,
		ClusterAOIArea: res.ClusterAOIArea,
	}
}

// Record renders the row in Header order. ACQ_Union_Land repeats the cluster
// land area and ACQ_POEORB_AOI_Intersection repeats the cluster-AOI area: the
// cluster union lies inside the track union, so the track, cluster and AOI
// intersection is the cluster-AOI intersection. Downstream readers expect both
// columns.
func (r Row) Record() []string {
	return []string{
		r.Key,
		strconv.Itoa(r.Track),
		formatFloat(r.TrackLand),
		formatFloat(r.ClusterLand),
		formatFloat(r.ClusterLand),
		formatFloat(r.Ratio),
		formatBool(r.Passed),
		strconv.Itoa(r.MasterIPFCount),
		strconv.Itoa(r.SlaveIPFCount),
		formatBool(r.Matched),
		formatBool(r.BaselinePassed),
		strconv.Itoa(r.CandidatePairs),
		formatFloat(r.TrackAOIArea),
		formatFloat(r.ClusterAOIArea),
		formatFloat(r.ClusterAOIArea),
	}
}

// Log writes RESULT_SUMMARY_<aoi>.csv files into a directory.
type Log struct {
	dir string
}

// NewLog creates a Log rooted at dir. The directory is created on first use.
func NewLog(dir string) *Log {
	return &Log{dir: dir}
}

// Path returns the decision log file for an AOI.
func (l *Log) Path(aoiID string) string {
	return filepath.Join(l.dir, FileName(aoiID))
}

// FileName is the decision log base name for an AOI.
func FileName(aoiID string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, aoiID)
	return "RESULT_SUMMARY_" + safe + ".csv"
}

// Start truncates the AOI's log and writes the header.
func (l *Log) Start(aoiID string) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrWrite, l.dir, err)
	}
	return l.write(aoiID, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, Header)
}

// Append adds one row. The file is opened and closed on every call so that a
// crash leaves every completed row on disk.
func (l *Log) Append(aoiID string, row Row) error {
	return l.write(aoiID, os.O_CREATE|os.O_APPEND|os.O_WRONLY, row.Record())
}

func (l *Log) write(aoiID string, flag int, record []string) (err error) {
	path := l.Path(aoiID)
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrWrite, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %v", ErrWrite, path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

// ReadAll returns the header and rows of an AOI's decision log.
func (l *Log) ReadAll(aoiID string) ([][]string, error) {
	f, err := os.Open(l.Path(aoiID))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}
