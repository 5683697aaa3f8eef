// Package submit turns candidate pairs into interferogram configuration jobs
// and hands them to the orchestrator.
package submit

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/robert-malhotra/ifg-pair-selector/internal/selector"
	"github.com/robert-malhotra/ifg-pair-selector/pkg/geojson"
)

// OrbitType is the orbit product the selector works from.
const OrbitType = "poeorb"

const (
	idTimeLayout = "20060102T150405"
	// idReference fills the R slot of job ids: the master date leads.
	idReference = "M"
)

// Processing parameters fixed for every standard product job.
const (
	AzimuthLooks   = 19
	RangeLooks     = 7
	FilterStrength = 0.5
	DiskUsage      = "300GB"
	SoftTimeLimit  = 86400
	TimeLimit      = 86700
)

// JobData is the run-wide metadata attached to every job.
type JobData struct {
	Project            string `json:"project"`
	JobType            string `json:"job_type"`
	JobVersion         string `json:"job_version"`
	Priority           int    `json:"job_priority"`
	OrbitFile          string `json:"orbit_file"`
	MinMatch           int    `json:"minMatch"`
	ThresholdPixel     int    `json:"threshold_pixel"`
	AcquisitionVersion string `json:"acquisition_version"`
	SelectedTracks     []int  `json:"selected_track_list"`
}

// Queue is the worker queue jobs of this project run on.
func (d JobData) Queue() string {
	if d.Project == "" {
		return "job_worker-large"
	}
	return d.Project + "-job_worker-large"
}

// Params are the per-pair job parameters.
type Params struct {
	AOIID            string            `json:"aoi_id"`
	Project          string            `json:"project"`
	MasterIDs        []string          `json:"master_ids"`
	SlaveIDs         []string          `json:"slave_ids"`
	Priority         int               `json:"priority"`
	Track            int               `json:"track"`
	DEMType          string            `json:"dem_type"`
	StartTime        string            `json:"starttime"`
	EndTime          string            `json:"endtime"`
	UnionGeoJSON     *geojson.Geometry `json:"union_geojson"`
	OrbitFile        string            `json:"orbit_file,omitempty"`
	MinMatch         int               `json:"minMatch"`
	ThresholdPixel   int               `json:"threshold_pixel"`
	AzimuthLooks     int               `json:"azimuth_looks"`
	RangeLooks       int               `json:"range_looks"`
	FilterStrength   float64           `json:"filter_strength"`
	PreciseOrbitOnly bool              `json:"precise_orbit_only"`
	AutoBBox         bool              `json:"auto_bbox"`
	DiskUsage        string            `json:"_disk_usage"`
	SoftTimeLimit    int               `json:"soft_time_limit"`
	TimeLimit        int               `json:"time_limit"`
	Degenerate       bool              `json:"degenerate,omitempty"`
}

// Job is one orchestrator submission.
type Job struct {
	ID       string `json:"id"`
	IDHash   string `json:"id_hash"`
	Type     string `json:"job_type"`
	Version  string `json:"job_version"`
	Queue    string `json:"queue"`
	Priority int    `json:"priority"`
	Params   Params `json:"params"`
}

// BuildJob assembles the job for one pair.
func BuildJob(pair *selector.CandidatePair, data JobData) (Job, error) {
	hash, err := IDHash(data.Priority, pair.MasterAcqs, pair.SlaveAcqs, pair.DEMType)
	if err != nil {
		return Job{}, err
	}

	orbit := ""
	if data.OrbitFile != "" {
		orbit = filepath.Base(data.OrbitFile)
	}

	return Job{
		ID:       JobID(pair, hash),
		IDHash:   hash,
		Type:     data.JobType,
		Version:  data.JobVersion,
		Queue:    data.Queue(),
		Priority: data.Priority,
		Params: Params{
			AOIID:            pair.AOIID,
			Project:          data.Project,
			MasterIDs:        pair.MasterAcqs,
			SlaveIDs:         pair.SlaveAcqs,
			Priority:         data.Priority,
			Track:            pair.Track,
			DEMType:          pair.DEMType,
			StartTime:        pair.StartTime.UTC().Format(time.RFC3339),
			EndTime:          pair.EndTime.UTC().Format(time.RFC3339),
			UnionGeoJSON:     pair.UnionGeoJSON,
			OrbitFile:        orbit,
			MinMatch:         data.MinMatch,
			ThresholdPixel:   data.ThresholdPixel,
			AzimuthLooks:     AzimuthLooks,
			RangeLooks:       RangeLooks,
			FilterStrength:   FilterStrength,
			PreciseOrbitOnly: true,
			AutoBBox:         true,
			DiskUsage:        DiskUsage,
			SoftTimeLimit:    SoftTimeLimit,
			TimeLimit:        TimeLimit,
			Degenerate:       pair.Degenerate,
		},
	}, nil
}

// JobID renders the ifg-cfg identifier of a pair: master and slave counts,
// track, the master and slave acquisition dates, orbit type and the first
// four hex digits of the id hash.
func JobID(pair *selector.CandidatePair, hash string) string {
	short := hash
	if len(short) > 4 {
		short = short[:4]
	}
	return fmt.Sprintf("ifg-cfg_R%s_M%dS%d_TN%03d_%s-%s-%s-%s",
		idReference,
		len(pair.MasterAcqs),
		len(pair.SlaveAcqs),
		pair.Track,
		pair.MasterTime.UTC().Format(idTimeLayout),
		pair.SlaveTime.UTC().Format(idTimeLayout),
		OrbitType,
		short,
	)
}

// IDHash is the md5 hex digest of the JSON array
// [job priority, "master ids", "slave ids", dem type], ids space separated and
// array items separated by ", ". Downstream deduplication compares these
// digests, so the encoding must stay byte for byte stable.
func IDHash(priority int, masters, slaves []string, demType string) (string, error) {
	items := []any{priority, strings.Join(masters, " "), strings.Join(slaves, " "), demType}
	parts := make([]string, len(items))
	for i, item := range items {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(item); err != nil {
			return "", fmt.Errorf("encode id hash input: %w", err)
		}
		parts[i] = strings.TrimSuffix(buf.String(), "\n")
	}
	sum := md5.Sum([]byte("[" + strings.Join(parts, ", ") + "]"))
	return hex.EncodeToString(sum[:]), nil
}
