package submit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robert-malhotra/ifg-pair-selector/internal/selector"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPair() *selector.CandidatePair {
	return &selector.CandidatePair{
		AOIID:      "AOI_test",
		Priority:   5,
		Track:      7,
		Key:        "2018-08-20",
		MasterAcqs: []string{"S1A_1", "S1A_2"},
		SlaveAcqs:  []string{"S1B_3"},
		StartTime:  time.Date(2018, 8, 20, 10, 41, 18, 0, time.UTC),
		EndTime:    time.Date(2018, 9, 1, 10, 41, 43, 0, time.UTC),
		MasterTime: time.Date(2018, 9, 1, 10, 41, 18, 0, time.UTC),
		SlaveTime:  time.Date(2018, 8, 20, 10, 41, 18, 0, time.UTC),
		DEMType:    "SRTM+v3",
	}
}

func TestIDHash(t *testing.T) {
	tests := []struct {
		priority int
		masters  []string
		slaves   []string
		dem      string
		want     string
	}{
		{5, []string{"S1A_1", "S1A_2"}, []string{"S1B_3"}, "SRTM+v3", "553acadd5f1830d2bd61a6d7124b22b7"},
		{0, []string{"m1"}, nil, "USGS3", "17171442e06540d46a435fb82a8c854a"},
	}
	for _, tt := range tests {
		got, err := IDHash(tt.priority, tt.masters, tt.slaves, tt.dem)
		if err != nil {
			t.Fatalf("IDHash() error: %v", err)
		}
		if got != tt.want {
			t.Errorf("IDHash(%d, %v, %v, %q) = %s, want %s", tt.priority, tt.masters, tt.slaves, tt.dem, got, tt.want)
		}
	}
}

func TestBuildJob(t *testing.T) {
	job, err := BuildJob(testPair(), JobData{
		Project:    "grfn",
		JobType:    "job-ifg-cfg",
		JobVersion: "v2",
		Priority:   3,
		OrbitFile:  "/work/orbits/S1A_OPER.EOF",
		MinMatch:   2,
	})
	if err != nil {
		t.Fatalf("BuildJob() error: %v", err)
	}
	want := "ifg-cfg_RM_M2S1_TN007_20180901T104118-20180820T104118-poeorb-9ea1"
	if job.ID != want {
		t.Errorf("ID = %s, want %s", job.ID, want)
	}
	if job.Queue != "grfn-job_worker-large" || job.Priority != 3 {
		t.Errorf("Queue = %q Priority = %d", job.Queue, job.Priority)
	}
	if job.Params.OrbitFile != "S1A_OPER.EOF" {
		t.Errorf("OrbitFile = %q, want base name", job.Params.OrbitFile)
	}
	if job.Params.AzimuthLooks != AzimuthLooks || !job.Params.PreciseOrbitOnly {
		t.Errorf("fixed params missing: %+v", job.Params)
	}
	if job.IDHash != "9ea1355f4a51e92ae71518b5436d3ae4" || job.Params.Priority != 3 {
		t.Errorf("IDHash = %s Params.Priority = %d, want job priority 3", job.IDHash, job.Params.Priority)
	}
	if job.Params.StartTime != "2018-08-20T10:41:18Z" {
		t.Errorf("StartTime = %q", job.Params.StartTime)
	}
}

func TestBuildJob_HashesJobPriority(t *testing.T) {
	pair := testPair()
	pair.Priority = 2
	job, err := BuildJob(pair, JobData{Priority: 5})
	if err != nil {
		t.Fatalf("BuildJob() error: %v", err)
	}
	want, _ := IDHash(5, pair.MasterAcqs, pair.SlaveAcqs, pair.DEMType)
	aoiHash, _ := IDHash(2, pair.MasterAcqs, pair.SlaveAcqs, pair.DEMType)
	if job.IDHash != want || job.IDHash == aoiHash {
		t.Errorf("IDHash = %s, want job priority hash %s", job.IDHash, want)
	}
	if job.IDHash != "553acadd5f1830d2bd61a6d7124b22b7" {
		t.Errorf("IDHash = %s", job.IDHash)
	}
	if !strings.HasSuffix(job.ID, "-poeorb-553a") {
		t.Errorf("ID = %s", job.ID)
	}
}

func TestHTTPSubmitter(t *testing.T) {
	var got Job
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"success": true, "message": "", "result": "mozart-123"}`))
	}))
	defer server.Close()

	job, _ := BuildJob(testPair(), JobData{Project: "grfn"})
	s := NewHTTPSubmitter(server.URL, 5*time.Second, 0).WithLogger(discardLogger())
	id, err := s.Submit(context.Background(), job)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if id != "mozart-123" {
		t.Errorf("id = %q", id)
	}
	if got.ID != job.ID || got.Params.Track != 7 {
		t.Errorf("server received %+v", got)
	}
}

func TestHTTPSubmitter_Retries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"success": true, "result": "ok"}`))
	}))
	defer server.Close()

	s := NewHTTPSubmitter(server.URL, 5*time.Second, 2).WithLogger(discardLogger())
	s.client.RetryWaitMin = time.Millisecond
	s.client.RetryWaitMax = time.Millisecond
	if _, err := s.Submit(context.Background(), Job{ID: "j"}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestHTTPSubmitter_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad request", http.StatusBadRequest, `{"message": "no such job type"}`},
		{"not successful", http.StatusOK, `{"success": false, "message": "queue closed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			s := NewHTTPSubmitter(server.URL, 5*time.Second, 0).WithLogger(discardLogger())
			_, err := s.Submit(context.Background(), Job{ID: "j"})
			if !errors.Is(err, ErrSubmit) {
				t.Errorf("Submit() error = %v, want ErrSubmit", err)
			}
		})
	}
}

type recordingSubmitter struct {
	ids  []string
	fail string
}

func (r *recordingSubmitter) Submit(_ context.Context, job Job) (string, error) {
	r.ids = append(r.ids, job.ID)
	if job.ID == r.fail {
		return "", ErrSubmit
	}
	return "orc-" + job.ID, nil
}

func TestSubmitAll(t *testing.T) {
	rec := &recordingSubmitter{fail: "b"}
	jobs := []Job{
		{ID: "a", IDHash: "1"},
		{ID: "b", IDHash: "2"},
		{ID: "a-again", IDHash: "1"},
		{ID: "c", IDHash: "3"},
	}
	out, err := SubmitAll(context.Background(), rec, jobs)
	if !errors.Is(err, ErrSubmit) {
		t.Errorf("SubmitAll() error = %v, want ErrSubmit", err)
	}
	if strings.Join(rec.ids, ",") != "a,b,c" {
		t.Errorf("submitted %v", rec.ids)
	}
	if len(out) != 4 || !out[2].Duplicate || out[1].Error == "" || out[3].OrchestratorID != "orc-c" {
		t.Errorf("outcomes = %+v", out)
	}
}

func TestLogSubmitter(t *testing.T) {
	id, err := LogSubmitter{Logger: discardLogger()}.Submit(context.Background(), Job{ID: "dry"})
	if err != nil || id != "dry" {
		t.Errorf("Submit() = %q, %v", id, err)
	}
}
