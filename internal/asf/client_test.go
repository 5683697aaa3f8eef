package asf

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func feature(fileID, level, pge string) Feature {
	orbit, track := 23679, 42
	return Feature{
		Type: "Feature",
		Geometry: &Geometry{
			Type:        "Polygon",
			Coordinates: json.RawMessage(`[[[-122.0, 37.0], [-121.0, 37.0], [-121.0, 38.0], [-122.0, 38.0], [-122.0, 37.0]]]`),
		},
		Properties: Properties{
			SceneName:       "S1A_IW_SLC__1SDV_20180820T104118_20180820T104145_023304_0288C1_2976",
			FileID:          fileID,
			Platform:        "Sentinel-1A",
			ProcessingLevel: level,
			PGEVersion:      pge,
			AbsoluteOrbit:   &orbit,
			RelativeOrbit:   &track,
			StartTime:       "2018-08-20T10:41:18.000000",
			StopTime:        "2018-08-20T10:41:45.000000",
		},
	}
}

func serve(t *testing.T, features ...Feature) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/search/param" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(GeoJSONResponse{Type: "FeatureCollection", Features: features})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Search(t *testing.T) {
	srv := serve(t, feature("a-SLC", "SLC", "002.91"))
	c := NewClient(srv.URL, 5*time.Second, 0)

	res, err := c.Search(context.Background(), SearchParams{Dataset: []string{"SENTINEL-1"}})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(res.Features) != 1 {
		t.Fatalf("got %d features, want 1", len(res.Features))
	}
	p := res.Features[0].Properties
	if p.PGEVersion != "002.91" || p.Track() != 42 || p.Orbit() != 23679 {
		t.Errorf("properties = %+v", p)
	}
}

func TestClient_Search_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(GeoJSONResponse{Type: "FeatureCollection"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 2)
	if _, err := c.Search(context.Background(), SearchParams{}); err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
}

func TestClient_Search_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad intersectsWith", http.StatusBadRequest)
		}},
		{"invalid json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			if _, err := NewClient(srv.URL, time.Second, 0).Search(context.Background(), SearchParams{}); err == nil {
				t.Error("Search() should fail")
			}
		})
	}
}

func TestClient_Search_ContextCancelled(t *testing.T) {
	srv := serve(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(srv.URL, time.Second, 0).Search(ctx, SearchParams{}); err == nil {
		t.Error("Search() should fail on a cancelled context")
	}
}

func TestClient_GetGranule(t *testing.T) {
	tests := []struct {
		name     string
		features []Feature
		id       string
		want     string
	}{
		{"exact file id", []Feature{feature("x-METADATA", "METADATA_SLC", ""), feature("x-SLC", "SLC", "")}, "x-SLC", "x-SLC"},
		{"prefers SLC", []Feature{feature("x-RAW", "RAW", ""), feature("x-SLC", "SLC", "")}, "x", "x-SLC"},
		{"first otherwise", []Feature{feature("x-RAW", "RAW", ""), feature("x-GRD", "GRD_HD", "")}, "x", "x-RAW"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.features...)
			got, err := NewClient(srv.URL, time.Second, 0).GetGranule(context.Background(), tt.id)
			if err != nil {
				t.Fatalf("GetGranule() error: %v", err)
			}
			if got.Properties.FileID != tt.want {
				t.Errorf("FileID = %q, want %q", got.Properties.FileID, tt.want)
			}
		})
	}
}

func TestClient_GetGranule_NotFound(t *testing.T) {
	srv := serve(t)
	_, err := NewClient(srv.URL, time.Second, 0).GetGranule(context.Background(), "missing")
	if !errors.Is(err, ErrGranuleNotFound) {
		t.Errorf("error = %v, want ErrGranuleNotFound", err)
	}
}

func TestSearchParams_ToQueryString(t *testing.T) {
	start := time.Date(2018, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2018, 8, 31, 23, 59, 59, 0, time.UTC)
	p := SearchParams{
		Dataset:         []string{"SENTINEL-1"},
		IntersectsWith:  "POLYGON((0 0,0 1,1 1,0 0))",
		Start:           &start,
		End:             &end,
		BeamMode:        []string{"IW"},
		ProcessingLevel: []string{"SLC"},
		RelativeOrbit:   []int{42, 115},
	}
	v := p.ToURLValues()

	checks := map[string]string{
		"dataset":         "SENTINEL-1",
		"start":           "2018-08-01T00:00:00Z",
		"end":             "2018-08-31T23:59:59Z",
		"beamMode":        "IW",
		"processingLevel": "SLC",
		"output":          "geojson",
	}
	for k, want := range checks {
		if got := v.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if got := v["relativeOrbit"]; len(got) != 2 {
		t.Errorf("relativeOrbit = %v", got)
	}
	if !strings.Contains(p.ToQueryString(), "intersectsWith=POLYGON") {
		t.Errorf("query string missing intersectsWith: %s", p.ToQueryString())
	}
	if v.Has("maxResults") {
		t.Error("maxResults should be omitted when zero")
	}
}
