package acquisition

import (
	"errors"
	"testing"
	"time"

	"github.com/robert-malhotra/ifg-pair-selector/internal/geometry"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		mission   string
		pol       string
		orbit     int
		start     time.Time
		productID string
	}{
		{
			name:      "bare product name",
			input:     "S1A_IW_SLC__1SDV_20180820T104118_20180820T104145_023322_0288F9_1A2B",
			mission:   "S1A",
			pol:       "DV",
			orbit:     23322,
			start:     time.Date(2018, 8, 20, 10, 41, 18, 0, time.UTC),
			productID: "1A2B",
		},
		{
			name:    "acquisition id",
			input:   "acquisition-S1B_IW_SLC__1SSV_20180913T104217_20180913T104244_012699_017689-esa_scihub",
			mission: "S1B",
			pol:     "SV",
			orbit:   12699,
			start:   time.Date(2018, 9, 13, 10, 42, 17, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseIdentifier(tt.input)
			if err != nil {
				t.Fatalf("ParseIdentifier() error: %v", err)
			}
			if n.Mission != tt.mission {
				t.Errorf("Mission = %q, want %q", n.Mission, tt.mission)
			}
			if n.Polarization != tt.pol {
				t.Errorf("Polarization = %q, want %q", n.Polarization, tt.pol)
			}
			if n.AbsoluteOrbit != tt.orbit {
				t.Errorf("AbsoluteOrbit = %d, want %d", n.AbsoluteOrbit, tt.orbit)
			}
			if !n.Start.Equal(tt.start) {
				t.Errorf("Start = %v, want %v", n.Start, tt.start)
			}
			if n.ProductID != tt.productID {
				t.Errorf("ProductID = %q, want %q", n.ProductID, tt.productID)
			}
			if !n.End.After(n.Start) {
				t.Errorf("End %v should be after Start %v", n.End, n.Start)
			}
		})
	}
}

func TestParseIdentifier_Invalid(t *testing.T) {
	for _, s := range []string{"", "S1A_EW_GRDH_1SDH_20180820T104118", "not-an-id"} {
		if _, err := ParseIdentifier(s); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("ParseIdentifier(%q) error = %v, want ErrInvalidRecord", s, err)
		}
	}
}

func TestSLCNamePlatform(t *testing.T) {
	if got := (SLCName{Mission: "S1B"}).Platform(); got != PlatformS1B {
		t.Errorf("Platform() = %q, want %q", got, PlatformS1B)
	}
	if got := (SLCName{Mission: "S1A"}).Platform(); got != PlatformS1A {
		t.Errorf("Platform() = %q, want %q", got, PlatformS1A)
	}
}

func TestMissionFor(t *testing.T) {
	tests := map[string]string{
		"Sentinel-1B": "S1B",
		"sentinel-1b": "S1B",
		"Sentinel-1A": "S1A",
		"":            "S1A",
	}
	for platform, want := range tests {
		if got := MissionFor(platform); got != want {
			t.Errorf("MissionFor(%q) = %q, want %q", platform, got, want)
		}
	}
}

func TestDEMType(t *testing.T) {
	tests := []struct {
		name string
		city []City
		want string
	}{
		{"no city", nil, DEMSRTMv3},
		{"united states", []City{{CountryName: "United States"}}, DEMNed1},
		{"elsewhere", []City{{CountryName: "Japan"}}, DEMSRTMv3},
		{"only first city counts", []City{{CountryName: "Canada"}, {CountryName: "United States"}}, DEMSRTMv3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Acquisition{City: tt.city}).DEMType(); got != tt.want {
				t.Errorf("DEMType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnrich(t *testing.T) {
	orig := Acquisition{ID: "a", ProcessingVersion: ""}

	enriched := orig.WithProcessingVersion("002.91")
	if enriched.ProcessingVersion != "002.91" {
		t.Errorf("enriched version = %q, want 002.91", enriched.ProcessingVersion)
	}
	if orig.ProcessingVersion != "" {
		t.Error("original record must not change")
	}

	kept := enriched.Enrich(Enrichment{})
	if kept.ProcessingVersion != "002.91" {
		t.Errorf("empty enrichment overwrote version: %q", kept.ProcessingVersion)
	}
}

func TestValidate(t *testing.T) {
	start := time.Date(2018, 8, 20, 10, 41, 18, 0, time.UTC)
	fp := geometry.Polygon{{{0, 0}, {0, 1}, {1, 1}, {0, 0}}}
	valid := Acquisition{ID: "a", Footprint: fp, StartTime: start, EndTime: start.Add(27 * time.Second)}

	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(a *Acquisition)
	}{
		{"missing id", func(a *Acquisition) { a.ID = "" }},
		{"missing footprint", func(a *Acquisition) { a.Footprint = nil }},
		{"missing start", func(a *Acquisition) { a.StartTime = time.Time{} }},
		{"reversed times", func(a *Acquisition) { a.EndTime = a.StartTime.Add(-time.Second) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			if err := a.Validate(); !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("Validate() error = %v, want ErrInvalidRecord", err)
			}
		})
	}
}
