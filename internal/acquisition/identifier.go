package acquisition

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidRecord marks a catalog record that cannot become an Acquisition.
// Callers skip the record and continue.
var ErrInvalidRecord = errors.New("invalid acquisition record")

// slcPattern matches Sentinel-1 IW SLC product names, optionally embedded in a
// longer id such as "acquisition-<name>-esa_scihub".
var slcPattern = regexp.MustCompile(
	`(S1[AB])_IW_SLC__1S([SD][HV])_(\d{8}T\d{6})_(\d{8}T\d{6})_(\d{6})_([0-9A-F]{6})(?:_([0-9A-F]{4}))?`)

const slcTimeLayout = "20060102T150405"

// SLCName holds the fields encoded in a Sentinel-1 SLC product name.
type SLCName struct {
	Name          string
	Mission       string
	Polarization  string
	Start         time.Time
	End           time.Time
	AbsoluteOrbit int
	DataTake      string
	ProductID     string
}

// ParseIdentifier extracts mission, polarization, timestamps and absolute
// orbit from an SLC product name or an id containing one.
func ParseIdentifier(s string) (SLCName, error) {
	m := slcPattern.FindStringSubmatch(s)
	if m == nil {
		return SLCName{}, fmt.Errorf("%w: %q is not an SLC identifier", ErrInvalidRecord, s)
	}

	start, err := time.Parse(slcTimeLayout, m[3])
	if err != nil {
		return SLCName{}, fmt.Errorf("%w: start time: %v", ErrInvalidRecord, err)
	}
	end, err := time.Parse(slcTimeLayout, m[4])
	if err != nil {
		return SLCName{}, fmt.Errorf("%w: end time: %v", ErrInvalidRecord, err)
	}
	orbit, err := strconv.Atoi(m[5])
	if err != nil {
		return SLCName{}, fmt.Errorf("%w: orbit: %v", ErrInvalidRecord, err)
	}

	return SLCName{
		Name:          m[0],
		Mission:       m[1],
		Polarization:  m[2],
		Start:         start,
		End:           end,
		AbsoluteOrbit: orbit,
		DataTake:      m[6],
		ProductID:     m[7],
	}, nil
}

// Platform returns the platform name for the parsed mission.
func (n SLCName) Platform() string {
	if n.Mission == "S1B" {
		return PlatformS1B
	}
	return PlatformS1A
}

// Validate checks the invariants every Acquisition must hold before it enters
// grouping. A missing track number is not checked here; the grouper reports
// those as dropped.
func (a Acquisition) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if len(a.Footprint) == 0 {
		return fmt.Errorf("%w: %s has no footprint", ErrInvalidRecord, a.ID)
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return fmt.Errorf("%w: %s is missing start or end time", ErrInvalidRecord, a.ID)
	}
	if a.EndTime.Before(a.StartTime) {
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidRecord, a.ID)
	}
	return nil
}
