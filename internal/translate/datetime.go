package translate

import (
	"fmt"
	"strings"
	"time"
)

// Catalog time formats. ASF omits the zone ("2018-08-20T10:41:18.000000"),
// CMR and raw records use RFC 3339. Job contexts may carry bare dates.
var timeFormats = []string{
	"2006-01-02T15:04:05.000000",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ParseTime parses a catalog timestamp into UTC. Timestamps without a zone
// are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty time string", ErrInvalidDateTime)
	}

	var lastErr error
	for _, format := range timeFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDateTime, s, lastErr)
}

// FormatTime renders t as second-precision RFC 3339 in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseInterval parses "start/end". Either side may be empty or ".." for an
// open bound, in which case the returned pointer is nil. Calendar dates are
// accepted; an end date covers the whole day.
func ParseInterval(s string) (*time.Time, *time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil, nil
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("%w: interval must be 'start/end'", ErrInvalidDateTime)
	}

	start, err := parseBound(parts[0], false)
	if err != nil {
		return nil, nil, fmt.Errorf("start: %w", err)
	}
	end, err := parseBound(parts[1], true)
	if err != nil {
		return nil, nil, fmt.Errorf("end: %w", err)
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, fmt.Errorf("%w: end before start", ErrInvalidDateTime)
	}
	return start, end, nil
}

func parseBound(s string, isEnd bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == ".." {
		return nil, nil
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		if isEnd {
			d = d.Add(24*time.Hour - time.Second)
		}
		return &d, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
