package translate

import (
	"errors"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectTime  time.Time
		expectError bool
	}{
		{
			name:       "ASF format with microseconds",
			input:      "2018-08-20T10:41:18.123456",
			expectTime: time.Date(2018, 8, 20, 10, 41, 18, 123456000, time.UTC),
		},
		{
			name:       "RFC3339",
			input:      "2018-08-20T10:41:18Z",
			expectTime: time.Date(2018, 8, 20, 10, 41, 18, 0, time.UTC),
		},
		{
			name:       "offset converted to UTC",
			input:      "2018-08-20T12:41:18+02:00",
			expectTime: time.Date(2018, 8, 20, 10, 41, 18, 0, time.UTC),
		},
		{
			name:       "without timezone",
			input:      "2018-08-20T10:41:18",
			expectTime: time.Date(2018, 8, 20, 10, 41, 18, 0, time.UTC),
		},
		{
			name:       "with whitespace",
			input:      "  2018-08-20T10:41:18Z  ",
			expectTime: time.Date(2018, 8, 20, 10, 41, 18, 0, time.UTC),
		},
		{
			name:       "calendar date",
			input:      "2018-08-20",
			expectTime: time.Date(2018, 8, 20, 0, 0, 0, 0, time.UTC),
		},
		{name: "empty", input: "", expectError: true},
		{name: "garbage", input: "not a date", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			if tt.expectError {
				if !errors.Is(err, ErrInvalidDateTime) {
					t.Errorf("ParseTime(%q) error = %v, want ErrInvalidDateTime", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTime(%q) error: %v", tt.input, err)
			}
			if !got.Equal(tt.expectTime) || got.Location() != time.UTC {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.input, got, tt.expectTime)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	in := time.Date(2018, 8, 20, 10, 41, 18, 500, time.FixedZone("x", 3600))
	if got := FormatTime(in); got != "2018-08-20T09:41:18Z" {
		t.Errorf("FormatTime() = %q", got)
	}
}

func TestParseInterval(t *testing.T) {
	day := func(y int, m time.Month, d, h, min, s int) *time.Time {
		v := time.Date(y, m, d, h, min, s, 0, time.UTC)
		return &v
	}

	tests := []struct {
		name      string
		input     string
		wantStart *time.Time
		wantEnd   *time.Time
		wantErr   bool
	}{
		{name: "empty"},
		{name: "closed dates", input: "2018-08-01/2018-08-31", wantStart: day(2018, 8, 1, 0, 0, 0), wantEnd: day(2018, 8, 31, 23, 59, 59)},
		{name: "open start", input: "../2018-08-31T00:00:00Z", wantEnd: day(2018, 8, 31, 0, 0, 0)},
		{name: "open end", input: "2018-08-01T00:00:00Z/..", wantStart: day(2018, 8, 1, 0, 0, 0)},
		{name: "single value", input: "2018-08-01", wantErr: true},
		{name: "reversed", input: "2018-09-01/2018-08-01", wantErr: true},
		{name: "bad bound", input: "soon/later", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := ParseInterval(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInterval() error: %v", err)
			}
			if !sameTime(start, tt.wantStart) || !sameTime(end, tt.wantEnd) {
				t.Errorf("ParseInterval() = %v, %v; want %v, %v", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
