package models

import (
	"testing"
	"time"
)

func TestParseDate_Formats(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"RFC3339 with zone", "2025-06-15T12:00:00+03:00"},
		{"RFC3339 UTC", "2025-06-15T12:00:00Z"},
		{"ISO without zone", "2025-06-15T12:00:00"},
		{"ISO with micros", "2025-06-15T12:00:00.123456"},
		{"space separated", "2025-06-15 12:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDate(tt.input)
			if got == nil {
				t.Fatalf("parseDate(%q) returned nil", tt.input)
			}
			// Zone information is discarded: every input lands on the same
			// local wall clock.
			want := time.Date(2025, 6, 15, 12, 0, 0, got.Nanosecond(), time.Local)
			if !got.Equal(want) {
				t.Errorf("parseDate(%q) = %v, want %v", tt.input, got, want)
			}
			if got.Location() != time.Local {
				t.Errorf("parseDate(%q) location = %v, want local", tt.input, got.Location())
			}
		})
	}
}

func TestParseDate_DateOnly(t *testing.T) {
	got := parseDate("2025-06-15")
	if got == nil {
		t.Fatal("parseDate returned nil")
	}
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, input := range []string{"", "garbage", "15/06/2025", "2025-13-45"} {
		if got := parseDate(input); got != nil {
			t.Errorf("parseDate(%q) = %v, want nil", input, got)
		}
	}
}

func TestFormatDate_RoundTrip(t *testing.T) {
	orig := time.Date(2025, 6, 15, 12, 30, 45, 0, time.Local)
	parsed := parseDate(FormatDate(orig))
	if parsed == nil {
		t.Fatal("round trip returned nil")
	}
	if !parsed.Equal(orig) {
		t.Errorf("Expected %v, got %v", orig, parsed)
	}
}
