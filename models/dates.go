package models

import (
	"strings"
	"time"
)

// Layouts tried for zone-less inputs, in order.
var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseDate turns a textual date into a zone-naive time, or nil when the
// input is empty or unparseable after every attempted format. The system
// treats all times as local wall-clock, so any timezone component is
// stripped rather than converted.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	// ISO-8601 with an explicit zone suffix.
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return stripZone(t)
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}

	// Last resort: take the date part only.
	datePart := s
	if i := strings.IndexAny(datePart, "T "); i >= 0 {
		datePart = datePart[:i]
	}
	if t, err := time.ParseInLocation("2006-01-02", datePart, time.Local); err == nil {
		return &t
	}

	return nil
}

// stripZone keeps the wall-clock components and drops the offset.
func stripZone(t time.Time) *time.Time {
	naive := time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
	return &naive
}

// FormatDate renders a time the way the server stores it.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}
