package utils

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp layouts accepted across the five metric documents. Trigger and
// infrastructure samples carry an explicit zone; job-run records are
// timezone-naive. Naive timestamps are defined to be UTC, never local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp converts any supported timestamp encoding to a canonical
// UTC instant.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", value)
}

// HoursBetween returns the span between two instants in fractional hours.
func HoursBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}

// FormatTimestamp renders an instant in the canonical output encoding, or
// the provided sentinel when the instant is unset.
func FormatTimestamp(t time.Time, sentinel string) string {
	if t.IsZero() {
		return sentinel
	}
	return t.UTC().Format(time.RFC3339)
}
