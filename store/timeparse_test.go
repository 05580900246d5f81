package store

import (
	"testing"
	"time"
)

func TestParseTimestampFormats(t *testing.T) {
	want := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []string{
		"2026-03-01T10:30:00Z",
		"2026-03-01T10:30:00+00:00",
		"2026-03-01 10:30:00",
		"2026-03-01T10:30:00",
		"  2026-03-01T10:30:00Z  ",
	}

	for _, input := range tests {
		got, ok := ParseTimestamp(input)
		if !ok {
			t.Errorf("Expected %q to parse", input)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("Expected %v for %q, got %v", want, input, got)
		}
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	tests := []string{
		"",
		"not a time",
		"01/03/2026",
		"1234567890",
	}

	for _, input := range tests {
		if _, ok := ParseTimestamp(input); ok {
			t.Errorf("Expected %q to fail parsing", input)
		}
	}
}
