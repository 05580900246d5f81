package store

import (
	"strings"
	"time"
)

// layouts tried after RFC3339, matching the mixed formats found in
// historical rows.
var fallbackLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a stored timestamp string leniently: RFC3339 first,
// then a couple of fixed layouts. Returns false when nothing matches; callers
// treat such rows as "recently" or skip them, never fail.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	// Z suffix without offset, seen in older export rows
	if t, err := time.Parse(time.RFC3339, strings.Replace(s, "Z", "+00:00", 1)); err == nil {
		return t, true
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
