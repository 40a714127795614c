package timeparse

import (
	"strings"
	"time"
)

// dateOnlyLayout recognizes a bare calendar date.
const dateOnlyLayout = "2006-01-02"

// Layouts for timezone-naive local strings, tried with seconds first.
const (
	localLayoutSeconds = "2006-01-02T15:04:05"
	localLayoutMinutes = "2006-01-02T15:04"
)

// parseAttempt is one parser in the ordered chain. It reports ok=false
// instead of returning an error; the chain never fails loudly.
type parseAttempt func(s string, loc *time.Location) (time.Time, bool)

// Normalizer parses heterogeneous date/time strings into instants.
// The location is used for strings that carry no zone of their own.
type Normalizer struct {
	loc      *time.Location
	attempts []parseAttempt
}

// NewNormalizer builds a normalizer that resolves zone-naive strings in loc.
// A nil loc means the local timezone.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{
		loc: loc,
		attempts: []parseAttempt{
			parseOffsetFractional,
			parseOffsetSeconds,
			parseLocalSeconds,
			parseLocalMinutes,
		},
	}
}

// Location returns the normalizer's zone for zone-naive input.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize tries each parser in order and returns the first hit.
// It never fails loudly: ok is false when no attempt recognizes s.
func (n *Normalizer) Normalize(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, attempt := range n.attempts {
		if t, ok := attempt(s, n.loc); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate recognizes a bare calendar date (YYYY-MM-DD) and returns
// it at midnight in the normalizer's location. It never attaches a
// time-of-day beyond that zeroed value.
func (n *Normalizer) NormalizeDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	t, err := time.ParseInLocation(dateOnlyLayout, s, n.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DayOf zeroes the time-of-day of t in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// parseOffsetFractional accepts a full instant with an explicit offset or
// zone and sub-second precision, e.g. 2025-11-03T18:30:00.000Z.
func parseOffsetFractional(s string, _ *time.Location) (time.Time, bool) {
	if !strings.Contains(timePart(s), ".") {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseOffsetSeconds accepts a full instant with an explicit offset or
// zone and whole-second precision, e.g. 2025-11-03T18:30:00Z.
func parseOffsetSeconds(s string, _ *time.Location) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseLocalSeconds(s string, loc *time.Location) (time.Time, bool) {
	return parseLocal(localLayoutSeconds, s, loc)
}

func parseLocalMinutes(s string, loc *time.Location) (time.Time, bool) {
	return parseLocal(localLayoutMinutes, s, loc)
}

// parseLocal interprets a zone-naive string in loc. It refuses strings
// that carry any zone marker, so an offset-bearing instant can never be
// silently re-interpreted as local time.
func parseLocal(layout, s string, loc *time.Location) (time.Time, bool) {
	if hasZoneMarker(s) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// hasZoneMarker reports whether s carries a Z suffix, a + offset, or a
// - offset after the time separator.
func hasZoneMarker(s string) bool {
	if strings.ContainsAny(s, "Zz+") {
		return true
	}
	return strings.Contains(timePart(s), "-")
}

// timePart returns the portion of s after the date/time separator.
func timePart(s string) string {
	if i := strings.IndexAny(s, "T "); i >= 0 {
		return s[i+1:]
	}
	return ""
}
