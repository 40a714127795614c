package extract

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pbaille/snapcal/internal/domain"
	"github.com/pbaille/snapcal/internal/timeparse"
)

// venueKeywords mark a line as venue-bearing; a line containing any of
// them (as a substring) is also disqualified from being the title.
var venueKeywords = []string{"venue", "at", "location", "place", "address"}

// reVenue captures the venue text after a keyword, up to the next
// newline or period.
var reVenue = regexp.MustCompile(`(?i)\b(?:venue|at|location|place|address)\b\s*:?\s*([^\n.]+)`)

// HeuristicStage is the deterministic fallback extractor. It is total:
// arbitrary OCR noise still yields a usable candidate.
type HeuristicStage struct {
	detector *timeparse.Detector
	loc      *time.Location
}

// NewHeuristicStage builds the heuristic stage around a detector.
func NewHeuristicStage(detector *timeparse.Detector, loc *time.Location) *HeuristicStage {
	if loc == nil {
		loc = time.Local
	}
	return &HeuristicStage{detector: detector, loc: loc}
}

func (h *HeuristicStage) Name() string { return "heuristic" }

// Extract never fails. Missing patterns produce defaults, not errors.
func (h *HeuristicStage) Extract(_ context.Context, text string) (domain.Candidate, error) {
	cand := domain.Candidate{
		Title: domain.DefaultTitle,
		Notes: text,
	}

	if m, ok := h.detector.Detect(text); ok {
		start := m.Time
		cand.StartTime = &start
		day := timeparse.DayOf(start, h.loc)
		cand.DateOnly = &day
		if m.Duration > 0 {
			end := start.Add(m.Duration)
			cand.EndTime = &end
		}
	}

	cand.Venue = h.findVenue(text)

	if title, ok := h.findTitle(text); ok {
		cand.Title = title
	}

	return cand, nil
}

// findVenue returns the first usable capture after a venue keyword.
// Empty captures and captures that are themselves date/time spans
// ("Monday at 9:00 AM") are discarded.
func (h *HeuristicStage) findVenue(text string) string {
	for _, m := range reVenue.FindAllStringSubmatch(text, -1) {
		v := strings.TrimSpace(m[1])
		if v == "" {
			continue
		}
		if _, ok := h.detector.Detect(v); ok {
			continue
		}
		return v
	}
	return ""
}

// findTitle picks the first non-empty line that carries no venue keyword
// and is not itself a date/time expression.
func (h *HeuristicStage) findTitle(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if containsVenueKeyword(line) {
			continue
		}
		if _, ok := h.detector.Detect(line); ok {
			continue
		}
		return line, true
	}
	return "", false
}

func containsVenueKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range venueKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
