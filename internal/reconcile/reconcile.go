// Package reconcile combines a candidate's possibly-partial date and
// time fragments into concrete start and end instants under explicit
// default policies.
package reconcile

import (
	"errors"
	"time"

	"github.com/pbaille/snapcal/internal/domain"
)

// ErrNoStart is returned when neither a calendar day nor a start time
// can be resolved from the candidate.
var ErrNoStart = errors.New("no determinable start")

// DefaultDuration is the event length applied when no end is known.
const DefaultDuration = time.Hour

// DefaultStartHour is the local hour used when only a calendar day is
// known.
const DefaultStartHour = 12

// Reconcile resolves a candidate into an event with concrete start and
// end instants, or fails with ErrNoStart. Once a start resolves, an end
// always resolves too.
func Reconcile(c domain.Candidate, loc *time.Location) (domain.Event, error) {
	if loc == nil {
		loc = time.Local
	}

	start, err := resolveStart(c, loc)
	if err != nil {
		return domain.Event{}, err
	}

	return domain.Event{
		Title: c.Title,
		Venue: c.Venue,
		Notes: c.Notes,
		Start: start,
		End:   resolveEnd(c, start, loc),
	}, nil
}

// resolveStart applies the start priority order: day+time combined,
// time alone, day at local noon, failure.
func resolveStart(c domain.Candidate, loc *time.Location) (time.Time, error) {
	switch {
	case c.DateOnly != nil && c.StartTime != nil:
		return combine(*c.DateOnly, *c.StartTime, loc), nil
	case c.StartTime != nil:
		return *c.StartTime, nil
	case c.DateOnly != nil:
		day := *c.DateOnly
		return time.Date(day.Year(), day.Month(), day.Day(), DefaultStartHour, 0, 0, 0, loc), nil
	default:
		return time.Time{}, ErrNoStart
	}
}

// resolveEnd realigns a known end time onto the resolved start's day
// when a calendar day is present, and otherwise defaults to start plus
// one hour.
func resolveEnd(c domain.Candidate, start time.Time, loc *time.Location) time.Time {
	if c.EndTime != nil {
		end := *c.EndTime
		if c.DateOnly != nil && !start.Equal(end) {
			return combine(*c.DateOnly, end, loc)
		}
		return end
	}
	return start.Add(DefaultDuration)
}

// combine takes the calendar day of day and the time-of-day of tod in
// the local calendar.
func combine(day, tod time.Time, loc *time.Location) time.Time {
	tod = tod.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0, loc)
}
