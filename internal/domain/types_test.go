package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCandidateDisplay(t *testing.T) {
	day := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)

	c := Candidate{
		Title:     "Standup",
		DateOnly:  &day,
		StartTime: &start,
		Venue:     "Room 204",
		Notes:     "raw",
	}

	d := c.Display()
	assert.Equal(t, "Standup", d.Title)
	assert.Equal(t, &day, d.Day)
	assert.Equal(t, &start, d.Start)
	assert.Nil(t, d.End)
	assert.Equal(t, "Room 204", d.Venue)
	assert.Equal(t, "raw", d.Notes)
}

func TestDisplayEventInterval(t *testing.T) {
	day := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	full := DisplayEvent{Title: "a", Day: &day, Start: &start, End: &end}
	s, e, ok := full.Interval()
	assert.True(t, ok)
	assert.True(t, s.Equal(start))
	assert.True(t, e.Equal(end))

	for _, d := range []DisplayEvent{
		{Title: "a"},
		{Title: "a", Day: &day},
		{Title: "a", Day: &day, Start: &start},
		{Title: "a", Start: &start, End: &end},
	} {
		_, _, ok := d.Interval()
		assert.False(t, ok)
	}
}
