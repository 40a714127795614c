package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/snapcal/internal/domain"
)

func ptr(t time.Time) *time.Time { return &t }

func TestReconcile_StartPriority(t *testing.T) {
	day := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	// startTime deliberately carries an unrelated day-of-month
	startTime := time.Date(2025, 11, 3, 14, 30, 15, 0, time.UTC)

	tests := []struct {
		name string
		cand domain.Candidate
		want time.Time
	}{
		{
			name: "day and time combine",
			cand: domain.Candidate{Title: "a", DateOnly: ptr(day), StartTime: ptr(startTime)},
			want: time.Date(2025, 11, 10, 14, 30, 15, 0, time.UTC),
		},
		{
			name: "time alone is used as-is",
			cand: domain.Candidate{Title: "a", StartTime: ptr(startTime)},
			want: startTime,
		},
		{
			name: "day alone resolves to local noon",
			cand: domain.Candidate{Title: "a", DateOnly: ptr(day)},
			want: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Reconcile(tt.cand, time.UTC)
			require.NoError(t, err)
			assert.True(t, ev.Start.Equal(tt.want), "got %v, want %v", ev.Start, tt.want)
		})
	}
}

func TestReconcile_NoStartFails(t *testing.T) {
	// A candidate with a venue but no resolvable date or time fails.
	cand := domain.Candidate{
		Title: "New Event",
		Venue: "Room 204",
		Notes: "the venue is Room 204, sometime",
	}

	_, err := Reconcile(cand, time.UTC)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoStart)
}

func TestReconcile_DefaultEndIsStartPlusOneHour(t *testing.T) {
	day := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)

	for _, cand := range []domain.Candidate{
		{Title: "a", DateOnly: ptr(day), StartTime: ptr(start)},
		{Title: "a", StartTime: ptr(start)},
		{Title: "a", DateOnly: ptr(day)},
	} {
		ev, err := Reconcile(cand, time.UTC)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, ev.End.Sub(ev.Start))
	}
}

func TestReconcile_EndRealignedOntoStartDay(t *testing.T) {
	day := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC)
	end := time.Date(2025, 11, 3, 15, 30, 0, 0, time.UTC)

	cand := domain.Candidate{
		Title:     "a",
		DateOnly:  ptr(day),
		StartTime: ptr(start),
		EndTime:   ptr(end),
	}

	ev, err := Reconcile(cand, time.UTC)
	require.NoError(t, err)

	assert.True(t, ev.Start.Equal(time.Date(2025, 11, 10, 14, 0, 0, 0, time.UTC)))
	assert.True(t, ev.End.Equal(time.Date(2025, 11, 10, 15, 30, 0, 0, time.UTC)),
		"end must move onto the same calendar day as start")
}

func TestReconcile_EndUsedAsIsWithoutDay(t *testing.T) {
	start := time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC)
	end := time.Date(2025, 11, 3, 16, 0, 0, 0, time.UTC)

	cand := domain.Candidate{Title: "a", StartTime: ptr(start), EndTime: ptr(end)}

	ev, err := Reconcile(cand, time.UTC)
	require.NoError(t, err)
	assert.True(t, ev.End.Equal(end))
}

func TestReconcile_CombinePreservesDayAndTimeOfDay(t *testing.T) {
	// Combining a day D with a time-bearing value T yields D's calendar
	// day with T's time-of-day.
	day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	tod := time.Date(1999, 12, 31, 23, 45, 7, 0, time.UTC)

	cand := domain.Candidate{Title: "a", DateOnly: ptr(day), StartTime: ptr(tod)}
	ev, err := Reconcile(cand, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 2026, ev.Start.Year())
	assert.Equal(t, time.February, ev.Start.Month())
	assert.Equal(t, 1, ev.Start.Day())
	assert.Equal(t, 23, ev.Start.Hour())
	assert.Equal(t, 45, ev.Start.Minute())
	assert.Equal(t, 7, ev.Start.Second())
}

func TestReconcile_CarriesCandidateFields(t *testing.T) {
	start := time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC)
	cand := domain.Candidate{
		Title:     "Board Meeting",
		Venue:     "HQ",
		Notes:     "raw ocr text",
		StartTime: ptr(start),
	}

	ev, err := Reconcile(cand, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "Board Meeting", ev.Title)
	assert.Equal(t, "HQ", ev.Venue)
	assert.Equal(t, "raw ocr text", ev.Notes)
}
