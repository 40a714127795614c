package extract

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/snapcal/internal/domain"
	"github.com/pbaille/snapcal/internal/timeparse"
)

type stubStage struct {
	name   string
	cand   domain.Candidate
	err    error
	called int
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Extract(_ context.Context, _ string) (domain.Candidate, error) {
	s.called++
	return s.cand, s.err
}

func TestPipeline_FirstSuccessIsCanonical(t *testing.T) {
	first := &stubStage{name: "first", cand: domain.Candidate{Title: "From Model"}}
	second := &stubStage{name: "second", cand: domain.Candidate{Title: "From Heuristic"}}
	pipe := NewPipeline(nil, first, second)

	cand, err := pipe.Run(context.Background(), "text")
	require.NoError(t, err)

	assert.Equal(t, "From Model", cand.Title)
	assert.Equal(t, 0, second.called, "later stages must not run after a success")
}

func TestPipeline_FallsBackOnUnavailable(t *testing.T) {
	first := &stubStage{name: "first", err: fmt.Errorf("%w: no session", ErrUnavailable)}
	second := &stubStage{name: "second", cand: domain.Candidate{Title: "From Heuristic"}}
	pipe := NewPipeline(nil, first, second)

	cand, err := pipe.Run(context.Background(), "text")
	require.NoError(t, err)

	assert.Equal(t, "From Heuristic", cand.Title)
	assert.Equal(t, 1, first.called)
}

func TestPipeline_AllStagesFail(t *testing.T) {
	only := &stubStage{name: "only", err: ErrUnavailable}
	pipe := NewPipeline(nil, only)

	_, err := pipe.Run(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPipeline_CancelledRunPublishesNothing(t *testing.T) {
	first := &stubStage{name: "first", cand: domain.Candidate{Title: "stale"}}
	pipe := NewPipeline(nil, first)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipe.Run(ctx, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, first.called)
}

func TestPipeline_WithHeuristicFloor(t *testing.T) {
	// A failing model stage ahead of the heuristic stage still yields a
	// usable candidate for any non-empty text.
	now := time.Date(2025, 11, 5, 8, 0, 0, 0, time.UTC)
	detector := timeparse.NewDetector(time.UTC, func() time.Time { return now })
	heuristic := NewHeuristicStage(detector, time.UTC)
	model := &stubStage{name: "model", err: ErrUnavailable}

	pipe := NewPipeline(nil, model, heuristic)

	text := "Team Standup\nMonday at 9:00 AM\nLocation: Room 204"
	cand, err := pipe.Run(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, "Team Standup", cand.Title)
	assert.Equal(t, text, cand.Notes)
}
