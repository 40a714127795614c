package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pbaille/snapcal/internal/domain"
)

// ErrUnavailable signals that a stage could not produce a candidate and
// the pipeline should fall through to the next stage.
var ErrUnavailable = errors.New("extraction stage unavailable")

// Stage turns raw text into an event candidate. A stage either succeeds
// with a complete candidate or reports ErrUnavailable; stage outputs are
// never merged.
type Stage interface {
	Name() string
	Extract(ctx context.Context, text string) (domain.Candidate, error)
}

// Pipeline tries its stages in fixed priority order and returns the
// first candidate produced. With a heuristic stage last, a run always
// terminates with a usable candidate unless the context is cancelled.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// NewPipeline builds a pipeline over the given stages, tried in order.
func NewPipeline(logger *slog.Logger, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{stages: stages, logger: logger}
}

// Run produces exactly one canonical candidate for text. A cancelled
// context aborts the run with the context's error so a stale result is
// never published.
func (p *Pipeline) Run(ctx context.Context, text string) (domain.Candidate, error) {
	var lastErr error

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return domain.Candidate{}, err
		}

		cand, err := stage.Extract(ctx, text)
		if err == nil {
			p.logger.Debug("extraction stage succeeded", "stage", stage.Name())
			return cand, nil
		}
		if ctx.Err() != nil {
			return domain.Candidate{}, ctx.Err()
		}

		p.logger.Debug("extraction stage unavailable, falling through",
			"stage", stage.Name(), "error", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ErrUnavailable
	}
	return domain.Candidate{}, fmt.Errorf("all extraction stages failed: %w", lastErr)
}
