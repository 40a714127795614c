package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pbaille/snapcal/internal/domain"
	"github.com/pbaille/snapcal/internal/timeparse"
)

// ModelConfig holds the generative extraction settings.
type ModelConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultModelConfig returns the default configuration.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:     "gpt-4o-mini",
		MaxTokens: 512,
		Timeout:   30 * time.Second,
	}
}

// ModelConfigFromEnv reads OPENAI_API_KEY, SNAPCAL_MODEL and
// SNAPCAL_BASE_URL on top of the defaults.
func ModelConfigFromEnv() ModelConfig {
	cfg := DefaultModelConfig()
	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	if m := os.Getenv("SNAPCAL_MODEL"); m != "" {
		cfg.Model = m
	}
	cfg.BaseURL = os.Getenv("SNAPCAL_BASE_URL")
	return cfg
}

// ModelStage extracts an event candidate by calling a generative model.
// Any failure to obtain or parse a structured response is reported as
// ErrUnavailable so the pipeline can fall back to the heuristic stage.
type ModelStage struct {
	client *openai.Client
	cfg    ModelConfig
	norm   *timeparse.Normalizer
	logger *slog.Logger
}

// NewModelStage builds the model stage. It fails when no API key is
// configured; callers then assemble the pipeline without it.
func NewModelStage(cfg ModelConfig, norm *timeparse.Normalizer, logger *slog.Logger) (*ModelStage, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModelConfig().Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultModelConfig().MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultModelConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &ModelStage{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		norm:   norm,
		logger: logger,
	}, nil
}

func (m *ModelStage) Name() string { return "model" }

// modelCandidate is the loosely-typed response schema. Every field may
// independently be malformed; malformed date/time fields are dropped
// during normalization rather than failing the candidate.
type modelCandidate struct {
	Title     string `json:"title"`
	Venue     string `json:"venue"`
	StartDate string `json:"start_date"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// Extract calls the model and normalizes its answer into a candidate.
func (m *ModelStage) Extract(ctx context.Context, text string) (domain.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.cfg.Model,
		MaxTokens:   m.cfg.MaxTokens,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(text)},
		},
	})
	if err != nil {
		// preserve cancellation so the pipeline does not fall back
		if ctx.Err() != nil && ctx.Err() != context.DeadlineExceeded {
			return domain.Candidate{}, ctx.Err()
		}
		return domain.Candidate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return domain.Candidate{}, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	mc, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return m.toCandidate(mc, text), nil
}

// toCandidate normalizes each date/time field independently; a field
// that fails normalization becomes absent without invalidating the rest.
func (m *ModelStage) toCandidate(mc *modelCandidate, raw string) domain.Candidate {
	cand := domain.Candidate{
		Title: strings.TrimSpace(mc.Title),
		Venue: strings.TrimSpace(mc.Venue),
		Notes: raw,
	}
	if cand.Title == "" {
		cand.Title = domain.DefaultTitle
	}

	if day, ok := m.norm.NormalizeDate(mc.StartDate); ok {
		cand.DateOnly = &day
	} else if mc.StartDate != "" {
		m.logger.Debug("dropping unparseable date field", "value", mc.StartDate)
	}
	if t, ok := m.norm.Normalize(mc.Start); ok {
		local := t.In(m.norm.Location())
		cand.StartTime = &local
	} else if mc.Start != "" {
		m.logger.Debug("dropping unparseable start field", "value", mc.Start)
	}
	if t, ok := m.norm.Normalize(mc.End); ok {
		local := t.In(m.norm.Location())
		cand.EndTime = &local
	} else if mc.End != "" {
		m.logger.Debug("dropping unparseable end field", "value", mc.End)
	}

	return cand
}

func buildPrompt(text string) string {
	var sb strings.Builder

	sb.WriteString("Extract a single calendar event from this text. Return JSON only.\n\n")
	sb.WriteString("Text:\n")
	sb.WriteString(text)
	sb.WriteString("\n\n")

	sb.WriteString(`Return a JSON object with this structure:
{
  "title": "concise event title",
  "venue": "venue or address, or empty",
  "start_date": "YYYY-MM-DD or empty",
  "start": "ISO 8601 date-time or empty",
  "end": "ISO 8601 date-time or empty"
}

Rules:
- The title must be short and contain no dates or times
- "venue" holds only a venue name or address, nothing else
- Use "start_date" when the text names a day without a time
- Leave any field you cannot determine as an empty string
- Extract at most one event; prefer the first mentioned

Return ONLY the JSON, no other text.`)

	return sb.String()
}

// parseResponse strips markdown code fences the model may wrap its
// answer in before unmarshalling.
func parseResponse(resp string) (*modelCandidate, error) {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	var mc modelCandidate
	if err := json.Unmarshal([]byte(resp), &mc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	return &mc, nil
}
