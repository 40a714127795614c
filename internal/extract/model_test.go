package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/snapcal/internal/timeparse"
)

// newModelServer fakes the chat completions endpoint, answering every
// request with the given message content.
func newModelServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"boom"}}`)
			return
		}

		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestModelStage(t *testing.T, baseURL string) *ModelStage {
	t.Helper()
	cfg := DefaultModelConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = baseURL + "/v1"

	stage, err := NewModelStage(cfg, timeparse.NewNormalizer(time.UTC), nil)
	require.NoError(t, err)
	return stage
}

func TestModelStage_BoardMeeting(t *testing.T) {
	content := `{"title":"Board Meeting","venue":"HQ","start_date":"2025-11-10","start":"2025-11-10T14:00:00Z","end":""}`
	srv := newModelServer(t, http.StatusOK, content)
	defer srv.Close()

	stage := newTestModelStage(t, srv.URL)
	raw := "Board meeting Nov 10 at HQ, 2pm UTC"

	cand, err := stage.Extract(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "Board Meeting", cand.Title)
	assert.Equal(t, "HQ", cand.Venue)
	assert.Equal(t, raw, cand.Notes, "notes must keep the raw text, not the model output")

	require.NotNil(t, cand.DateOnly)
	assert.True(t, cand.DateOnly.Equal(time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)))

	require.NotNil(t, cand.StartTime)
	assert.True(t, cand.StartTime.Equal(time.Date(2025, 11, 10, 14, 0, 0, 0, time.UTC)))

	assert.Nil(t, cand.EndTime, "empty end field stays absent")
}

func TestModelStage_MalformedFieldDroppedIndependently(t *testing.T) {
	content := `{"title":"Launch","venue":"Pier 3","start_date":"2025-11-10","start":"2025-11-10T14:00:00Z","end":"2025-13-40Txx"}`
	srv := newModelServer(t, http.StatusOK, content)
	defer srv.Close()

	stage := newTestModelStage(t, srv.URL)

	cand, err := stage.Extract(context.Background(), "launch flyer")
	require.NoError(t, err)

	assert.Nil(t, cand.EndTime, "malformed end field is dropped")
	assert.NotNil(t, cand.DateOnly, "valid fields of the same candidate are unaffected")
	assert.NotNil(t, cand.StartTime)
	assert.Equal(t, "Launch", cand.Title)
}

func TestModelStage_FencedResponse(t *testing.T) {
	content := "```json\n{\"title\":\"Demo Day\",\"venue\":\"\",\"start_date\":\"\",\"start\":\"\",\"end\":\"\"}\n```"
	srv := newModelServer(t, http.StatusOK, content)
	defer srv.Close()

	stage := newTestModelStage(t, srv.URL)

	cand, err := stage.Extract(context.Background(), "demo day soon")
	require.NoError(t, err)
	assert.Equal(t, "Demo Day", cand.Title)
}

func TestModelStage_EmptyTitleDefaults(t *testing.T) {
	content := `{"title":"","venue":"","start_date":"","start":"","end":""}`
	srv := newModelServer(t, http.StatusOK, content)
	defer srv.Close()

	stage := newTestModelStage(t, srv.URL)

	cand, err := stage.Extract(context.Background(), "whatever")
	require.NoError(t, err)
	assert.Equal(t, "New Event", cand.Title)
}

func TestModelStage_UnavailableOnAPIError(t *testing.T) {
	srv := newModelServer(t, http.StatusInternalServerError, "")
	defer srv.Close()

	stage := newTestModelStage(t, srv.URL)

	_, err := stage.Extract(context.Background(), "some text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestModelStage_UnavailableOnUnparseableResponse(t *testing.T) {
	srv := newModelServer(t, http.StatusOK, "Sorry, I cannot help with that.")
	defer srv.Close()

	stage := newTestModelStage(t, srv.URL)

	_, err := stage.Extract(context.Background(), "some text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewModelStage_RequiresAPIKey(t *testing.T) {
	cfg := DefaultModelConfig()
	_, err := NewModelStage(cfg, timeparse.NewNormalizer(time.UTC), nil)
	require.Error(t, err)
}
