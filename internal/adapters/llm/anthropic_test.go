package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/singlechat/internal/adapters/llm"
	"github.com/PabloGalante/singlechat/internal/domain"
)

type anthropicRequest struct {
	Model     string `json:"model"`
	MaxTokens int64  `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func fakeAnthropic(t *testing.T, status int, body string, seen *anthropicRequest, calls *int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAnthropic(t *testing.T, url, system string) *llm.AnthropicClient {
	t.Helper()
	c, err := llm.NewAnthropicClient(llm.AnthropicConfig{
		BaseURL:      url,
		APIKey:       "sk-test",
		SystemPrompt: system,
	})
	require.NoError(t, err)
	return c
}

func history() []domain.Message {
	first := domain.NewMessage(domain.RoleUser, "Hi", nil)
	firstID := domain.DeriveID(first.Role, first.Content, first.Parent)
	second := domain.NewMessage(domain.RoleAssistant, "Hello!", domain.IDPtr(firstID))
	secondID := domain.DeriveID(second.Role, second.Content, second.Parent)
	third := domain.NewMessage(domain.RoleUser, "How are you?", domain.IDPtr(secondID))
	return []domain.Message{first.WithID(firstID), second.WithID(secondID), third}
}

const anthropicOK = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-20241022",
  "content": [{"type": "text", "text": "Doing well, thanks."}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 12, "output_tokens": 5}
}`

func TestAnthropicCompleteSendsHistory(t *testing.T) {
	var req anthropicRequest
	var calls int32
	srv := fakeAnthropic(t, http.StatusOK, anthropicOK, &req, &calls)

	reply, err := newAnthropic(t, srv.URL, "").Complete(context.Background(), history())
	require.NoError(t, err)
	assert.Equal(t, "Doing well, thanks.", reply)
	assert.EqualValues(t, 1, calls)

	assert.Equal(t, llm.DefaultAnthropicModel, req.Model)
	assert.EqualValues(t, 1024, req.MaxTokens)
	assert.Empty(t, req.System)
	require.Len(t, req.Messages, 3)
	wantRoles := []string{"user", "assistant", "user"}
	wantText := []string{"Hi", "Hello!", "How are you?"}
	for i, m := range req.Messages {
		assert.Equal(t, wantRoles[i], m.Role)
		require.Len(t, m.Content, 1)
		assert.Equal(t, wantText[i], m.Content[0].Text)
	}
}

func TestAnthropicSystemPrompt(t *testing.T) {
	var req anthropicRequest
	var calls int32
	srv := fakeAnthropic(t, http.StatusOK, anthropicOK, &req, &calls)

	_, err := newAnthropic(t, srv.URL, "be brief").Complete(context.Background(), history())
	require.NoError(t, err)
	require.Len(t, req.System, 1)
	assert.Equal(t, "be brief", req.System[0].Text)
}

func TestAnthropicEmptyTextIsValid(t *testing.T) {
	var calls int32
	srv := fakeAnthropic(t, http.StatusOK,
		`{"id":"m","type":"message","role":"assistant","model":"x","content":[{"type":"text","text":""}]}`, nil, &calls)

	reply, err := newAnthropic(t, srv.URL, "").Complete(context.Background(), history())
	require.NoError(t, err)
	assert.Equal(t, "", reply)
}

func TestAnthropicFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"type":"error","error":{"type":"api_error","message":"boom"}}`,
			want:   domain.ErrTransportFailure,
		},
		{
			name:   "empty content",
			status: http.StatusOK,
			body:   `{"id":"m","type":"message","role":"assistant","model":"x","content":[]}`,
			want:   domain.ErrMalformedCompletion,
		},
		{
			name:   "reply is not json",
			status: http.StatusOK,
			body:   `not json`,
			want:   domain.ErrMalformedCompletion,
		},
		{
			name:   "error status with a non-json body",
			status: http.StatusBadGateway,
			body:   `not json`,
			want:   domain.ErrTransportFailure,
		},
		{
			name:   "first block has no text",
			status: http.StatusOK,
			body:   `{"id":"m","type":"message","role":"assistant","model":"x","content":[{"type":"tool_use","id":"t","name":"n","input":{}}]}`,
			want:   domain.ErrMalformedCompletion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := fakeAnthropic(t, tt.status, tt.body, nil, &calls)

			_, err := newAnthropic(t, srv.URL, "").Complete(context.Background(), history())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var cerr *domain.CompletionError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, "anthropic", cerr.Provider)
			assert.EqualValues(t, 1, calls, "no retries")
		})
	}
}

func TestAnthropicUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newAnthropic(t, url, "").Complete(context.Background(), history())
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
	assert.NotErrorIs(t, err, domain.ErrMalformedCompletion)
}

func TestNewAnthropicClientRequiresKey(t *testing.T) {
	_, err := llm.NewAnthropicClient(llm.AnthropicConfig{})
	assert.Error(t, err)
}
