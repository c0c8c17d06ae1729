package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func chatCompletionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
		}},
	})
	return string(body)
}

func newTestProvider(t *testing.T, srv *httptest.Server, maxRetries int) *OpenAIProvider {
	t.Helper()
	provider := NewOpenAIProvider(OpenAIConfig{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/v1/",
		Temperature: 0.1,
		MaxRetries:  maxRetries,
	}, zaptest.NewLogger(t))
	provider.retryDelay = time.Millisecond
	return provider
}

func TestOpenAIProviderComplete(t *testing.T) {
	var request map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody(`{"category":"Travel","confidence":0.8}`)))
	}))
	defer srv.Close()

	provider := newTestProvider(t, srv, 0)
	content, err := provider.Complete(context.Background(), Prompt{System: "sys", User: "usr"})
	require.NoError(t, err)
	assert.Equal(t, `{"category":"Travel","confidence":0.8}`, content)

	assert.Equal(t, "gpt-4o-mini", request["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, request["response_format"])
	messages, ok := request["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "usr", messages[1].(map[string]any)["content"])
}

func TestOpenAIProviderRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
			return
		}
		_, _ = w.Write([]byte(chatCompletionBody(`{"category":"Income","confidence":0.7}`)))
	}))
	defer srv.Close()

	provider := newTestProvider(t, srv, 1)
	content, err := provider.Complete(context.Background(), Prompt{User: "payroll"})
	require.NoError(t, err)
	assert.Contains(t, content, "Income")
	assert.EqualValues(t, 2, calls.Load())
}

func TestOpenAIProviderNoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	provider := newTestProvider(t, srv, 0)
	_, err := provider.Complete(context.Background(), Prompt{User: "anything"})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestOpenAIProviderDoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	provider := newTestProvider(t, srv, 3)
	_, err := provider.Complete(context.Background(), Prompt{User: "anything"})
	require.Error(t, err)
	assert.False(t, isRetryable(err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestOpenAIProviderPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"}]}`))
	}))
	defer srv.Close()

	provider := newTestProvider(t, srv, 0)
	assert.NoError(t, provider.Ping(context.Background()))

	srv.Close()
	assert.Error(t, provider.Ping(context.Background()))
}
