// ABOUTME: Tests for the OpenAI completion client against a fake HTTP endpoint
// ABOUTME: Covers request shape, retries on 5xx and fail-fast on 4xx
package llm

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
)

type capturedRequest struct {
	Model               string    `json:"model"`
	Messages            []Message `json:"messages"`
	Temperature         float32   `json:"temperature"`
	MaxCompletionTokens int       `json:"max_completion_tokens"`
}

func completionBody(text string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": text},
		}},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenAIClientWithConfig(&ClientConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL + "/v1",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("")
	assert.Error(t, err)
}

func TestComplete_SendsMessagesAndOptions(t *testing.T) {
	var got capturedRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody("  hello  "))
	})

	resp, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "hi"},
	}, Options{Model: "gpt-4o", Temperature: 0.8, MaxOutputTokens: 600, Metadata: map[string]string{"source": "test"}})
	require.NoError(t, err)

	assert.Equal(t, "  hello  ", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.InDelta(t, 0.8, got.Temperature, 0.001)
	assert.Equal(t, 600, got.MaxCompletionTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
}

func TestComplete_DefaultModel(t *testing.T) {
	var got capturedRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody("ok"))
	})

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultChatModel, got.Model)
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody("finally"))
	})

	resp, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "finally", resp.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestComplete_ClientErrorFailsFast(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	})

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{Model: "nope"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_NoMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := client.Complete(context.Background(), nil, Options{})
	assert.Error(t, err)
}
