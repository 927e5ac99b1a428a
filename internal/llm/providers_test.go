package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "openai", config: Config{Provider: "openai", APIKey: "test-key"}},
		{name: "openai missing key", config: Config{Provider: "openai"}, wantErr: true},
		{name: "anthropic", config: Config{Provider: "Anthropic", APIKey: "test-key", Model: "claude-3-opus"}},
		{name: "anthropic missing key", config: Config{Provider: "anthropic"}, wantErr: true},
		{name: "ollama", config: Config{Provider: "ollama", Model: "llama3.2"}},
		{name: "ollama missing model", config: Config{Provider: "ollama"}, wantErr: true},
		{name: "unknown provider", config: Config{Provider: "claudecode"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestOpenAIClient_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"category\":\"Entertainment\",\"confidence\":0.82}"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{Provider: "openai", APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := client.Classify(context.Background(), "classify NETFLIX COM")
	require.NoError(t, err)
	assert.Equal(t, "Entertainment", resp.Category)
	assert.InDelta(t, 0.82, resp.Confidence, 1e-9)
}

func TestAnthropicClient_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		_, _ = w.Write([]byte("{\"content\":[{\"type\":\"text\",\"text\":\"```json\\n{\\\"category\\\":\\\"Dining\\\",\\\"confidence\\\":0.7}\\n```\"}]}"))
	}))
	defer server.Close()

	client, err := NewClient(Config{Provider: "anthropic", APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := client.Classify(context.Background(), "classify UBER EATS")
	require.NoError(t, err)
	assert.Equal(t, "Dining", resp.Category)
	assert.InDelta(t, 0.7, resp.Confidence, 1e-9)
}

func TestOllamaClient_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.Equal(t, "json", req.Format)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)

		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: `{"category":"Family","confidence":0.66}`},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{Provider: "ollama", Model: "llama3.2", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := client.Classify(context.Background(), "classify SINPE JUAN PEREZ")
	require.NoError(t, err)
	assert.Equal(t, "Family", resp.Category)
}

func TestProviderErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRateLimit bool
		wantRetryable bool
	}{
		{name: "throttled", status: http.StatusTooManyRequests, wantRateLimit: true, wantRetryable: true},
		{name: "server error", status: http.StatusBadGateway, wantRetryable: true},
		{name: "bad request", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			client, err := NewClient(Config{Provider: "openai", APIKey: "k", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = client.Classify(context.Background(), "x")
			require.Error(t, err)
			assert.Equal(t, tt.wantRateLimit, errors.Is(err, common.ErrRateLimit))
			assert.Equal(t, tt.wantRetryable, common.IsRetryable(err))
		})
	}
}
