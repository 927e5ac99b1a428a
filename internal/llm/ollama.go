package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ollamaClient talks to a local Ollama instance over its chat API.
type ollamaClient struct {
	httpClient  *http.Client
	model       string
	baseURL     string
	temperature float64
}

func newOllamaClient(cfg Config) (*ollamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	cfg = withDefaults(cfg, cfg.Model, "http://localhost:11434")

	return &ollamaClient{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
	}, nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatRequest is the JSON body for POST /api/chat.
type ollamaChatRequest struct {
	Options  map[string]any  `json:"options,omitempty"`
	Model    string          `json:"model"`
	Format   string          `json:"format,omitempty"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

// ollamaChatResponse is the JSON returned by POST /api/chat (non-streaming).
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

// Classify sends the prompt to /api/chat requesting JSON output.
func (c *ollamaClient) Classify(ctx context.Context, prompt string) (ClassificationResponse, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model: c.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Format:  "json",
		Options: map[string]any{"temperature": c.temperature},
	})
	if err != nil {
		return ClassificationResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return ClassificationResponse{}, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ClassificationResponse{}, fmt.Errorf("chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassificationResponse{}, fmt.Errorf("failed to read response: %w", err)
	}
	if err := statusError("ollama", resp.StatusCode, respBody); err != nil {
		return ClassificationResponse{}, err
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return ClassificationResponse{}, fmt.Errorf("decoding chat response: %w", err)
	}

	return parseClassification(result.Message.Content)
}
