package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
)

// errEmptyCategory is returned when a reply names no category.
var errEmptyCategory = errors.New("no category found in response")

// parseClassification extracts category and confidence from an LLM reply.
// JSON is expected; the older "CATEGORY: / CONFIDENCE:" line format is
// accepted as a fallback.
func parseClassification(content string) (ClassificationResponse, error) {
	content = cleanMarkdownWrapper(content)

	var jsonResp struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &jsonResp); err == nil {
		if strings.TrimSpace(jsonResp.Category) == "" {
			return ClassificationResponse{}, errEmptyCategory
		}
		return ClassificationResponse{
			Category:   strings.TrimSpace(jsonResp.Category),
			Confidence: clamp01(jsonResp.Confidence),
		}, nil
	}

	var resp ClassificationResponse
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "CATEGORY:"):
			resp.Category = strings.TrimSpace(strings.TrimPrefix(line, "CATEGORY:"))
		case strings.HasPrefix(line, "CONFIDENCE:"):
			confStr := strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:"))
			if strings.HasSuffix(confStr, "%") {
				v, err := strconv.ParseFloat(strings.TrimSuffix(confStr, "%"), 64)
				if err == nil {
					resp.Confidence = v / 100
				}
				continue
			}
			resp.Confidence, _ = strconv.ParseFloat(confStr, 64)
		}
	}
	if resp.Category == "" {
		return ClassificationResponse{}, fmt.Errorf("unable to parse classification response: %w", errEmptyCategory)
	}
	resp.Confidence = clamp01(resp.Confidence)
	return resp, nil
}

// cleanMarkdownWrapper strips a ```json ... ``` fence and any prose around
// the outermost JSON object.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```JSON")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

// statusError maps a non-200 response to an error. Throttling and server
// errors are retryable; other client errors are not.
func statusError(provider string, status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, truncate(string(body), 200))
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case status >= http.StatusInternalServerError:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
