// Package embedding turns normalized transaction text into vectors and
// answers nearest-neighbour categorization queries against the per-user and
// global embedding partitions.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Embedder produces a vector for a piece of normalized text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
	Timeout    time.Duration
}

// NewEmbedder creates an Embedder for the configured provider.
func NewEmbedder(cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "hashing":
		return NewHashingEmbedder(cfg.Dimensions), nil
	case "ollama":
		return newOllamaEmbedder(cfg)
	case "openai":
		return newOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// EmbedBatch returns embedding vectors for multiple texts concurrently, at
// most limit at a time. Returns nil (not error) for empty input.
func EmbedBatch(ctx context.Context, e Embedder, texts []string, limit int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 4
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := e.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
