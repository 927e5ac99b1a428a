package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/service"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Suggestion is a generative categorization. It is never persisted by the
// classifier; only a user confirmation turns it into learned knowledge.
type Suggestion struct {
	CategoryID string
	Confidence float64
}

// FallbackOptions bounds the cost of the generative tier.
type FallbackOptions struct {
	// MaxInFlight caps concurrent provider calls.
	MaxInFlight int64
	// RateLimit is the number of provider calls allowed per minute.
	RateLimit   int
	CacheTTL    time.Duration
	Timeout     time.Duration
	RetryDelay  time.Duration
}

// DefaultFallbackOptions returns conservative limits.
func DefaultFallbackOptions() FallbackOptions {
	return FallbackOptions{
		MaxInFlight: 4,
		RateLimit:   60,
		CacheTTL:    time.Hour,
		Timeout:     10 * time.Second,
		RetryDelay:  500 * time.Millisecond,
	}
}

// Fallback is the generative fallback classifier.
type Fallback struct {
	client  Client
	sem     *semaphore.Weighted
	cache   *suggestionCache
	limiter *rateLimiter
	logger  *slog.Logger
	group   singleflight.Group
	opts    FallbackOptions
}

// NewFallback wraps client with backpressure. Zero option fields take their defaults.
func NewFallback(client Client, opts FallbackOptions, logger *slog.Logger) *Fallback {
	def := DefaultFallbackOptions()
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = def.MaxInFlight
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = def.RateLimit
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Fallback{
		client:  client,
		sem:     semaphore.NewWeighted(opts.MaxInFlight),
		cache:   newSuggestionCache(opts.CacheTTL),
		limiter: newRateLimiter(opts.RateLimit),
		logger:  logger,
		opts:    opts,
	}
}

// Suggest asks the provider for one of req.Candidates. Every failure,
// including saturation, rate limiting and timeouts, wraps
// common.ErrClassifierUnavailable.
func (f *Fallback) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	key := strings.TrimSpace(req.NormalizedText)
	if key == "" {
		return Suggestion{}, common.InvalidInput("normalized_text", "must not be empty")
	}
	if len(req.Candidates) == 0 {
		return Suggestion{}, fmt.Errorf("%w: no candidate categories", common.ErrClassifierUnavailable)
	}

	if s, ok := f.cache.get(key); ok {
		if id, ok := resolveCandidate(s.CategoryID, req.Candidates); ok {
			f.logger.Debug("generative cache hit", "text", key, "category", id)
			return Suggestion{CategoryID: id, Confidence: s.Confidence}, nil
		}
	}

	// Identical texts in flight share one provider call. The call outlives
	// any single waiter so other waiters still get the answer.
	ch := f.group.DoChan(key, func() (any, error) {
		return f.call(context.WithoutCancel(ctx), req)
	})

	select {
	case <-ctx.Done():
		return Suggestion{}, fmt.Errorf("%w: %w", common.ErrClassifierUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Suggestion{}, res.Err
		}
		s := res.Val.(Suggestion)
		// A shared answer may come from a call with different candidates.
		id, ok := resolveCandidate(s.CategoryID, req.Candidates)
		if !ok {
			return Suggestion{}, fmt.Errorf("%w: category %q is not a candidate", common.ErrClassifierUnavailable, s.CategoryID)
		}
		return Suggestion{CategoryID: id, Confidence: s.Confidence}, nil
	}
}

func (f *Fallback) call(ctx context.Context, req Request) (Suggestion, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	err := f.sem.Acquire(acquireCtx, 1)
	cancel()
	if err != nil {
		f.logger.Warn("generative classifier saturated", "text", req.NormalizedText)
		return Suggestion{}, fmt.Errorf("%w: too many calls in flight", common.ErrClassifierUnavailable)
	}
	defer f.sem.Release(1)

	if !f.limiter.tryAcquire() {
		f.logger.Warn("generative classifier rate limited", "text", req.NormalizedText)
		return Suggestion{}, fmt.Errorf("%w: %w", common.ErrClassifierUnavailable, common.ErrRateLimit)
	}

	prompt := buildPrompt(req)
	var suggestion Suggestion

	err = common.WithRetry(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()

		response, err := f.client.Classify(attemptCtx, prompt)
		if err != nil {
			f.logger.Warn("generative classification attempt failed",
				"error", err,
				"text", req.NormalizedText)
			return err
		}

		id, ok := resolveCandidate(response.Category, req.Candidates)
		if !ok {
			return &common.RetryableError{
				Err:       fmt.Errorf("category %q is not a candidate", response.Category),
				Retryable: false,
			}
		}
		suggestion = Suggestion{CategoryID: id, Confidence: clamp01(response.Confidence)}
		return nil
	}, service.RetryOptions{
		MaxAttempts:  2,
		InitialDelay: f.opts.RetryDelay,
		MaxDelay:     f.opts.RetryDelay,
		Multiplier:   1,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			f.logger.Warn("generative classification timed out", "text", req.NormalizedText)
		}
		return Suggestion{}, fmt.Errorf("%w: %w", common.ErrClassifierUnavailable, err)
	}

	f.cache.set(strings.TrimSpace(req.NormalizedText), suggestion)

	f.logger.Info("transaction classified by generative fallback",
		"text", req.NormalizedText,
		"category", suggestion.CategoryID,
		"confidence", suggestion.Confidence)

	return suggestion, nil
}

// Close stops background goroutines and cleans up resources.
func (f *Fallback) Close() error {
	f.cache.Close()
	f.limiter.Close()
	return nil
}

// resolveCandidate maps a reply onto a candidate id, matching id or name
// case-insensitively.
func resolveCandidate(category string, candidates []model.Category) (string, bool) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", false
	}
	for _, c := range candidates {
		if strings.EqualFold(c.ID, category) || strings.EqualFold(c.Name, category) {
			return c.ID, true
		}
	}
	return "", false
}
