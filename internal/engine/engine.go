// Package engine implements the categorization cascade: an ordered list of
// tiers consulted until one clears its acceptance floor, with a bounded
// generative fallback behind them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/Veraticus/the-spice-must-learn/internal/consensus"
	"github.com/Veraticus/the-spice-must-learn/internal/embedding"
	"github.com/Veraticus/the-spice-must-learn/internal/llm"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/normalize"
	"github.com/Veraticus/the-spice-must-learn/internal/pattern"
	"github.com/Veraticus/the-spice-must-learn/internal/service"
	"golang.org/x/sync/errgroup"
)

// Store is the read side of learned knowledge the cascade consults.
type Store interface {
	service.PersonalStore
	service.ContactStore
	GetCategories(ctx context.Context) ([]model.Category, error)
}

// Generative suggests a category from a candidate list. *llm.Fallback
// satisfies it.
type Generative interface {
	Suggest(ctx context.Context, req llm.Request) (llm.Suggestion, error)
}

// Config holds the acceptance floors and batch limits.
type Config struct {
	RuleFloor       float64
	PersonalFloor   float64
	ContactFloor    float64
	EmbeddingFloor  float64
	GlobalFloor     float64
	AcceptanceFloor float64
	// GenerativeFloor is the confidence below which a generative answer is
	// flagged for review.
	GenerativeFloor     float64
	GenerativeBudgetPct float64
	Concurrency         int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		RuleFloor:           0.90,
		PersonalFloor:       0.95,
		ContactFloor:        0.95,
		EmbeddingFloor:      0.75,
		GlobalFloor:         0.80,
		AcceptanceFloor:     0.60,
		GenerativeFloor:     0.70,
		GenerativeBudgetPct: 0.10,
		Concurrency:         8,
	}
}

// Deps are the collaborators of the engine. Generative may be nil, in which
// case the cascade behaves as if the classifier were unavailable.
type Deps struct {
	Store      Store
	Rules      pattern.Matcher
	Index      *embedding.Index
	Consensus  *consensus.Store
	Generative Generative
}

// Engine is the categorization orchestrator.
type Engine struct {
	generative Generative
	store      Store
	personal   *personalTier
	logger     *slog.Logger
	floors     map[string]float64
	tiers      []Tier
	cfg        Config
}

// New creates an engine over deps.
func New(deps Deps, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	personal := &personalTier{store: deps.Store, now: time.Now}
	return &Engine{
		store:      deps.Store,
		generative: deps.Generative,
		personal:   personal,
		logger:     logger,
		cfg:        cfg,
		tiers: []Tier{
			&ruleTier{matcher: deps.Rules},
			personal,
			&contactTier{store: deps.Store},
			&userEmbeddingTier{index: deps.Index},
			&globalEmbeddingTier{index: deps.Index, consensus: deps.Consensus},
			&globalTier{consensus: deps.Consensus},
		},
		floors: map[string]float64{
			TierRule:            cfg.RuleFloor,
			TierPersonal:        cfg.PersonalFloor,
			TierContact:         cfg.ContactFloor,
			TierEmbeddingUser:   cfg.EmbeddingFloor,
			TierEmbeddingGlobal: cfg.EmbeddingFloor,
			TierGlobal:          cfg.GlobalFloor,
		},
	}
}

// Tiers returns the tier names in cascade order.
func (e *Engine) Tiers() []string {
	names := make([]string, len(e.tiers))
	for i, t := range e.tiers {
		names[i] = t.Name()
	}
	return names
}

// Categorize runs the cascade for one descriptor. Tier failures and an
// unavailable classifier degrade the result; only invalid input and
// context cancellation are returned as errors.
func (e *Engine) Categorize(ctx context.Context, d model.TransactionDescriptor) (model.CategorizationResult, error) {
	q, err := newQuery(d)
	if err != nil {
		return model.CategorizationResult{}, err
	}
	return e.categorize(ctx, q, nil)
}

// CategorizeBatch categorizes descriptors concurrently. Results are in
// input order. At most floor(GenerativeBudgetPct × len(ds)) descriptors are
// routed to the generative tier.
func (e *Engine) CategorizeBatch(ctx context.Context, ds []model.TransactionDescriptor) ([]model.CategorizationResult, error) {
	queries := make([]*Query, len(ds))
	for i, d := range ds {
		q, err := newQuery(d)
		if err != nil {
			return nil, fmt.Errorf("descriptor %d: %w", i, err)
		}
		queries[i] = q
	}

	b := newBudget(len(ds), e.cfg.GenerativeBudgetPct)
	results := make([]model.CategorizationResult, len(ds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			res, err := e.categorize(gctx, q, b)
			if err != nil {
				return fmt.Errorf("descriptor %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if b.denied.Load() > 0 {
		e.logger.Warn("generative budget exhausted",
			"batch", len(ds),
			"budget", b.limit,
			"denied", b.denied.Load())
	}
	return results, nil
}

func newQuery(d model.TransactionDescriptor) (*Query, error) {
	if strings.TrimSpace(d.UserID) == "" {
		return nil, common.InvalidInput("user_id", "must not be empty")
	}
	text := normalize.Text(d.RawText, d.NormalizedText)
	if text == "" {
		return nil, common.InvalidInput("normalized_text", "must not be empty")
	}
	return &Query{
		Descriptor: d,
		Text:       text,
		Key:        normalize.Key(text),
		Pattern:    normalize.Generalize(text),
	}, nil
}

func (e *Engine) categorize(ctx context.Context, q *Query, b *budget) (model.CategorizationResult, error) {
	var best *Candidate
	var seen []model.Alternative

	for _, tier := range e.tiers {
		if err := ctx.Err(); err != nil {
			return model.CategorizationResult{}, err
		}

		c, err := tier.TryCategorize(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return model.CategorizationResult{}, ctx.Err()
			}
			e.logger.Warn("tier failed", "tier", tier.Name(), "user", q.Descriptor.UserID, "error", err)
			continue
		}
		if c == nil {
			continue
		}

		if c.Confidence >= e.floors[tier.Name()] {
			if tier.Name() == TierRule {
				if p := e.personalOverride(ctx, q, c); p != nil {
					return e.accept(ctx, q, p, append(seen, alternative(c))), nil
				}
			}
			return e.accept(ctx, q, c, seen), nil
		}

		seen = append(seen, alternative(c))
		if best == nil || c.Confidence > best.Confidence {
			best = c
		}
	}

	if best != nil && best.Confidence >= e.cfg.AcceptanceFloor {
		return degraded(best, seen), nil
	}

	suggestion, err := e.suggest(ctx, q, b)
	if err != nil {
		if ctx.Err() != nil {
			return model.CategorizationResult{}, ctx.Err()
		}
		e.logger.Info("generative tier unavailable",
			"user", q.Descriptor.UserID,
			"text", q.Text,
			"error", err)
		if best != nil {
			return degraded(best, seen), nil
		}
		return model.Unresolved(mergeAlternatives("", nil, seen)), nil
	}

	e.logger.Debug("generative fallback",
		"user", q.Descriptor.UserID,
		"text", q.Text,
		"category", suggestion.CategoryID,
		"confidence", suggestion.Confidence)
	category := suggestion.CategoryID
	return model.CategorizationResult{
		CategoryID:   &category,
		Method:       model.MethodGenerative,
		Confidence:   suggestion.Confidence,
		NeedsReview:  suggestion.Confidence < e.cfg.GenerativeFloor,
		Alternatives: mergeAlternatives(category, nil, seen),
	}, nil
}

// personalOverride returns the user's own pattern when one exists for the
// query, so curated rules never shadow an explicit correction.
func (e *Engine) personalOverride(ctx context.Context, q *Query, rule *Candidate) *Candidate {
	p, err := e.personal.TryCategorize(ctx, q)
	if err != nil {
		e.logger.Warn("personal lookup failed", "user", q.Descriptor.UserID, "error", err)
		return nil
	}
	if p == nil {
		return nil
	}
	if p.CategoryID != rule.CategoryID {
		e.logger.Debug("personal pattern overrides rule",
			"user", q.Descriptor.UserID,
			"pattern", q.Key,
			"rule_category", rule.CategoryID,
			"personal_category", p.CategoryID)
	}
	return p
}

func (e *Engine) accept(ctx context.Context, q *Query, c *Candidate, seen []model.Alternative) model.CategorizationResult {
	if c.Method == model.MethodPersonal {
		if err := e.personal.touch(ctx, q); err != nil {
			e.logger.Warn("failed to touch personal pattern", "user", q.Descriptor.UserID, "pattern", q.Key, "error", err)
		}
	}
	category := c.CategoryID
	return model.CategorizationResult{
		CategoryID:   &category,
		Method:       c.Method,
		Confidence:   c.Confidence,
		NeedsReview:  c.NeedsReview,
		Alternatives: mergeAlternatives(category, c.Alternatives, seen),
	}
}

func (e *Engine) suggest(ctx context.Context, q *Query, b *budget) (llm.Suggestion, error) {
	if e.generative == nil {
		return llm.Suggestion{}, fmt.Errorf("%w: no provider configured", common.ErrClassifierUnavailable)
	}
	if !b.take() {
		return llm.Suggestion{}, common.ErrBudgetExhausted
	}

	categories, err := e.store.GetCategories(ctx)
	if err != nil {
		return llm.Suggestion{}, fmt.Errorf("loading candidate categories: %w", err)
	}
	candidates := make([]model.Category, 0, len(categories))
	for _, c := range categories {
		if c.IsActive {
			candidates = append(candidates, c)
		}
	}

	return e.generative.Suggest(ctx, llm.Request{
		NormalizedText: q.Text,
		Amount:         q.Descriptor.Amount,
		Currency:       q.Descriptor.Currency,
		Candidates:     candidates,
	})
}

// degraded returns the best sub-floor candidate flagged for review.
func degraded(best *Candidate, seen []model.Alternative) model.CategorizationResult {
	category := best.CategoryID
	return model.CategorizationResult{
		CategoryID:   &category,
		Method:       best.Method,
		Confidence:   best.Confidence,
		NeedsReview:  true,
		Alternatives: mergeAlternatives(category, best.Alternatives, seen),
	}
}

func alternative(c *Candidate) model.Alternative {
	return model.Alternative{CategoryID: c.CategoryID, Method: c.Method, Score: c.Confidence}
}

// mergeAlternatives keeps the best score per category other than winner,
// ordered by score.
func mergeAlternatives(winner string, lists ...[]model.Alternative) []model.Alternative {
	best := make(map[string]model.Alternative)
	for _, list := range lists {
		for _, a := range list {
			if a.CategoryID == "" || a.CategoryID == winner {
				continue
			}
			if cur, ok := best[a.CategoryID]; !ok || a.Score > cur.Score {
				best[a.CategoryID] = a
			}
		}
	}
	if len(best) == 0 {
		return nil
	}

	out := make([]model.Alternative, 0, len(best))
	for _, a := range best {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// budget caps generative calls within one batch. A nil budget is unlimited.
type budget struct {
	remaining atomic.Int64
	denied    atomic.Int64
	limit     int64
}

// The limit is floor(n × pct); batches too small for one call get none.
func newBudget(n int, pct float64) *budget {
	limit := int64(math.Floor(float64(n)*pct + 1e-9))
	if limit < 0 {
		limit = 0
	}
	b := &budget{limit: limit}
	b.remaining.Store(limit)
	return b
}

func (b *budget) take() bool {
	if b == nil {
		return true
	}
	if b.remaining.Add(-1) >= 0 {
		return true
	}
	b.denied.Add(1)
	return false
}
