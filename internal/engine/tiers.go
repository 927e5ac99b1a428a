package engine

import (
	"context"
	"errors"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/Veraticus/the-spice-must-learn/internal/consensus"
	"github.com/Veraticus/the-spice-must-learn/internal/embedding"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/pattern"
	"github.com/Veraticus/the-spice-must-learn/internal/service"
)

// Tier names, in cascade order.
const (
	TierRule            = "rule"
	TierPersonal        = "personal"
	TierContact         = "contact"
	TierEmbeddingUser   = "embedding_user"
	TierEmbeddingGlobal = "embedding_global"
	TierGlobal          = "global"
)

// Query is one descriptor moving through the cascade. Tiers share the
// derived keys and the lazily computed embedding through it.
type Query struct {
	Descriptor model.TransactionDescriptor
	// Text is the normalized text, the embedding input.
	Text string
	// Key is the personal lookup key.
	Key string
	// Pattern is the generalized pattern, empty when nothing generalizes.
	Pattern string

	vector       []float32
	userBest     float64
	globalHit    *consensus.Hit
	globalLoaded bool
}

// Candidate is a tier's answer before the engine applies acceptance floors.
type Candidate struct {
	CategoryID   string
	Method       model.Method
	Alternatives []model.Alternative
	Confidence   float64
	NeedsReview  bool
}

// Tier is one categorization strategy. A nil candidate means the tier has
// nothing to say about the query.
type Tier interface {
	Name() string
	TryCategorize(ctx context.Context, q *Query) (*Candidate, error)
}

type ruleTier struct {
	matcher pattern.Matcher
}

func (t *ruleTier) Name() string { return TierRule }

func (t *ruleTier) TryCategorize(ctx context.Context, q *Query) (*Candidate, error) {
	rule, ok := t.matcher.Match(ctx, q.Text)
	if !ok {
		return nil, nil
	}
	return &Candidate{
		CategoryID: rule.CategoryID,
		Method:     model.MethodRule,
		Confidence: rule.Confidence,
	}, nil
}

type personalTier struct {
	store service.PersonalStore
	now   func() time.Time
}

func (t *personalTier) Name() string { return TierPersonal }

func (t *personalTier) TryCategorize(ctx context.Context, q *Query) (*Candidate, error) {
	p, err := t.store.GetPersonalPattern(ctx, q.Descriptor.UserID, q.Key)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Candidate{
		CategoryID: p.CategoryID,
		Method:     model.MethodPersonal,
		Confidence: p.Confidence,
	}, nil
}

// touch records that the pattern answered a query.
func (t *personalTier) touch(ctx context.Context, q *Query) error {
	return t.store.TouchPersonalPattern(ctx, q.Descriptor.UserID, q.Key, t.now().UTC())
}

type contactTier struct {
	store service.ContactStore
}

func (t *contactTier) Name() string { return TierContact }

func (t *contactTier) TryCategorize(ctx context.Context, q *Query) (*Candidate, error) {
	if !q.Descriptor.IsPeerToPeer() {
		return nil, nil
	}
	c, err := t.store.GetContact(ctx, q.Descriptor.UserID, q.Descriptor.CounterpartyID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// An alias without a category carries no categorization signal.
	if c.DefaultCategoryID == "" {
		return nil, nil
	}
	return &Candidate{
		CategoryID: c.DefaultCategoryID,
		Method:     model.MethodContact,
		Confidence: c.Confidence(),
	}, nil
}

type userEmbeddingTier struct {
	index *embedding.Index
}

func (t *userEmbeddingTier) Name() string { return TierEmbeddingUser }

func (t *userEmbeddingTier) TryCategorize(ctx context.Context, q *Query) (*Candidate, error) {
	vec, err := q.embed(ctx, t.index)
	if err != nil {
		return nil, err
	}
	d, ok, err := t.index.Search(ctx, q.Descriptor.UserID, vec)
	if err != nil {
		return nil, err
	}
	q.userBest = d.BestSimilarity
	if !ok {
		return nil, nil
	}
	return fromDecision(d), nil
}

type globalEmbeddingTier struct {
	index     *embedding.Index
	consensus *consensus.Store
}

func (t *globalEmbeddingTier) Name() string { return TierEmbeddingGlobal }

func (t *globalEmbeddingTier) TryCategorize(ctx context.Context, q *Query) (*Candidate, error) {
	if q.userBest >= t.index.Options().Threshold {
		return nil, nil
	}
	// The global partition generalizes approved patterns to similar text.
	// For the approved pattern itself the consensus answer stands.
	hit, err := q.consensusHit(ctx, t.consensus)
	if err != nil {
		return nil, err
	}
	if hit != nil {
		return nil, nil
	}

	vec, err := q.embed(ctx, t.index)
	if err != nil {
		return nil, err
	}
	d, ok, err := t.index.Search(ctx, model.GlobalScope, vec)
	if err != nil || !ok {
		return nil, err
	}
	return fromDecision(d), nil
}

type globalTier struct {
	consensus *consensus.Store
}

func (t *globalTier) Name() string { return TierGlobal }

func (t *globalTier) TryCategorize(ctx context.Context, q *Query) (*Candidate, error) {
	hit, err := q.consensusHit(ctx, t.consensus)
	if err != nil || hit == nil {
		return nil, err
	}
	return &Candidate{
		CategoryID: hit.CategoryID,
		Method:     model.MethodGlobal,
		Confidence: hit.Confidence,
	}, nil
}

func fromDecision(d embedding.Decision) *Candidate {
	return &Candidate{
		CategoryID:   d.CategoryID,
		Method:       model.MethodEmbedding,
		Confidence:   d.Confidence,
		Alternatives: d.Alternatives,
		NeedsReview:  d.NeedsReview,
	}
}

func (q *Query) embed(ctx context.Context, index *embedding.Index) ([]float32, error) {
	if q.vector != nil {
		return q.vector, nil
	}
	vec, err := index.Vector(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	q.vector = vec
	return vec, nil
}

func (q *Query) consensusHit(ctx context.Context, store *consensus.Store) (*consensus.Hit, error) {
	if q.globalLoaded {
		return q.globalHit, nil
	}
	hit, err := store.Lookup(ctx, q.Pattern)
	if err != nil {
		return nil, err
	}
	q.globalHit, q.globalLoaded = hit, true
	return hit, nil
}
