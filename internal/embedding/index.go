package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/normalize"
	"github.com/Veraticus/the-spice-must-learn/internal/service"
)

const batchConcurrency = 4

// Options tunes nearest-neighbour decisions.
type Options struct {
	// TopK neighbours are fetched per partition.
	TopK int
	// Threshold is the minimum cosine similarity a neighbour needs to vote.
	Threshold float64
	// MaxConfidence caps the reported confidence.
	MaxConfidence float64
}

// DefaultOptions returns K=5, T_sim=0.75 and a 0.95 confidence cap.
func DefaultOptions() Options {
	return Options{TopK: 5, Threshold: 0.75, MaxConfidence: 0.95}
}

// Decision is the outcome of a search in one partition.
type Decision struct {
	Scope      string
	CategoryID string
	// Alternatives lists the other categories with qualifying neighbours.
	Alternatives []model.Alternative
	// BestSimilarity is the similarity of the nearest neighbour, qualifying or not.
	BestSimilarity float64
	Confidence     float64
	Votes          int
	// NeedsReview is set when another category has as many qualifying
	// neighbours as the winner.
	NeedsReview bool
}

// Index embeds text and searches the partitioned embedding store.
type Index struct {
	store    service.EmbeddingStore
	embedder Embedder
	opts     Options
}

// NewIndex creates an Index. Zero option fields take their defaults.
func NewIndex(store service.EmbeddingStore, embedder Embedder, opts Options) *Index {
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.MaxConfidence <= 0 {
		opts.MaxConfidence = def.MaxConfidence
	}
	return &Index{store: store, embedder: embedder, opts: opts}
}

// Options returns the effective options.
func (ix *Index) Options() Options {
	return ix.opts
}

// Vector embeds normalized text.
func (ix *Index) Vector(ctx context.Context, text string) ([]float32, error) {
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding %q: %w", text, err)
	}
	return vec, nil
}

// Search looks for a decision among the top-K neighbours of vector in one
// partition. ok is false when no neighbour clears the threshold; the
// returned Decision still carries BestSimilarity in that case.
func (ix *Index) Search(ctx context.Context, scope string, vector []float32) (Decision, bool, error) {
	neighbours, err := ix.store.SearchEmbeddings(ctx, scope, vector, ix.opts.TopK)
	if err != nil {
		return Decision{Scope: scope}, false, fmt.Errorf("searching %s partition: %w", scope, err)
	}
	d, ok := Decide(neighbours, ix.opts)
	d.Scope = scope
	return d, ok, nil
}

// Add embeds text and appends it to the scope's partition.
func (ix *Index) Add(ctx context.Context, scope, text, categoryID string) (*model.EmbeddingRecord, error) {
	vec, err := ix.Vector(ctx, text)
	if err != nil {
		return nil, err
	}
	record := &model.EmbeddingRecord{
		OwnerScope:     scope,
		NormalizedText: text,
		CategoryID:     categoryID,
		Vector:         vec,
		CreatedAt:      time.Now().UTC(),
	}
	if err := ix.store.InsertEmbedding(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// AddBatch embeds texts concurrently and appends them to the scope's
// partition. It returns the number of records written.
func (ix *Index) AddBatch(ctx context.Context, scope string, texts []string, categoryID string) (int, error) {
	vectors, err := EmbedBatch(ctx, ix.embedder, texts, batchConcurrency)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	for i, vec := range vectors {
		record := &model.EmbeddingRecord{
			OwnerScope:     scope,
			NormalizedText: texts[i],
			CategoryID:     categoryID,
			Vector:         vec,
			CreatedAt:      now,
		}
		if err := ix.store.InsertEmbedding(ctx, record); err != nil {
			return i, err
		}
	}
	return len(vectors), nil
}

// Texts returns the set of texts recorded in scope for categoryID.
func (ix *Index) Texts(ctx context.Context, scope, categoryID string) (map[string]bool, error) {
	records, err := ix.store.ListEmbeddings(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("listing %s partition: %w", scope, err)
	}
	set := make(map[string]bool)
	for _, r := range records {
		if r.CategoryID == categoryID {
			set[r.NormalizedText] = true
		}
	}
	return set, nil
}

// Retract removes the scope's records that fall under pattern but carry a
// category other than keep.
func (ix *Index) Retract(ctx context.Context, scope, pattern, keep string) (int, error) {
	records, err := ix.store.ListEmbeddings(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("listing %s partition: %w", scope, err)
	}
	var stale []string
	for _, r := range records {
		if r.CategoryID != keep && normalize.MatchesPattern(r.NormalizedText, pattern) {
			stale = append(stale, r.ID)
		}
	}
	return ix.store.DeleteEmbeddings(ctx, stale)
}

// Decide picks a category from neighbours sorted best first. Only neighbours
// at or above the threshold vote; the category with the most votes wins and
// ties go to the category of the nearest neighbour. Confidence is the
// winner's best similarity clipped to [0, MaxConfidence].
func Decide(neighbours []model.ScoredRecord, opts Options) (Decision, bool) {
	var d Decision
	if len(neighbours) == 0 {
		return d, false
	}
	d.BestSimilarity = neighbours[0].Similarity

	type tally struct {
		category string
		best     float64
		votes    int
		rank     int
	}
	byCategory := make(map[string]*tally)
	for i, n := range neighbours {
		if n.Similarity < opts.Threshold {
			continue
		}
		t, ok := byCategory[n.CategoryID]
		if !ok {
			t = &tally{category: n.CategoryID, best: n.Similarity, rank: i}
			byCategory[n.CategoryID] = t
		}
		t.votes++
	}
	if len(byCategory) == 0 {
		return d, false
	}

	ranked := make([]*tally, 0, len(byCategory))
	for _, t := range byCategory {
		ranked = append(ranked, t)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].votes != ranked[j].votes {
			return ranked[i].votes > ranked[j].votes
		}
		return ranked[i].rank < ranked[j].rank
	})

	winner := ranked[0]
	d.CategoryID = winner.category
	d.Votes = winner.votes
	d.Confidence = math.Max(0, math.Min(opts.MaxConfidence, winner.best))
	for _, t := range ranked[1:] {
		d.Alternatives = append(d.Alternatives, model.Alternative{
			CategoryID: t.category,
			Method:     model.MethodEmbedding,
			Score:      math.Max(0, math.Min(opts.MaxConfidence, t.best)),
		})
		if t.votes == winner.votes {
			d.NeedsReview = true
		}
	}
	return d, true
}
