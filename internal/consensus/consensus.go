// Package consensus decides when crowd-sourced pattern votes become global
// knowledge. Consensus promotes a pending proposal exactly once, when enough
// distinct users agree. An administrator may approve or re-pin a proposal at
// any time.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/service"
)

// ErrNotPending is returned when a rejection targets a proposal that is no
// longer pending.
var ErrNotPending = errors.New("proposal is not pending")

// Thresholds control promotion.
type Thresholds struct {
	// MinUsers is the number of distinct voters required (N_min).
	MinUsers int
	// MinShare is the vote share the leading category needs (T_consensus).
	MinShare float64
	// MaxConfidence caps the confidence of an approved hit.
	MaxConfidence float64
}

// DefaultThresholds returns N_min=5, T_consensus=0.80 and a 0.95 cap.
func DefaultThresholds() Thresholds {
	return Thresholds{MinUsers: 5, MinShare: 0.80, MaxConfidence: 0.95}
}

// Backend is the persistence the consensus store needs.
type Backend interface {
	service.ProposalStore
	GetCategory(ctx context.Context, id string) (*model.Category, error)
}

// Hit is an approved global answer for a pattern.
type Hit struct {
	Proposal   model.GlobalPatternProposal
	CategoryID string
	Confidence float64
}

// VoteResult reports what a vote did.
type VoteResult struct {
	Proposal model.GlobalPatternProposal
	// Changed is false when the user had already voted the same way.
	Changed bool
	// Promoted is true only for the vote that moved the proposal to approved.
	Promoted bool
}

// Agrees reports whether the proposal is approved for categoryID.
func (r VoteResult) Agrees(categoryID string) bool {
	return r.Proposal.IsApproved() && r.Proposal.CategoryID == categoryID
}

// Store is the global consensus store.
type Store struct {
	backend    Backend
	logger     *slog.Logger
	now        func() time.Time
	retryOpts  service.RetryOptions
	thresholds Thresholds
}

// NewStore creates a consensus store. Zero threshold fields take their defaults.
func NewStore(backend Backend, thresholds Thresholds, logger *slog.Logger) *Store {
	def := DefaultThresholds()
	if thresholds.MinUsers <= 0 {
		thresholds.MinUsers = def.MinUsers
	}
	if thresholds.MinShare <= 0 {
		thresholds.MinShare = def.MinShare
	}
	if thresholds.MaxConfidence <= 0 {
		thresholds.MaxConfidence = def.MaxConfidence
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:    backend,
		thresholds: thresholds,
		logger:     logger,
		now:        time.Now,
		retryOpts: service.RetryOptions{
			MaxAttempts:  5,
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     100 * time.Millisecond,
			Multiplier:   2,
			RetryIf: func(err error) bool {
				return errors.Is(err, common.ErrConcurrentUpdate)
			},
		},
	}
}

// Thresholds returns the effective thresholds.
func (s *Store) Thresholds() Thresholds {
	return s.thresholds
}

// Lookup returns the approved answer for pattern, or nil when the pattern
// has no approved proposal.
func (s *Store) Lookup(ctx context.Context, pattern string) (*Hit, error) {
	if pattern == "" {
		return nil, nil
	}
	p, err := s.backend.GetProposal(ctx, pattern)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up global pattern %q: %w", pattern, err)
	}
	if !p.IsApproved() || p.CategoryID == "" {
		return nil, nil
	}
	return &Hit{
		Proposal:   *p,
		CategoryID: p.CategoryID,
		Confidence: s.confidence(p),
	}, nil
}

// confidence is the approved category's vote share, capped. Administrator
// approvals are authoritative and report the cap.
func (s *Store) confidence(p *model.GlobalPatternProposal) float64 {
	if p.ApprovedBy == model.ApprovedByAdmin {
		return s.thresholds.MaxConfidence
	}
	total := 0
	for _, n := range p.VoteDistribution {
		total += n
	}
	if total == 0 {
		return 0
	}
	share := float64(p.VoteDistribution[p.CategoryID]) / float64(total)
	return math.Min(s.thresholds.MaxConfidence, share)
}

// Vote records userID's vote for categoryID on pattern and promotes the
// proposal when it becomes eligible.
func (s *Store) Vote(ctx context.Context, pattern, userID, categoryID string) (VoteResult, error) {
	var result VoteResult
	if pattern == "" {
		return result, common.InvalidInput("pattern", "must not be empty")
	}

	var outcome service.VoteOutcome
	err := common.WithRetry(ctx, func() error {
		var err error
		outcome, err = s.backend.CastVote(ctx, pattern, userID, categoryID, s.now())
		return err
	}, s.retryOpts)
	if err != nil {
		if errors.Is(err, common.ErrConcurrentUpdate) {
			return result, &common.RetryableError{Err: err, Retryable: true}
		}
		return result, fmt.Errorf("casting vote on %q: %w", pattern, err)
	}

	result.Proposal = outcome.Proposal
	result.Changed = outcome.Changed

	leader, ok := s.eligible(&outcome.Proposal)
	if !ok {
		return result, nil
	}

	promoted, err := s.backend.PromoteProposal(ctx, pattern, leader, s.thresholds.MinUsers, s.thresholds.MinShare, s.now())
	if err != nil {
		return result, fmt.Errorf("promoting %q: %w", pattern, err)
	}
	if promoted {
		at := s.now().UTC()
		result.Promoted = true
		result.Proposal.Status = model.ProposalApproved
		result.Proposal.CategoryID = leader
		result.Proposal.ApprovedBy = model.ApprovedByConsensus
		result.Proposal.ApprovedAt = &at
		s.logger.Info("global pattern promoted by consensus",
			"pattern", pattern,
			"category", leader,
			"users", outcome.Proposal.UserCount,
			"share", outcome.Proposal.ConfidenceScore)
	}
	return result, nil
}

// eligible applies the promotion rule to a pending proposal. The backend
// re-checks it against the stored votes when promoting.
func (s *Store) eligible(p *model.GlobalPatternProposal) (string, bool) {
	if p.Status != model.ProposalPending || p.UserCount < s.thresholds.MinUsers {
		return "", false
	}
	leader, share := p.Leader()
	if leader == "" || share < s.thresholds.MinShare {
		return "", false
	}
	return leader, true
}

// PendingProposals lists proposals awaiting consensus or review.
func (s *Store) PendingProposals(ctx context.Context) ([]model.GlobalPatternProposal, error) {
	return s.backend.ListProposals(ctx, model.ProposalPending)
}

// Proposals lists proposals in any status.
func (s *Store) Proposals(ctx context.Context, status model.ProposalStatus) ([]model.GlobalPatternProposal, error) {
	return s.backend.ListProposals(ctx, status)
}

// Approve pins pattern to categoryID regardless of the thresholds. The
// pattern need not have any votes yet; an approved proposal is re-pinned and
// a rejected one is reinstated.
func (s *Store) Approve(ctx context.Context, pattern, categoryID string) (service.Approval, error) {
	if pattern == "" {
		return service.Approval{}, common.InvalidInput("pattern", "must not be empty")
	}
	if _, err := s.backend.GetCategory(ctx, categoryID); err != nil {
		return service.Approval{}, fmt.Errorf("approving %q: %w", pattern, err)
	}

	approval, err := s.backend.ApproveProposal(ctx, pattern, categoryID, s.now())
	if err != nil {
		return approval, fmt.Errorf("approving %q: %w", pattern, err)
	}

	switch approval.PreviousStatus {
	case model.ProposalApproved:
		s.logger.Info("global pattern re-pinned by admin",
			"pattern", pattern,
			"from", approval.PreviousCategory,
			"category", categoryID)
	case model.ProposalRejected:
		s.logger.Info("rejected global pattern approved by admin", "pattern", pattern, "category", categoryID)
	default:
		s.logger.Info("global pattern approved by admin", "pattern", pattern, "category", categoryID)
	}
	return approval, nil
}

// Reject moves a pending proposal to rejected.
func (s *Store) Reject(ctx context.Context, pattern string) error {
	rejected, err := s.backend.RejectProposal(ctx, pattern, s.now())
	if err != nil {
		return fmt.Errorf("rejecting %q: %w", pattern, err)
	}
	if !rejected {
		return fmt.Errorf("rejecting %q: %w", pattern, ErrNotPending)
	}

	s.logger.Info("global pattern rejected", "pattern", pattern)
	return nil
}
