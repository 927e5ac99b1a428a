// Package service defines the persistence contracts shared by the engine,
// the feedback learner and the consensus store.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
)

// TransactionFilter defines filtering options for transaction log queries.
type TransactionFilter struct {
	Since  *time.Time
	UserID string
	Limit  int
	Offset int
}

// PersonalUpsert reports the outcome of recording a personal confirmation.
type PersonalUpsert struct {
	// PreviousCategory is set when the correction overrode a different category.
	PreviousCategory string
	Pattern          model.PersonalPattern
	Created          bool
}

// Overridden reports whether the upsert replaced a different category.
func (u PersonalUpsert) Overridden() bool {
	return u.PreviousCategory != "" && u.PreviousCategory != u.Pattern.CategoryID
}

// ContactUpsert reports the outcome of recording a contact confirmation.
type ContactUpsert struct {
	PreviousCategory string
	Contact          model.Contact
	Created          bool
}

// VoteOutcome reports the proposal state after a vote was counted.
type VoteOutcome struct {
	Proposal model.GlobalPatternProposal
	// Changed is false when the user's vote was already recorded for the same category.
	Changed bool
}

// Approval reports an administrator approval.
type Approval struct {
	// PreviousStatus is empty when the approval created the proposal.
	PreviousStatus   model.ProposalStatus
	PreviousCategory string
	Proposal         model.GlobalPatternProposal
}

// TransactionLog stores descriptors so corrections can refer to them by id.
type TransactionLog interface {
	SaveTransaction(ctx context.Context, txn *model.TransactionDescriptor) error
	GetTransaction(ctx context.Context, id string) (*model.TransactionDescriptor, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.TransactionDescriptor, error)
}

// CategoryStore holds the category catalogue.
type CategoryStore interface {
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*model.Category, error)
}

// RuleStore persists the ordered rule table.
type RuleStore interface {
	GetActiveRules(ctx context.Context) ([]model.Rule, error)
	CreateRule(ctx context.Context, rule *model.Rule) error
	ReplaceRules(ctx context.Context, rules []model.Rule) error
}

// PersonalStore is the per-user preference store.
type PersonalStore interface {
	GetPersonalPattern(ctx context.Context, userID, pattern string) (*model.PersonalPattern, error)
	UpsertPersonalPattern(ctx context.Context, userID, pattern, categoryID string, at time.Time) (PersonalUpsert, error)
	TouchPersonalPattern(ctx context.Context, userID, pattern string, at time.Time) error
	ListPersonalPatterns(ctx context.Context, userID string) ([]model.PersonalPattern, error)
}

// ContactStore is the per-user counterparty store.
type ContactStore interface {
	GetContact(ctx context.Context, userID, counterpartyID string) (*model.Contact, error)
	UpsertContact(ctx context.Context, userID, counterpartyID, categoryID string, amount float64, at time.Time) (ContactUpsert, error)
	SetContactAlias(ctx context.Context, userID, counterpartyID, alias, relationship string) error
}

// EmbeddingStore holds embedding records partitioned by owner scope.
type EmbeddingStore interface {
	InsertEmbedding(ctx context.Context, record *model.EmbeddingRecord) error
	SearchEmbeddings(ctx context.Context, scope string, vector []float32, topK int) ([]model.ScoredRecord, error)
	CountEmbeddings(ctx context.Context, scope string) (int, error)
	ListEmbeddings(ctx context.Context, scope string) ([]model.EmbeddingRecord, error)
	DeleteEmbeddings(ctx context.Context, ids []string) (int, error)
}

// ProposalStore holds global pattern proposals and their votes.
type ProposalStore interface {
	GetProposal(ctx context.Context, pattern string) (*model.GlobalPatternProposal, error)
	// CastVote records one user's vote. It fails with common.ErrConcurrentUpdate
	// when the proposal changed between read and write.
	CastVote(ctx context.Context, pattern, userID, categoryID string, at time.Time) (VoteOutcome, error)
	// PromoteProposal moves a pending proposal to approved by consensus when
	// at least minUsers voted and categoryID holds at least minShare of the
	// votes. It returns true only for the single caller that performed the
	// transition.
	PromoteProposal(ctx context.Context, pattern, categoryID string, minUsers int, minShare float64, at time.Time) (bool, error)
	// ApproveProposal pins a proposal to categoryID on an administrator's
	// authority, whatever its current status.
	ApproveProposal(ctx context.Context, pattern, categoryID string, at time.Time) (Approval, error)
	RejectProposal(ctx context.Context, pattern string, at time.Time) (bool, error)
	ListProposals(ctx context.Context, status model.ProposalStatus) ([]model.GlobalPatternProposal, error)
}

// CorrectionLog is the append-only audit trail of corrections.
type CorrectionLog interface {
	SaveCorrection(ctx context.Context, correction *model.Correction) error
	ListCorrections(ctx context.Context, userID string, limit int) ([]model.Correction, error)
	// AgreeingTexts returns the corrected texts under pattern whose authors
	// currently vote for categoryID.
	AgreeingTexts(ctx context.Context, pattern, categoryID string) ([]string, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	TransactionLog
	CategoryStore
	RuleStore
	PersonalStore
	ContactStore
	EmbeddingStore
	ProposalStore
	CorrectionLog

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	// RetryIf, when set, limits retries to errors it accepts.
	RetryIf      func(error) bool
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
