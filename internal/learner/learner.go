// Package learner turns user corrections into durable knowledge. Each
// correction feeds the personal store, the contact store, the user's
// embedding partition and a vote toward global consensus. The steps are
// independent: one failing never undoes the others.
package learner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/Veraticus/the-spice-must-learn/internal/consensus"
	"github.com/Veraticus/the-spice-must-learn/internal/embedding"
	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/normalize"
	"github.com/Veraticus/the-spice-must-learn/internal/service"
)

// Store is the persistence the learner writes to.
type Store interface {
	service.TransactionLog
	service.PersonalStore
	service.ContactStore
	service.CorrectionLog
	GetCategory(ctx context.Context, id string) (*model.Category, error)
}

// Outcome describes what a correction changed.
type Outcome struct {
	Contact        *service.ContactUpsert
	Vote           *consensus.VoteResult
	Key            string
	Pattern        string
	Personal       service.PersonalUpsert
	// GlobalEmbedded is set when this correction's text joined the global partition.
	GlobalEmbedded bool
	// GlobalSeeded counts every record the correction added to the global partition.
	GlobalSeeded int
}

// ApprovalOutcome describes an administrator approval and how the global
// partition was realigned to it.
type ApprovalOutcome struct {
	service.Approval
	Retracted int
	Seeded    int
}

// Learner is the feedback learner.
type Learner struct {
	store     Store
	index     *embedding.Index
	consensus *consensus.Store
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a feedback learner.
func New(store Store, index *embedding.Index, cons *consensus.Store, logger *slog.Logger) *Learner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{
		store:     store,
		index:     index,
		consensus: cons,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordCorrection applies a user's correction to a logged transaction.
func (l *Learner) RecordCorrection(ctx context.Context, transactionID, categoryID, userID string) (Outcome, error) {
	if strings.TrimSpace(transactionID) == "" {
		return Outcome{}, common.InvalidInput("transaction_id", "must not be empty")
	}
	if strings.TrimSpace(userID) == "" {
		return Outcome{}, common.InvalidInput("user_id", "must not be empty")
	}

	txn, err := l.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading transaction %s: %w", transactionID, err)
	}
	if txn.UserID != userID {
		return Outcome{}, common.InvalidInput("user_id", "does not own the transaction")
	}
	return l.Learn(ctx, *txn, categoryID)
}

// Learn applies a correction for a descriptor the caller already holds.
// The returned error joins every failed step; the outcome reflects the
// steps that succeeded.
func (l *Learner) Learn(ctx context.Context, d model.TransactionDescriptor, categoryID string) (Outcome, error) {
	var out Outcome

	if strings.TrimSpace(d.UserID) == "" {
		return out, common.InvalidInput("user_id", "must not be empty")
	}
	if strings.TrimSpace(categoryID) == "" {
		return out, common.InvalidInput("category_id", "must not be empty")
	}
	text := normalize.Text(d.RawText, d.NormalizedText)
	if text == "" {
		return out, common.InvalidInput("normalized_text", "must not be empty")
	}
	if _, err := l.store.GetCategory(ctx, categoryID); err != nil {
		return out, fmt.Errorf("correction to %q: %w", categoryID, err)
	}

	out.Pattern = normalize.Generalize(text)
	out.Key = normalize.Key(text)
	now := l.now().UTC()
	var errs []error

	personal, err := l.store.UpsertPersonalPattern(ctx, d.UserID, out.Key, categoryID, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("personal pattern: %w", err))
	} else {
		out.Personal = personal
		if personal.Overridden() {
			l.logger.Info("personal pattern overridden",
				"user", d.UserID,
				"pattern", out.Key,
				"from", personal.PreviousCategory,
				"to", categoryID)
		}
	}

	if d.IsPeerToPeer() {
		contact, err := l.store.UpsertContact(ctx, d.UserID, d.CounterpartyID, categoryID, d.Amount, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("contact: %w", err))
		} else {
			out.Contact = &contact
			if contact.PreviousCategory != "" && contact.PreviousCategory != categoryID {
				l.logger.Info("contact category overridden",
					"user", d.UserID,
					"counterparty", d.CounterpartyID,
					"from", contact.PreviousCategory,
					"to", categoryID)
			}
		}
	}

	if _, err := l.index.Add(ctx, d.UserID, text, categoryID); err != nil {
		errs = append(errs, fmt.Errorf("user embedding: %w", err))
	}

	if out.Pattern != "" {
		vote, err := l.consensus.Vote(ctx, out.Pattern, d.UserID, categoryID)
		if err != nil {
			errs = append(errs, fmt.Errorf("global vote: %w", err))
		} else {
			out.Vote = &vote
			switch {
			case vote.Promoted:
				// Everyone whose correction built the consensus joins the global partition.
				n, err := l.seedGlobal(ctx, out.Pattern, categoryID, text)
				out.GlobalSeeded = n
				if err != nil {
					errs = append(errs, fmt.Errorf("global embedding: %w", err))
				} else {
					out.GlobalEmbedded = true
				}
			case vote.Changed && vote.Agrees(categoryID):
				if _, err := l.index.Add(ctx, model.GlobalScope, text, categoryID); err != nil {
					errs = append(errs, fmt.Errorf("global embedding: %w", err))
				} else {
					out.GlobalEmbedded = true
					out.GlobalSeeded = 1
				}
			}
		}
	}

	if err := l.store.SaveCorrection(ctx, &model.Correction{
		TransactionID:  d.ID,
		UserID:         d.UserID,
		CategoryID:     categoryID,
		PatternText:    out.Key,
		NormalizedText: text,
		CreatedAt:      now,
	}); err != nil {
		errs = append(errs, fmt.Errorf("audit log: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		l.logger.Warn("correction partially applied",
			"user", d.UserID,
			"category", categoryID,
			"error", err)
		if isRetryable(errs) {
			return out, &common.RetryableError{Err: err, Retryable: true}
		}
		return out, err
	}

	l.logger.Debug("correction learned",
		"user", d.UserID,
		"pattern", out.Key,
		"category", categoryID)
	return out, nil
}

// Approve pins a global pattern to categoryID on an administrator's word and
// realigns the global partition: records under the pattern with another
// category are retracted and the texts of users who voted for categoryID
// are added.
func (l *Learner) Approve(ctx context.Context, pattern, categoryID string) (ApprovalOutcome, error) {
	approval, err := l.consensus.Approve(ctx, pattern, categoryID)
	if err != nil {
		return ApprovalOutcome{}, err
	}
	out := ApprovalOutcome{Approval: approval}

	var errs []error
	if out.Retracted, err = l.index.Retract(ctx, model.GlobalScope, pattern, categoryID); err != nil {
		errs = append(errs, fmt.Errorf("retracting global embeddings: %w", err))
	}
	if out.Seeded, err = l.seedGlobal(ctx, pattern, categoryID); err != nil {
		errs = append(errs, fmt.Errorf("seeding global embeddings: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		l.logger.Warn("approval partially applied", "pattern", pattern, "category", categoryID, "error", err)
		return out, err
	}

	l.logger.Info("global partition realigned",
		"pattern", pattern,
		"category", categoryID,
		"retracted", out.Retracted,
		"seeded", out.Seeded)
	return out, nil
}

// seedGlobal adds the corrected texts of users voting categoryID on pattern,
// plus current, to the global partition. Texts already recorded there for
// categoryID are skipped.
func (l *Learner) seedGlobal(ctx context.Context, pattern, categoryID string, current ...string) (int, error) {
	texts, err := l.store.AgreeingTexts(ctx, pattern, categoryID)
	if err != nil {
		return 0, fmt.Errorf("loading agreeing corrections: %w", err)
	}
	known, err := l.index.Texts(ctx, model.GlobalScope, categoryID)
	if err != nil {
		return 0, err
	}

	var fresh []string
	for _, t := range append(texts, current...) {
		if t == "" || known[t] {
			continue
		}
		known[t] = true
		fresh = append(fresh, t)
	}
	return l.index.AddBatch(ctx, model.GlobalScope, fresh, categoryID)
}

func isRetryable(errs []error) bool {
	for _, err := range errs {
		if common.IsRetryable(err) {
			return true
		}
	}
	return false
}
