package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidEmbedding   = errors.New("invalid embedding record")
	ErrInvalidStatus      = errors.New("invalid proposal status")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateTransaction(txn *model.TransactionDescriptor) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if strings.TrimSpace(txn.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.UserID) == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.RawText) == "" && strings.TrimSpace(txn.NormalizedText) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	if math.IsNaN(txn.Amount) || math.IsInf(txn.Amount, 0) {
		return fmt.Errorf("%w: amount must be finite", ErrInvalidTransaction)
	}
	return nil
}

func validateEmbedding(record *model.EmbeddingRecord) error {
	if record == nil {
		return fmt.Errorf("%w: embedding record", ErrNilParameter)
	}
	if strings.TrimSpace(record.OwnerScope) == "" {
		return fmt.Errorf("%w: missing owner scope", ErrInvalidEmbedding)
	}
	if strings.TrimSpace(record.CategoryID) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidEmbedding)
	}
	if len(record.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}
	return nil
}

func validateStatus(status model.ProposalStatus) error {
	switch status {
	case model.ProposalPending, model.ProposalApproved, model.ProposalRejected:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
}
