// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// TransactionDescriptor is the immutable input handed to the engine by the
// upstream extraction pipeline.
type TransactionDescriptor struct {
	Timestamp      time.Time `json:"timestamp"`
	ID             string    `json:"id"`
	RawText        string    `json:"raw_text"`
	NormalizedText string    `json:"normalized_text"`
	CounterpartyID string    `json:"counterparty_id,omitempty"`
	Currency       string    `json:"currency"`
	UserID         string    `json:"user_id"`
	Amount         float64   `json:"amount"`
}

// IsPeerToPeer reports whether the transaction carries a counterparty signal.
func (t *TransactionDescriptor) IsPeerToPeer() bool {
	return t.CounterpartyID != ""
}

// GenerateID derives a stable identifier for descriptors that arrive without one.
func (t *TransactionDescriptor) GenerateID() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s:%s",
		t.UserID,
		t.Timestamp.UTC().Format(time.RFC3339),
		t.Amount,
		t.Currency,
		t.RawText)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:16])
}
