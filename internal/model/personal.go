package model

import (
	"math"
	"time"
)

// Confidence bounds shared by the per-user tiers.
const (
	PersonalBaseConfidence = 0.95
	PersonalConfidenceStep = 0.01
	PersonalMaxConfidence  = 0.99
)

// PersonalPattern is a per-user learned mapping from generalized pattern to category.
type PersonalPattern struct {
	LastUsed       time.Time
	UserID         string
	PatternText    string
	CategoryID     string
	TimesConfirmed int
	Confidence     float64
}

// ConfirmationConfidence is min(0.99, 0.95 + 0.01 × times confirmed).
// It is non-decreasing in n.
func ConfirmationConfidence(n int) float64 {
	if n < 0 {
		n = 0
	}
	c := PersonalBaseConfidence + PersonalConfidenceStep*float64(n)
	// Round away float noise so repeated confirmations compare cleanly.
	c = math.Round(c*1e6) / 1e6
	return math.Min(PersonalMaxConfidence, c)
}

// Contact maps a counterparty to an alias and a default category for one user.
// Two users may map the same counterparty differently.
type Contact struct {
	UpdatedAt         time.Time
	UserID            string
	CounterpartyID    string
	Alias             string
	DefaultCategoryID string
	RelationshipType  string
	TransactionCount  int
	TotalAmount       float64
}

// Confidence derives the contact tier confidence from the transaction count.
func (c *Contact) Confidence() float64 {
	return ConfirmationConfidence(c.TransactionCount)
}
