package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfirmationConfidence(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want float64
	}{
		{"never confirmed", 0, 0.95},
		{"first confirmation", 1, 0.96},
		{"third confirmation", 3, 0.98},
		{"capped", 4, 0.99},
		{"far beyond cap", 100, 0.99},
		{"negative treated as zero", -2, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ConfirmationConfidence(tt.n), 1e-9)
		})
	}
}

func TestConfirmationConfidence_Monotonic(t *testing.T) {
	prev := 0.0
	for n := 0; n < 50; n++ {
		c := ConfirmationConfidence(n)
		assert.GreaterOrEqual(t, c, prev, "confidence decreased at n=%d", n)
		assert.LessOrEqual(t, c, PersonalMaxConfidence)
		prev = c
	}
}

func TestProposalLeader(t *testing.T) {
	p := GlobalPatternProposal{VoteDistribution: map[string]int{
		"Entertainment": 4,
		"Shopping":      1,
	}}
	leader, share := p.Leader()
	assert.Equal(t, "Entertainment", leader)
	assert.InDelta(t, 0.8, share, 1e-9)

	tied := GlobalPatternProposal{VoteDistribution: map[string]int{"B": 2, "A": 2}}
	leader, share = tied.Leader()
	assert.Equal(t, "A", leader)
	assert.InDelta(t, 0.5, share, 1e-9)

	empty := GlobalPatternProposal{}
	leader, share = empty.Leader()
	assert.Empty(t, leader)
	assert.Zero(t, share)
}

func TestDescriptorGenerateID(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := TransactionDescriptor{UserID: "u1", RawText: "NETFLIX.COM", Amount: 12.5, Currency: "USD", Timestamp: ts}
	b := a
	assert.Equal(t, a.GenerateID(), b.GenerateID())

	b.UserID = "u2"
	assert.NotEqual(t, a.GenerateID(), b.GenerateID())
	assert.Len(t, a.GenerateID(), 32)
}

func TestResultHelpers(t *testing.T) {
	r := Unresolved(nil)
	assert.False(t, r.Resolved())
	assert.True(t, r.NeedsReview)
	assert.Empty(t, r.Category())

	cat := "Food"
	r = CategorizationResult{CategoryID: &cat, Method: MethodRule}
	assert.True(t, r.Resolved())
	assert.Equal(t, "Food", r.Category())
}
