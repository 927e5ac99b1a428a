package model

import (
	"sort"
	"time"
)

// ProposalStatus is the lifecycle state of a global pattern proposal.
type ProposalStatus string

// Proposal statuses. pending → approved happens at most once.
const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
)

// Approval sources.
const (
	ApprovedByConsensus = "consensus"
	ApprovedByAdmin     = "admin"
)

// GlobalPatternProposal is a crowd-sourced pattern → category proposal.
type GlobalPatternProposal struct {
	CreatedAt        time.Time
	ApprovedAt       *time.Time
	VoteDistribution map[string]int
	PatternText      string
	CategoryID       string
	Status           ProposalStatus
	ApprovedBy       string
	UserCount        int
	ConfidenceScore  float64
	Version          int64
}

// Leader returns the category with the most votes and its vote share.
// Ties go to the lexically smallest category so the result is stable.
func (p *GlobalPatternProposal) Leader() (string, float64) {
	total := 0
	for _, n := range p.VoteDistribution {
		total += n
	}
	if total == 0 {
		return "", 0
	}

	categories := make([]string, 0, len(p.VoteDistribution))
	for c := range p.VoteDistribution {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	leader, best := "", -1
	for _, c := range categories {
		if p.VoteDistribution[c] > best {
			leader, best = c, p.VoteDistribution[c]
		}
	}
	return leader, float64(best) / float64(total)
}

// IsApproved reports whether the proposal answers categorization lookups.
func (p *GlobalPatternProposal) IsApproved() bool {
	return p.Status == ProposalApproved
}
