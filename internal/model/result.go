package model

// Method identifies the tier that produced a categorization.
type Method string

// Categorization methods in cascade order.
const (
	MethodRule       Method = "rule"
	MethodPersonal   Method = "personal"
	MethodContact    Method = "contact"
	MethodEmbedding  Method = "embedding"
	MethodGlobal     Method = "global"
	MethodGenerative Method = "generative"
)

// Alternative is a competing candidate surfaced alongside the winning category.
type Alternative struct {
	CategoryID string  `json:"category_id"`
	Method     Method  `json:"method"`
	Score      float64 `json:"score"`
}

// CategorizationResult is produced per categorize call and never persisted.
// A nil CategoryID means the cascade ended unresolved.
type CategorizationResult struct {
	CategoryID   *string       `json:"category_id"`
	Method       Method        `json:"method,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Confidence   float64       `json:"confidence"`
	NeedsReview  bool          `json:"needs_review"`
}

// Resolved reports whether a category was assigned.
func (r CategorizationResult) Resolved() bool {
	return r.CategoryID != nil
}

// Category returns the assigned category or the empty string.
func (r CategorizationResult) Category() string {
	if r.CategoryID == nil {
		return ""
	}
	return *r.CategoryID
}

// Unresolved builds the terminal UNRESOLVED result.
func Unresolved(alternatives []Alternative) CategorizationResult {
	return CategorizationResult{
		NeedsReview:  true,
		Alternatives: alternatives,
	}
}
