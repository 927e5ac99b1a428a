package model

import "time"

// Rule is one curated entry of the deterministic rule table.
// Table position decides precedence: the first matching rule wins.
type Rule struct {
	CreatedAt  time.Time `json:"created_at" yaml:"-"`
	Name       string    `json:"name" yaml:"name"`
	Pattern    string    `json:"pattern" yaml:"pattern"`
	CategoryID string    `json:"category" yaml:"category"`
	ID         int       `json:"id" yaml:"-"`
	Position   int       `json:"position" yaml:"-"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
	IsRegex    bool      `json:"is_regex" yaml:"regex"`
	IsActive   bool      `json:"is_active" yaml:"-"`
}
