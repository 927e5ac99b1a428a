// Package pattern implements the deterministic rule tier: an ordered table of
// curated keyword and regex rules evaluated against normalized text.
package pattern

import (
	"context"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
)

// MinRuleConfidence is the lowest confidence a curated rule may carry.
const MinRuleConfidence = 0.90

// Matcher evaluates normalized transaction text against the rule table.
type Matcher interface {
	// Match returns the first rule in table order that matches, or false.
	Match(ctx context.Context, normalized string) (Rule, bool)
}

// Rule is an alias to the model.Rule type for convenience.
type Rule = model.Rule
