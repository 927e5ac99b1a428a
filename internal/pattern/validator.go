package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRule is returned when a rule cannot join the rule table.
var ErrInvalidRule = errors.New("invalid rule")

// ValidateRule checks a single rule. known, when non-nil, is the set of valid
// category ids.
func ValidateRule(rule Rule, known map[string]bool) error {
	if strings.TrimSpace(rule.Pattern) == "" {
		return fmt.Errorf("%w %q: pattern is required", ErrInvalidRule, rule.Name)
	}
	if strings.TrimSpace(rule.CategoryID) == "" {
		return fmt.Errorf("%w %q: category is required", ErrInvalidRule, rule.Name)
	}
	if rule.Confidence < MinRuleConfidence || rule.Confidence > 1 {
		return fmt.Errorf("%w %q: confidence %.2f outside [%.2f, 1]", ErrInvalidRule, rule.Name, rule.Confidence, MinRuleConfidence)
	}
	if rule.IsRegex {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("%w %q: bad regex: %w", ErrInvalidRule, rule.Name, err)
		}
	} else if keywordRegex(rule.Pattern) == nil {
		return fmt.Errorf("%w %q: keyword has no usable words", ErrInvalidRule, rule.Name)
	}
	if known != nil && !known[rule.CategoryID] {
		return fmt.Errorf("%w %q: unknown category %q", ErrInvalidRule, rule.Name, rule.CategoryID)
	}
	return nil
}

// ValidateRules checks every rule and reports all failures together.
func ValidateRules(rules []Rule, known map[string]bool) error {
	var errs []error
	for _, rule := range rules {
		if err := ValidateRule(rule, known); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
