package pattern

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/the-spice-must-learn/internal/normalize"
)

// MatcherImpl implements Matcher over a fixed, ordered rule table.
type MatcherImpl struct {
	compiled []*regexp.Regexp
	rules    []Rule
}

// NewMatcher creates a matcher over rules. Table order is preserved; inactive
// rules and regex rules that fail to compile are skipped.
func NewMatcher(rules []Rule) *MatcherImpl {
	m := &MatcherImpl{
		rules:    make([]Rule, 0, len(rules)),
		compiled: make([]*regexp.Regexp, 0, len(rules)),
	}

	for _, rule := range rules {
		if !rule.IsActive || rule.Pattern == "" {
			continue
		}

		var re *regexp.Regexp
		if rule.IsRegex {
			compiled, err := regexp.Compile("(?i)" + rule.Pattern)
			if err != nil {
				slog.Warn("Skipping rule with invalid regex", "rule", rule.Name, "pattern", rule.Pattern, "error", err)
				continue
			}
			re = compiled
		} else {
			re = keywordRegex(rule.Pattern)
			if re == nil {
				slog.Warn("Skipping keyword rule with no usable words", "rule", rule.Name, "pattern", rule.Pattern)
				continue
			}
		}

		m.rules = append(m.rules, rule)
		m.compiled = append(m.compiled, re)
	}

	return m
}

// Match returns the first matching rule in table order.
func (m *MatcherImpl) Match(_ context.Context, normalized string) (Rule, bool) {
	if normalized == "" {
		return Rule{}, false
	}
	for i, re := range m.compiled {
		if re.MatchString(normalized) {
			return m.rules[i], true
		}
	}
	return Rule{}, false
}

// Rules returns the active rules in evaluation order.
func (m *MatcherImpl) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// keywordRegex matches a keyword as a whole-word phrase. Keywords are
// normalized the same way transaction text is, so "netflix.com" matches
// "NETFLIX COM". It returns nil when nothing survives normalization.
func keywordRegex(keyword string) *regexp.Regexp {
	words := strings.Fields(normalize.Normalize(keyword))
	if len(words) == 0 {
		return nil
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?:^|\s)` + strings.Join(quoted, `\s+`) + `(?:\s|$)`)
}
