package pattern

import (
	"context"
	"strings"
	"testing"

	"github.com/Veraticus/the-spice-must-learn/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Match(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		text     string
		wantRule string
		rules    []Rule
		wantOK   bool
	}{
		{
			name:     "keyword match",
			rules:    []Rule{{Name: "netflix", Pattern: "netflix", CategoryID: "Entertainment", Confidence: 0.95, IsActive: true}},
			text:     "NETFLIX COM",
			wantRule: "netflix",
			wantOK:   true,
		},
		{
			name:     "keyword with punctuation matches normalized text",
			rules:    []Rule{{Name: "netflix", Pattern: "netflix.com", CategoryID: "Entertainment", Confidence: 0.95, IsActive: true}},
			text:     "NETFLIX COM",
			wantRule: "netflix",
			wantOK:   true,
		},
		{
			name:   "keyword is whole word only",
			rules:  []Rule{{Name: "ice", Pattern: "ice", CategoryID: "Utilities", Confidence: 0.95, IsActive: true}},
			text:   "SERVICE CENTER",
			wantOK: false,
		},
		{
			name:     "regex is case insensitive",
			rules:    []Rule{{Name: "uber", Pattern: `\buber\b`, IsRegex: true, CategoryID: "Transport", Confidence: 0.92, IsActive: true}},
			text:     "UBER TRIP",
			wantRule: "uber",
			wantOK:   true,
		},
		{
			name: "first matching rule wins",
			rules: []Rule{
				{Name: "eats", Pattern: "uber eats", CategoryID: "Dining", Confidence: 0.95, IsActive: true},
				{Name: "uber", Pattern: "uber", CategoryID: "Transport", Confidence: 0.92, IsActive: true},
			},
			text:     "UBER EATS PENDING",
			wantRule: "eats",
			wantOK:   true,
		},
		{
			name: "table order beats specificity",
			rules: []Rule{
				{Name: "uber", Pattern: "uber", CategoryID: "Transport", Confidence: 0.92, IsActive: true},
				{Name: "eats", Pattern: "uber eats", CategoryID: "Dining", Confidence: 0.95, IsActive: true},
			},
			text:     "UBER EATS PENDING",
			wantRule: "uber",
			wantOK:   true,
		},
		{
			name:   "inactive rules are ignored",
			rules:  []Rule{{Name: "off", Pattern: "netflix", CategoryID: "Entertainment", Confidence: 0.95}},
			text:   "NETFLIX",
			wantOK: false,
		},
		{
			name:   "invalid regex is skipped",
			rules:  []Rule{{Name: "bad", Pattern: "([", IsRegex: true, CategoryID: "X", Confidence: 0.95, IsActive: true}},
			text:   "ANYTHING",
			wantOK: false,
		},
		{
			name:   "empty text never matches",
			rules:  []Rule{{Name: "all", Pattern: ".*", IsRegex: true, CategoryID: "X", Confidence: 0.95, IsActive: true}},
			text:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.rules)
			rule, ok := m.Match(ctx, tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantRule, rule.Name)
			}
		})
	}
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	require.NoError(t, ValidateRules(rules, nil))

	m := NewMatcher(rules)
	ctx := context.Background()

	rule, ok := m.Match(ctx, normalize.Normalize("UBER EATS *ORDER 55A1"))
	require.True(t, ok)
	assert.Equal(t, "Dining", rule.CategoryID)

	rule, ok = m.Match(ctx, normalize.Normalize("UBER *TRIP 4F92A"))
	require.True(t, ok)
	assert.Equal(t, "Transport", rule.CategoryID)

	_, ok = m.Match(ctx, normalize.Normalize("SINPE JUAN PEREZ"))
	assert.False(t, ok)

	_, ok = m.Match(ctx, normalize.Normalize("NETFLIX.COM"))
	assert.False(t, ok, "netflix is learned through consensus, not curated")

	for i, r := range m.Rules() {
		assert.Equal(t, i, r.Position)
		assert.GreaterOrEqual(t, r.Confidence, MinRuleConfidence)
	}
}

func TestValidateRule(t *testing.T) {
	known := map[string]bool{"Food": true}

	assert.NoError(t, ValidateRule(Rule{Name: "ok", Pattern: "soda", CategoryID: "Food", Confidence: 0.9}, known))
	assert.ErrorIs(t, ValidateRule(Rule{Name: "low", Pattern: "soda", CategoryID: "Food", Confidence: 0.5}, known), ErrInvalidRule)
	assert.ErrorIs(t, ValidateRule(Rule{Name: "nocat", Pattern: "soda", Confidence: 0.95}, known), ErrInvalidRule)
	assert.ErrorIs(t, ValidateRule(Rule{Name: "unknown", Pattern: "soda", CategoryID: "Rent", Confidence: 0.95}, known), ErrInvalidRule)
	assert.ErrorIs(t, ValidateRule(Rule{Name: "regex", Pattern: "([", IsRegex: true, CategoryID: "Food", Confidence: 0.95}, known), ErrInvalidRule)
	assert.ErrorIs(t, ValidateRule(Rule{Name: "punct", Pattern: "***", CategoryID: "Food", Confidence: 0.95}, known), ErrInvalidRule)

	err := ValidateRules([]Rule{
		{Name: "a", Pattern: "", CategoryID: "Food", Confidence: 0.95},
		{Name: "b", Pattern: "x", CategoryID: "", Confidence: 0.95},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"a"`)
	assert.Contains(t, err.Error(), `"b"`)
}

func TestParseRules(t *testing.T) {
	doc := `
rules:
  - name: Netflix
    pattern: netflix
    category: Entertainment
    confidence: 0.96
  - name: Taxi
    pattern: '\bTAXI\b'
    regex: true
    category: Transport
`
	rules, err := ParseRules(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "Netflix", rules[0].Name)
	assert.Equal(t, 0, rules[0].Position)
	assert.InDelta(t, 0.96, rules[0].Confidence, 1e-9)
	assert.True(t, rules[1].IsRegex)
	assert.Equal(t, 1, rules[1].Position)
	assert.InDelta(t, MinRuleConfidence, rules[1].Confidence, 1e-9)
	assert.True(t, rules[1].IsActive)

	_, err = ParseRules(strings.NewReader("rules:\n  - name: x\n    pattern: y\n    category: z\n    confidence: 0.3\n"))
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = ParseRules(strings.NewReader("rules:\n  - name: x\n    bogus: 1\n"))
	assert.Error(t, err)

	rules, err = ParseRules(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rules)
}
