package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCat  string
		wantConf float64
		wantErr  bool
	}{
		{name: "plain json", content: `{"category":"Groceries","confidence":0.9}`, wantCat: "Groceries", wantConf: 0.9},
		{name: "fenced json", content: "```json\n{\"category\": \"Dining\", \"confidence\": 0.75}\n```", wantCat: "Dining", wantConf: 0.75},
		{name: "prose around json", content: "Sure! {\"category\":\"Fees\",\"confidence\":1.4} hope that helps", wantCat: "Fees", wantConf: 1},
		{name: "line format", content: "CATEGORY: Transport\nCONFIDENCE: 0.8", wantCat: "Transport", wantConf: 0.8},
		{name: "line format percent", content: "CATEGORY: Transport\nCONFIDENCE: 85%", wantCat: "Transport", wantConf: 0.85},
		{name: "empty category", content: `{"category":"","confidence":0.9}`, wantErr: true},
		{name: "garbage", content: "I cannot help with that", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := parseClassification(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCat, resp.Category)
			assert.InDelta(t, tt.wantConf, resp.Confidence, 1e-9)
		})
	}
}

func TestCleanMarkdownWrapper(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanMarkdownWrapper("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanMarkdownWrapper("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanMarkdownWrapper(`  {"a":1}  `))
	assert.Equal(t, "no json", cleanMarkdownWrapper("no json"))
}
