package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"upper cases and collapses", "  uber   eats  ", "UBER EATS"},
		{"strips alphanumeric codes", "UBER *TRIP 4F92A", "UBER TRIP"},
		{"strips punctuation", "NETFLIX.COM", "NETFLIX COM"},
		{"drops reference marker and code", "SINPE MOVIL REF 88271 JUAN PEREZ", "SINPE MOVIL JUAN PEREZ"},
		{"drops authorization code", "WALMART AUTH: 0099A1 SAN JOSE", "WALMART SAN JOSE"},
		{"keeps marker without code", "PAGO NO APLICADO", "PAGO NO APLICADO"},
		{"folds accents", "Café Británico", "CAFE BRITANICO"},
		{"drops bare numbers", "AMAZON MKTPLACE 123-456-7890", "AMAZON MKTPLACE"},
		{"empty stays empty", "", ""},
		{"only punctuation", "*** ---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestGeneralize(t *testing.T) {
	tests := []struct {
		name       string
		normalized string
		want       string
	}{
		{"channel prefix kept", "SINPE MARIA PEREZ", "SINPE MARIA*"},
		{"stacked channel prefix", "SINPE MOVIL JUAN PEREZ", "SINPE MOVIL JUAN*"},
		{"merchant only", "UBER TRIP", "UBER*"},
		{"domain merchant", "NETFLIX COM", "NETFLIX*"},
		{"skips stop words", "THE HOME DEPOT", "HOME*"},
		{"skips single letters", "A B STARBUCKS", "STARBUCKS*"},
		{"channel only", "SINPE", "SINPE*"},
		{"late channel word is significant", "JUAN PAGO", "JUAN*"},
		{"nothing significant", "Y A", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Generalize(tt.normalized))
		})
	}
}

func TestPatternDeterministic(t *testing.T) {
	first := Pattern("UBER *TRIP 4F92A")
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Pattern("UBER *TRIP 4F92A"))
	}
	assert.Equal(t, "UBER*", first)
}

func TestSimilarTextsShareAPattern(t *testing.T) {
	a := Pattern("SINPE MARIA PEREZ")
	b := Pattern("sinpe maria lopez ref 2231")
	assert.Equal(t, a, b)
	assert.True(t, MatchesPattern(Normalize("SINPE MARIA GOMEZ"), a))
	assert.False(t, MatchesPattern(Normalize("SINPE JUAN PEREZ"), a))
	assert.False(t, MatchesPattern("ANYTHING", ""))
}

func TestText(t *testing.T) {
	assert.Equal(t, "NETFLIX COM", Text("netflix.com", ""))
	assert.Equal(t, "NETFLIX COM", Text("ignored", "netflix com"))
	assert.Equal(t, "", Text("   ", "  "))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "NETFLIX*", Key("NETFLIX COM"))
	assert.Equal(t, "DE LA", Key("DE LA"), "falls back to the text when nothing generalizes")
	assert.Equal(t, "", Key(""))
}
