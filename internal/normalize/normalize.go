// Package normalize canonicalizes raw transaction descriptions and derives
// the generalized lookup patterns used by the rule, personal and global tiers.
//
// Every function here is pure: the same input always yields the same output.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Wildcard terminates every generalized pattern.
const Wildcard = "*"

// referenceMarkers introduce a reference number or authorization code.
// A marker followed by a token containing digits is dropped with it.
var referenceMarkers = map[string]bool{
	"REF":     true,
	"REFNO":   true,
	"AUTH":    true,
	"AUT":     true,
	"AUTORIZ": true,
	"CONF":    true,
	"TRX":     true,
	"TXN":     true,
	"ID":      true,
	"NO":      true,
	"NRO":     true,
	"NUM":     true,
}

// channelTokens describe how money moved rather than who received it.
// They are kept as a prefix of the generalized pattern.
var channelTokens = map[string]bool{
	"SINPE":         true,
	"MOVIL":         true,
	"TRANSFERENCIA": true,
	"TRANSF":        true,
	"TEF":           true,
	"ACH":           true,
	"ZELLE":         true,
	"VENMO":         true,
	"PAYPAL":        true,
	"POS":           true,
	"COMPRA":        true,
	"PAGO":          true,
	"SQ":            true,
	"TST":           true,
	"DEBITO":        true,
	"CREDITO":       true,
	"CHECKCARD":     true,
	"PURCHASE":      true,
}

// stopWords never count as the significant token.
var stopWords = map[string]bool{
	"DE":   true,
	"DEL":  true,
	"LA":   true,
	"EL":   true,
	"THE":  true,
	"AND":  true,
	"Y":    true,
	"A":    true,
	"EN":   true,
	"AT":   true,
	"TO":   true,
	"FROM": true,
	"PARA": true,
	"POR":  true,
	"WWW":  true,
}

// Normalize upper-cases raw, folds accents, strips reference numbers,
// authorization codes and punctuation, and collapses whitespace.
func Normalize(raw string) string {
	folded := foldAccents(raw)
	folded = strings.ToUpper(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if referenceMarkers[tok] && i+1 < len(tokens) && hasDigit(tokens[i+1]) {
			i++
			continue
		}
		if hasDigit(tok) {
			continue
		}
		kept = append(kept, tok)
	}

	return strings.Join(kept, " ")
}

// Generalize derives the wildcard-suffixed lookup key from normalized text:
// leading channel tokens, the first significant token, then "*".
// It returns the empty string when no significant token exists.
func Generalize(normalized string) string {
	tokens := strings.Fields(normalized)

	lead := 0
	for lead < len(tokens) && channelTokens[tokens[lead]] {
		lead++
	}
	prefix := tokens[:lead]

	for _, tok := range tokens[lead:] {
		if significant(tok) {
			return strings.Join(append(prefix[:lead:lead], tok), " ") + Wildcard
		}
	}

	// Channel-only descriptions still generalize to their channel.
	if lead > 0 {
		return strings.Join(prefix, " ") + Wildcard
	}
	return ""
}

// Pattern is Generalize(Normalize(raw)).
func Pattern(raw string) string {
	return Generalize(Normalize(raw))
}

// Key is the per-user lookup key for normalized text: its generalized
// pattern, or the text itself when nothing generalizes.
func Key(normalized string) string {
	if p := Generalize(normalized); p != "" {
		return p
	}
	return normalized
}

// Text returns the normalized text to use for a descriptor: the
// upstream-provided normalization when present, otherwise Normalize(raw).
// Upstream text is normalized again so both paths agree.
func Text(raw, normalized string) string {
	if strings.TrimSpace(normalized) != "" {
		return Normalize(normalized)
	}
	return Normalize(raw)
}

// MatchesPattern reports whether normalized text falls under a generalized pattern.
func MatchesPattern(normalized, pattern string) bool {
	return pattern != "" && Generalize(normalized) == pattern
}

func significant(tok string) bool {
	if len([]rune(tok)) < 2 {
		return false
	}
	if stopWords[tok] {
		return false
	}
	return !hasDigit(tok)
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
