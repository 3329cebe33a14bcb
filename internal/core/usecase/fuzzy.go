package usecase

import (
	"strings"
	"unicode"

	"github.com/xrash/smetrics"
)

// fieldSimilarity scores a query value against a stored field value in [0,1].
// It takes the better of Jaro-Winkler similarity (tolerant of typos) and
// token-set similarity (tolerant of word order and formatting).
func fieldSimilarity(query, stored string) float64 {
	qn := normalizeFieldValue(query)
	sn := normalizeFieldValue(stored)
	if qn == "" || sn == "" {
		return 0
	}
	if qn == sn {
		return 1
	}

	jw := smetrics.JaroWinkler(qn, sn, 0.7, 4)
	overlap := tokenSetSimilarity(toTokenSet(qn), toTokenSet(sn))
	if overlap > jw {
		return overlap
	}
	return jw
}

// normalizeFieldValue lowers the case and collapses every non-alphanumeric
// run into a single space, so "PR-567" and "pr 567" compare equal.
func normalizeFieldValue(s string) string {
	return strings.Join(splitAlphaNumLower(s), " ")
}

// tokenSetSimilarity is the Jaccard similarity of two token sets.
func tokenSetSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matches := 0
	for token := range a {
		if _, ok := b[token]; ok {
			matches++
		}
	}
	union := len(a) + len(b) - matches
	if union == 0 {
		return 0
	}
	return float64(matches) / float64(union)
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func queryTokens(s string) []string {
	return splitAlphaNumLower(s)
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
