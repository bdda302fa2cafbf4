// Package textkey builds the comparison forms of free text shared by the
// normalizer, the geographic filter and the deduplicator.
package textkey

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var shortYear = regexp.MustCompile(`(^|[^\p{L}\p{N}])['’‘](\d{2})\b`)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "of": {}, "in": {}, "at": {}, "on": {}, "for": {}, "to": {},
}

// Fold lowercases s, strips accents, expands '24 style years to 2024 and
// collapses every run of non letter/digit runes into a single space.
func Fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = stripMarks(s)
	s = shortYear.ReplaceAllString(s, "${1}20${2}")
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
			continue
		}
		if !prevSpace {
			b.WriteByte(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens returns the folded words of s with stopwords removed.
func Tokens(s string) []string {
	fields := strings.Fields(Fold(s))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := stopwords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TokenSet is Tokens as a set.
func TokenSet(s string) map[string]struct{} {
	toks := Tokens(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// ContainsPhrase reports whether the folded phrase occurs in the folded
// haystack on word boundaries. Both arguments must already be folded.
func ContainsPhrase(haystack, phrase string) bool {
	if phrase == "" || haystack == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+phrase+" ")
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
