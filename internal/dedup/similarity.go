package dedup

import (
	"strings"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/textkey"
)

// Similarity decides whether two titles name the same event.
type Similarity interface {
	Similar(a, b string) bool
}

// TokenSet compares titles by Sørensen–Dice overlap of their folded word
// sets.
type TokenSet struct {
	Threshold float64
}

func (s TokenSet) Similar(a, b string) bool {
	return DiceScore(a, b) >= s.threshold()
}

func (s TokenSet) threshold() float64 {
	if s.Threshold <= 0 {
		return 0.75
	}
	return s.Threshold
}

// DiceScore is 2|A∩B| / (|A|+|B|) over the token sets of a and b.
func DiceScore(a, b string) float64 {
	sa, sb := textkey.TokenSet(a), textkey.TokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	shared := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(sa)+len(sb))
}

// EditRatio compares folded titles by normalized Levenshtein distance.
type EditRatio struct {
	Threshold float64
}

func (s EditRatio) Similar(a, b string) bool {
	t := s.Threshold
	if t <= 0 {
		t = 0.85
	}
	return EditScore(a, b) >= t
}

// EditScore is 1 - distance/maxLen over the folded, stopword-free titles.
func EditScore(a, b string) float64 {
	ra := []rune(strings.Join(textkey.Tokens(a), " "))
	rb := []rune(strings.Join(textkey.Tokens(b), " "))
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// NewSimilarity maps a config name to a strategy. Unknown names fall back to
// token_set.
func NewSimilarity(name string, threshold float64) Similarity {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "edit_ratio", "levenshtein":
		return EditRatio{Threshold: threshold}
	default:
		return TokenSet{Threshold: threshold}
	}
}
