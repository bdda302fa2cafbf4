package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenSet(t *testing.T) {
	s := TokenSet{}
	require.True(t, s.Similar("Lagos Tech Summit 2024", "Lagos Tech Summit '24"))
	require.True(t, s.Similar("LAGOS TECH SUMMIT", "lagos tech summit!"))
	require.True(t, s.Similar("Lagos Tech Summit", "The Lagos Tech Summit 2024"))
	require.False(t, s.Similar("Lagos Tech Summit", "Lagos Music Summit"))
	require.False(t, s.Similar("", "Lagos"))

	strict := TokenSet{Threshold: 1}
	require.False(t, strict.Similar("Lagos Tech Summit", "Lagos Tech Summit 2024"))
}

func TestEditRatio(t *testing.T) {
	s := EditRatio{}
	require.True(t, s.Similar("Afrobeats Festival", "Afrobeat Festival"))
	require.True(t, s.Similar("Lagos Tech Summit 2024", "Lagos Tech Summit '24"))
	require.False(t, s.Similar("Lagos Tech Summit", "Abuja Food Fair"))
	require.InDelta(t, 1.0, EditScore("Café", "cafe"), 1e-9)
}

func TestLevenshtein(t *testing.T) {
	require.Equal(t, 3, levenshtein([]rune("kitten"), []rune("sitting")))
	require.Equal(t, 0, levenshtein([]rune(""), []rune("")))
	require.Equal(t, 4, levenshtein([]rune(""), []rune("abcd")))
}

func TestNewSimilarity(t *testing.T) {
	require.IsType(t, EditRatio{}, NewSimilarity("levenshtein", 0.9))
	require.IsType(t, TokenSet{}, NewSimilarity("", 0))
}
