package postprocess

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
)

func TestCategorize(t *testing.T) {
	cases := map[string]string{
		"Afrobeat Concert Lagos":    "Music",
		"Lagos Tech Summit":         "Technology",
		"Founders Networking Night": "Business",
		"Nike Art Gallery opening":  "Arts",
		"Lagos City Marathon":       "Sports",
		"Jollof Tasting Evening":    "Food",
		"Data Science Workshop":     "Education",
		"Stand-up Comedy Special":   "Entertainment",
		"Town hall":                 DefaultCategory,
		"Said the painter":          DefaultCategory,
	}
	for in, want := range cases {
		require.Equal(t, want, Categorize(in), in)
	}
}

func TestApplyRules(t *testing.T) {
	f := false
	eng, err := New(config.PostProcessConfig{
		Builtin: &f,
		Keywords: []config.KeywordRule{
			{When: []string{"free", "entry"}, All: true, Labels: map[string]string{"price": "free"}},
			{When: []string{"virtual", "online"}, Labels: map[string]string{"format": "online"}},
		},
		Regex: []config.RegexRule{{Field: "url", Expr: `eventbrite\.`, Labels: map[string]string{"platform": "eventbrite"}}},
		Maps:  []config.MapRule{{Field: "country", Mapping: map[string]string{"Nigeria": "West Africa"}, OutKey: "region"}},
	})
	require.NoError(t, err)

	ev := eng.Apply(model.NormalizedEvent{
		Title:   "Online Design Meetup",
		Summary: "Free entry for all",
		URL:     "https://www.eventbrite.com/e/123",
		Country: "Nigeria",
	})
	require.Equal(t, map[string]string{
		"price":    "free",
		"format":   "online",
		"platform": "eventbrite",
		"region":   "West Africa",
	}, ev.Labels)

	ev = eng.Apply(model.NormalizedEvent{Title: "Free talk", Country: "Ghana"})
	require.Nil(t, ev.Labels, "partial all-rule and unmapped country add nothing")
}

func TestApplyBuiltinAndOverride(t *testing.T) {
	eng, err := New(config.PostProcessConfig{
		Keywords: []config.KeywordRule{{When: []string{"devfest"}, Labels: map[string]string{CategoryLabel: "Community"}}},
	})
	require.NoError(t, err)

	in := model.NormalizedEvent{Title: "Lagos Tech Summit", Labels: map[string]string{"keep": "me"}}
	out := eng.Apply(in)
	require.Equal(t, "Technology", out.Labels[CategoryLabel])
	require.Equal(t, "me", out.Labels["keep"])
	require.NotContains(t, in.Labels, CategoryLabel, "input labels are not mutated")

	out = eng.Apply(model.NormalizedEvent{Title: "DevFest Abuja"})
	require.Equal(t, "Community", out.Labels[CategoryLabel])
}

func TestNewRejectsBadRegex(t *testing.T) {
	_, err := New(config.PostProcessConfig{Regex: []config.RegexRule{{Field: "title", Expr: "("}}})
	require.Error(t, err)
}
