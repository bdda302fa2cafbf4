package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
)

func candidate(title, date string) model.RawCandidate {
	return model.RawCandidate{
		Source:      "search:brave",
		Title:       title,
		DateText:    date,
		Location:    "  Landmark Centre,   Lagos ",
		URL:         " https://example.ng/summit ",
		RetrievedAt: ref,
		Scoped:      true,
	}
}

func TestNormalizeKeepsDisplayTitle(t *testing.T) {
	n := New()
	ev, err := n.Normalize(candidate("  Lagos Tech   Summit '24 ", "March 20, 2025"), "Nigeria")
	require.NoError(t, err)
	require.Equal(t, "Lagos Tech Summit '24", ev.Title)
	require.Equal(t, "lagos tech summit 2024", ev.TitleKey)
	require.Equal(t, "Landmark Centre, Lagos", ev.Location)
	require.Equal(t, "landmark centre lagos", ev.LocationKey)
	require.Equal(t, "https://example.ng/summit", ev.URL)
	require.Equal(t, "Nigeria", ev.Country)
	require.True(t, ev.Scoped)
	require.True(t, day(2025, 3, 20).Equal(ev.Start))
}

func TestNormalizeDrops(t *testing.T) {
	n := New()
	cases := []struct {
		c    model.RawCandidate
		want Reason
	}{
		{candidate("", "March 20, 2025"), MissingTitle},
		{candidate("   ", "March 20, 2025"), MissingTitle},
		{candidate("!!!", "March 20, 2025"), MissingTitle},
		{candidate("Lagos Tech Summit", ""), MissingDate},
		{candidate("Lagos Tech Summit", "date to be announced"), UnparseableDate},
	}
	for _, c := range cases {
		_, err := n.Normalize(c.c, "Nigeria")
		var drop *Drop
		require.True(t, errors.As(err, &drop), c.want)
		require.Equal(t, c.want, drop.Reason)
		require.Equal(t, "search:brave", drop.Source)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := New()
	c := candidate("Afrobeats Night", "next Friday")
	a, err := n.Normalize(c, "Nigeria")
	require.NoError(t, err)
	b, err := n.Normalize(c, "Nigeria")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.True(t, day(2025, 3, 7).Equal(a.Start))
}

func TestNormalizeConvertsStartToRetrievalZone(t *testing.T) {
	n := New()
	ev, err := n.Normalize(candidate("Lagos Tech Summit", "2025-03-08T23:30:00Z"), "Nigeria")
	require.NoError(t, err)
	require.Equal(t, lagos, ev.Start.Location())
	y, m, d := ev.Start.Date()
	require.Equal(t, []int{2025, 3, 9}, []int{y, int(m), d}, "calendar day follows the profile zone")
}
