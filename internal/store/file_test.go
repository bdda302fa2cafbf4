package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func canonical(id, country string, start time.Time, prov ...model.Provenance) model.CanonicalEvent {
	return model.CanonicalEvent{
		ID: id, Title: "Event " + id, TitleKey: "event " + id, Start: start, Country: country,
		Provenance: prov, FirstSeen: t0, LastUpdated: t0,
	}
}

func commitAll(t *testing.T, s Store, country string, evs ...model.CanonicalEvent) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx, country)
	require.NoError(t, err)
	for _, ev := range evs {
		require.NoError(t, tx.Upsert(ctx, ev))
	}
	require.NoError(t, tx.Commit(ctx))
}

func TestFileStoreDurableAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	s, err := OpenFile(path)
	require.NoError(t, err)

	commitAll(t, s, "Nigeria",
		canonical("b", "Nigeria", t0.Add(48*time.Hour), model.Provenance{Source: "s1", URL: "u1"}),
		canonical("a", "Nigeria", t0.Add(24*time.Hour)))
	commitAll(t, s, "Canada", canonical("c", "Canada", t0))

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	got, err := reopened.GetAll(context.Background(), "Nigeria")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].ID, "ordered by start")
	require.Equal(t, "b", got[1].ID)
	require.Equal(t, []model.Provenance{{Source: "s1", URL: "u1"}}, got[1].Provenance)

	other, err := reopened.GetAll(context.Background(), "Canada")
	require.NoError(t, err)
	require.Len(t, other, 1)
}

func TestFileTxRollbackAndVisibility(t *testing.T) {
	s, err := OpenFile("")
	require.NoError(t, err)
	ctx := context.Background()

	tx, err := s.Begin(ctx, "Nigeria")
	require.NoError(t, err)
	require.NoError(t, tx.Upsert(ctx, canonical("a", "Nigeria", t0)))

	cands, err := tx.FindCandidates(ctx, t0.Add(-time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, cands, 1, "own writes are visible inside the tx")

	outside, err := s.GetAll(ctx, "Nigeria")
	require.NoError(t, err)
	require.Empty(t, outside, "uncommitted writes are not")

	require.Error(t, tx.Upsert(ctx, canonical("x", "Canada", t0)), "tx is scoped to one country")
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx))

	all, err := s.GetAll(ctx, "Nigeria")
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestFileTxSingleWriterPerCountry(t *testing.T) {
	s, err := OpenFile("")
	require.NoError(t, err)
	ctx := context.Background()

	tx, err := s.Begin(ctx, "Nigeria")
	require.NoError(t, err)

	other, err := s.Begin(ctx, "Canada")
	require.NoError(t, err, "different countries do not contend")
	require.NoError(t, other.Commit(ctx))

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.Begin(blocked, "Nigeria")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Commit(ctx))
	again, err := s.Begin(ctx, "Nigeria")
	require.NoError(t, err)
	require.NoError(t, again.Rollback(ctx))
}

func TestFileUpsertMergesProvenanceKeepsDisplay(t *testing.T) {
	s, err := OpenFile("")
	require.NoError(t, err)
	ctx := context.Background()
	commitAll(t, s, "Nigeria", canonical("a", "Nigeria", t0, model.Provenance{Source: "s2", URL: "u2"}))

	next := canonical("a", "Nigeria", t0, model.Provenance{Source: "s1", URL: "u1"})
	next.Title = "Different wording"
	next.LastUpdated = t0.Add(time.Hour)
	commitAll(t, s, "Nigeria", next)

	got, err := s.GetAll(ctx, "Nigeria")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Event a", got[0].Title)
	require.Equal(t, []model.Provenance{{Source: "s1", URL: "u1"}, {Source: "s2", URL: "u2"}}, got[0].Provenance)
	require.Equal(t, t0.Add(time.Hour), got[0].LastUpdated)
}

func TestFilePruneResetStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	s, err := OpenFile(path)
	require.NoError(t, err)
	ctx := context.Background()

	fresh := canonical("fresh", "Nigeria", t0, model.Provenance{Source: "s1", URL: "u"})
	fresh.LastUpdated = t0.AddDate(0, 0, 10)
	stale := canonical("stale", "Nigeria", t0, model.Provenance{Source: "s1", URL: "v"}, model.Provenance{Source: "s2", URL: "v"})
	stale.NeedsReconciliation = true
	commitAll(t, s, "Nigeria", fresh, stale)
	commitAll(t, s, "Canada", canonical("ca", "Canada", t0))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, st.Total)
	require.Equal(t, map[string]int{"Nigeria": 2, "Canada": 1}, st.ByCountry)
	require.Equal(t, map[string]int{"s1": 2, "s2": 1}, st.BySource)
	require.Equal(t, 1, st.NeedsReconciliation)

	n, err := s.Prune(ctx, t0.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, s.Reset(ctx, "Nigeria"))
	reopened, err := OpenFile(path)
	require.NoError(t, err)
	st, err = reopened.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, st.Total)
}

func TestFileFindFiltersAndPages(t *testing.T) {
	s, err := OpenFile("")
	require.NoError(t, err)
	ctx := context.Background()

	jazz := canonical("jazz", "Nigeria", t0.Add(2*time.Hour), model.Provenance{Source: "feed:techcabal", URL: "j"})
	jazz.Title, jazz.Location = "Eko Jazz Night", "Victoria Island"
	summit := canonical("summit", "Nigeria", t0, model.Provenance{Source: "search:brave", URL: "s"})
	summit.Title, summit.Location = "Lagos Tech Summit", "Landmark Centre, Lagos"
	mixer := canonical("mixer", "Nigeria", t0.Add(time.Hour), model.Provenance{Source: "search:brave", URL: "m"})
	mixer.Title, mixer.Location = "Founders Mixer", "Lagos"
	commitAll(t, s, "Nigeria", jazz, summit, mixer)
	commitAll(t, s, "Canada", canonical("ca", "Canada", t0, model.Provenance{Source: "search:brave", URL: "c"}))

	page, err := s.Find(ctx, Query{Country: "Nigeria", Text: "LAGOS"})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, "summit", page.Events[0].ID)
	require.Equal(t, "mixer", page.Events[1].ID)

	page, err = s.Find(ctx, Query{Country: "Nigeria", Source: "Search:Brave", Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Events, 1)
	require.Equal(t, "mixer", page.Events[0].ID)

	page, err = s.Find(ctx, Query{Country: "Nigeria", Offset: 10, Limit: 5})
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.NotNil(t, page.Events)
	require.Empty(t, page.Events)

	page, err = s.Find(ctx, Query{Country: "Nigeria", Text: "jazz", Source: "search:brave"})
	require.NoError(t, err)
	require.Zero(t, page.Total)
}
