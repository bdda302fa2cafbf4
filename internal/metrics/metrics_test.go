package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Fetched("search:brave", 7)
	m.Fetched("search:brave", 3)
	m.ConnectorFailed("feed")
	m.Dropped("missing_title")
	m.Rejected("foreign_signal")
	m.Deduped(2, 1, 1)
	m.Pruned(4)
	at := time.Unix(1741170600, 0)
	m.CycleDone("committed", 3*time.Second, true, at)
	m.CycleDone("failed", time.Second, false, at.Add(time.Hour))

	require.Equal(t, 10.0, testutil.ToFloat64(m.fetched.WithLabelValues("search:brave")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.connectorFailures.WithLabelValues("feed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.drops.WithLabelValues("missing_title")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rejects.WithLabelValues("foreign_signal")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.inserted))
	require.Equal(t, 1.0, testutil.ToFloat64(m.merged))
	require.Equal(t, 4.0, testutil.ToFloat64(m.pruned))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("failed")))
	require.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.lastSuccess))
}

func TestActiveCountryMoves(t *testing.T) {
	m := New()
	m.ActiveCountry("Nigeria")
	m.ActiveCountry("Canada")
	require.Equal(t, 1, testutil.CollectAndCount(m.activeCountry))
	require.Equal(t, 1.0, testutil.ToFloat64(m.activeCountry.WithLabelValues("Canada")))
}

func TestHandlerAndNil(t *testing.T) {
	m := New()
	m.QuotaRemaining(42)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	require.Contains(t, string(body), "eventpipe_search_quota_remaining 42")

	var nilM *Metrics
	require.NotPanics(t, func() {
		nilM.Fetched("x", 1)
		nilM.CycleDone("failed", time.Second, false, time.Now())
		nilM.ActiveCountry("Nigeria")
	})
}
