package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/logging"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/metrics"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/model"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/pipeline"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/service"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/store"
)

type queue struct {
	pending bool
	running bool
}

func (q *queue) CancelCurrent() bool { return q.running }

func (q *queue) TriggerNow() bool {
	if q.pending {
		return false
	}
	q.pending = true
	return true
}

type reporter struct{ rep *pipeline.Report }

func (r reporter) LastReport() (pipeline.Report, bool) {
	if r.rep == nil {
		return pipeline.Report{}, false
	}
	return *r.rep, true
}

func (r reporter) Phase() pipeline.Phase { return pipeline.Idle }

type harness struct {
	router *gin.Engine
	store  *store.FileStore
	queue  *queue
}

func setup(t *testing.T, rep *pipeline.Report) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg, err := country.NewRegistry(country.Builtin(), "Nigeria")
	require.NoError(t, err)
	st, err := store.OpenFile("")
	require.NoError(t, err)
	q := &queue{}
	m := metrics.New()
	svc := service.New(reg, st, q, reporter{rep}, service.Options{Metrics: m})
	log := logrus.NewEntry(logging.NewDiscard())
	return &harness{router: NewRouter(svc, m, "/metrics", log), store: st, queue: q}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	h := setup(t, nil)
	rec := h.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `eventpipe_active_country{country="Nigeria"} 1`)
}

func TestCountries(t *testing.T) {
	h := setup(t, nil)
	rec := h.do(http.MethodGet, "/api/countries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode(t, rec)["countries"], 5)

	rec = h.do(http.MethodGet, "/api/countries/Canada", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Canada", decode(t, rec)["id"])

	rec = h.do(http.MethodGet, "/api/countries/Atlantis", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, decode(t, rec)["error"], "unknown country")
}

func TestSetActive(t *testing.T) {
	h := setup(t, nil)
	rec := h.do(http.MethodPut, "/api/countries/active", `{"country":"United Kingdom"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "United Kingdom", decode(t, rec)["active"])
	require.True(t, h.queue.pending)

	rec = h.do(http.MethodPut, "/api/countries/active", `{"country":"Atlantis"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPut, "/api/countries/active", `{bad`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/metrics", "")
	require.Contains(t, rec.Body.String(), `eventpipe_active_country{country="United Kingdom"} 1`)
	require.NotContains(t, rec.Body.String(), `country="Nigeria"`)
}

func TestEvents(t *testing.T) {
	h := setup(t, nil)
	ctx := context.Background()
	tx, err := h.store.Begin(ctx, "Nigeria")
	require.NoError(t, err)
	require.NoError(t, tx.Upsert(ctx, model.CanonicalEvent{
		ID: "e1", Title: "Lagos Tech Summit", TitleKey: "lagos tech summit",
		Start: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), Country: "Nigeria",
		Provenance: []model.Provenance{{Source: "a", URL: "https://a"}},
	}))
	require.NoError(t, tx.Commit(ctx))

	rec := h.do(http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.EqualValues(t, 1, body["count"])

	rec = h.do(http.MethodGet, "/api/events?country=Canada", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, decode(t, rec)["count"])
	require.True(t, strings.Contains(rec.Body.String(), `"events":[]`))

	rec = h.do(http.MethodGet, "/api/events?country=Atlantis", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCycles(t *testing.T) {
	h := setup(t, nil)
	rec := h.do(http.MethodGet, "/api/cycles/last", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPost, "/api/cycles", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, true, decode(t, rec)["queued"])
	rec = h.do(http.MethodPost, "/api/cycles", "")
	require.Equal(t, false, decode(t, rec)["queued"])

	rep := &pipeline.Report{CycleID: "c-9", State: pipeline.PartialFailure, Country: "Nigeria",
		Failures: []pipeline.ConnectorFailure{{Source: "brave", Err: context.DeadlineExceeded}}}
	h = setup(t, rep)
	rec = h.do(http.MethodGet, "/api/cycles/last", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "partial_failure", body["state"])
	failures := body["failures"].([]any)
	require.Equal(t, "context deadline exceeded", failures[0].(map[string]any)["error"])
}

func TestStats(t *testing.T) {
	h := setup(t, nil)
	rec := h.do(http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "Nigeria", body["active_country"])
	require.EqualValues(t, 0, body["total"])
}

func (h *harness) seed(t *testing.T, countryID string, evs ...model.CanonicalEvent) {
	t.Helper()
	ctx := context.Background()
	tx, err := h.store.Begin(ctx, countryID)
	require.NoError(t, err)
	for _, ev := range evs {
		require.NoError(t, tx.Upsert(ctx, ev))
	}
	require.NoError(t, tx.Commit(ctx))
}

func nigerianEvents() []model.CanonicalEvent {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	mk := func(i int, title, loc, src string) model.CanonicalEvent {
		return model.CanonicalEvent{
			ID: title, Title: title, TitleKey: title, Location: loc, Country: "Nigeria",
			Start:      start.Add(time.Duration(i) * time.Hour),
			Provenance: []model.Provenance{{Source: src, URL: "https://" + src}},
		}
	}
	return []model.CanonicalEvent{
		mk(0, "Lagos Tech Summit", "Landmark Centre", "search:brave"),
		mk(1, "Eko Jazz Night", "Lagos", "feed:techcabal"),
		mk(2, "Abuja Startup Mixer", "Wuse II", "search:brave"),
	}
}

func TestEventsQuery(t *testing.T) {
	h := setup(t, nil)
	h.seed(t, "Nigeria", nigerianEvents()...)

	rec := h.do(http.MethodGet, "/api/events?search=lagos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.EqualValues(t, 2, body["total"], "title or location")
	require.EqualValues(t, 20, body["limit"])

	rec = h.do(http.MethodGet, "/api/events?source=search:brave&page=2&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	require.EqualValues(t, 2, body["total"])
	require.EqualValues(t, 1, body["count"])
	require.EqualValues(t, 2, body["page"])
	require.Equal(t, "Abuja Startup Mixer", body["events"].([]any)[0].(map[string]any)["title"])

	rec = h.do(http.MethodGet, "/api/events?page=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(http.MethodGet, "/api/events?limit=-4", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/search?q=jazz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decode(t, rec)["total"])
	rec = h.do(http.MethodGet, "/api/search", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetEvents(t *testing.T) {
	h := setup(t, nil)
	h.seed(t, "Nigeria", nigerianEvents()...)
	h.seed(t, "Canada", model.CanonicalEvent{ID: "ca", Title: "Toronto Tech Week", TitleKey: "toronto tech week",
		Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Country: "Canada"})

	rec := h.do(http.MethodDelete, "/api/events?country=Atlantis", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodDelete, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{"Nigeria"}, decode(t, rec)["reset"])
	rec = h.do(http.MethodGet, "/api/events", "")
	require.EqualValues(t, 0, decode(t, rec)["total"])
	rec = h.do(http.MethodGet, "/api/events?country=Canada", "")
	require.EqualValues(t, 1, decode(t, rec)["total"])

	rec = h.do(http.MethodDelete, "/api/events?all=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode(t, rec)["reset"], 5)
	rec = h.do(http.MethodGet, "/api/stats", "")
	require.EqualValues(t, 0, decode(t, rec)["total"])
}

func TestCancelCycle(t *testing.T) {
	h := setup(t, nil)
	rec := h.do(http.MethodPost, "/api/cycles/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, decode(t, rec)["cancelled"])

	h.queue.running = true
	rec = h.do(http.MethodPost, "/api/cycles/cancel", "")
	require.Equal(t, true, decode(t, rec)["cancelled"])
}
