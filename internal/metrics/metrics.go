// Package metrics exposes pipeline counters in the Prometheus format. Every
// method is a no-op on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventpipe"

type Metrics struct {
	reg *prometheus.Registry

	cycles            *prometheus.CounterVec
	fetched           *prometheus.CounterVec
	connectorFailures *prometheus.CounterVec
	drops             *prometheus.CounterVec
	rejects           *prometheus.CounterVec
	inserted          prometheus.Counter
	merged            prometheus.Counter
	ambiguous         prometheus.Counter
	pruned            prometheus.Counter
	cycleDur          prometheus.Histogram
	lastSuccess       prometheus.Gauge
	activeCountry     *prometheus.GaugeVec
	quotaRemaining    prometheus.Gauge
}

// New registers all collectors on a private registry, plus the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}
	m.cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Pipeline cycles by final state",
	}, []string{"state"})
	m.fetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_fetched_total",
		Help:      "Raw candidates returned by connectors",
	}, []string{"source"})
	m.connectorFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connector_failures_total",
		Help:      "Connector fetches that returned an error",
	}, []string{"source"})
	m.drops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "normalization_drops_total",
		Help:      "Candidates dropped during normalization",
	}, []string{"reason"})
	m.rejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "filter_rejects_total",
		Help:      "Events rejected by the geographic filter",
	}, []string{"reason"})
	m.inserted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_inserted_total",
		Help:      "Canonical events created",
	})
	m.merged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_merged_total",
		Help:      "Events merged into an existing canonical event",
	})
	m.ambiguous = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dedup_ambiguous_total",
		Help:      "Events matching more than one canonical event",
	})
	m.pruned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_pruned_total",
		Help:      "Canonical events removed by retention",
	})
	m.cycleDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of a pipeline cycle",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last committed cycle",
	})
	m.activeCountry = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_country",
		Help:      "1 for the active country profile",
	}, []string{"country"})
	m.quotaRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "search_quota_remaining",
		Help:      "Search API requests left today",
	})
	m.reg.MustRegister(
		m.cycles, m.fetched, m.connectorFailures, m.drops, m.rejects,
		m.inserted, m.merged, m.ambiguous, m.pruned,
		m.cycleDur, m.lastSuccess, m.activeCountry, m.quotaRemaining,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// CycleDone records a finished cycle. committed marks it as a success.
func (m *Metrics) CycleDone(state string, d time.Duration, committed bool, at time.Time) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(state).Inc()
	m.cycleDur.Observe(d.Seconds())
	if committed {
		m.lastSuccess.Set(float64(at.Unix()))
	}
}

func (m *Metrics) Fetched(source string, n int) {
	if m == nil {
		return
	}
	m.fetched.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) ConnectorFailed(source string) {
	if m == nil {
		return
	}
	m.connectorFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.drops.WithLabelValues(reason).Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejects.WithLabelValues(reason).Inc()
}

func (m *Metrics) Deduped(inserted, merged, ambiguous int) {
	if m == nil {
		return
	}
	m.inserted.Add(float64(inserted))
	m.merged.Add(float64(merged))
	m.ambiguous.Add(float64(ambiguous))
}

func (m *Metrics) Pruned(n int) {
	if m == nil {
		return
	}
	m.pruned.Add(float64(n))
}

// ActiveCountry moves the active marker to id.
func (m *Metrics) ActiveCountry(id string) {
	if m == nil {
		return
	}
	m.activeCountry.Reset()
	m.activeCountry.WithLabelValues(id).Set(1)
}

func (m *Metrics) QuotaRemaining(n int) {
	if m == nil {
		return
	}
	m.quotaRemaining.Set(float64(n))
}
