// Package metrics exposes load and fetch counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	Registry      *prometheus.Registry
	Loads         *prometheus.CounterVec
	FetchErrors   prometheus.Counter
	FetchDuration prometheus.Histogram
	WarmRuns      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stocklens_loads_total",
			Help: "Price table loads by source (cache or remote).",
		}, []string{"source"}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stocklens_fetch_errors_total",
			Help: "Remote fetches that failed.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stocklens_fetch_duration_seconds",
			Help:    "Latency of remote fetches.",
			Buckets: prometheus.DefBuckets,
		}),
		WarmRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stocklens_warm_tickers_total",
			Help: "Tickers processed by cache warming, by outcome.",
		}, []string{"outcome"}),
	}
	m.Registry.MustRegister(m.Loads, m.FetchErrors, m.FetchDuration, m.WarmRuns)
	return m
}

// ObserveLoad counts one load served from source.
func (m *Metrics) ObserveLoad(source string) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(source).Inc()
}

// ObserveFetch records a remote fetch.
func (m *Metrics) ObserveFetch(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
	if err != nil {
		m.FetchErrors.Inc()
	}
}

// ObserveWarm counts one warmed ticker with outcome "ok" or "error".
func (m *Metrics) ObserveWarm(outcome string) {
	if m == nil {
		return
	}
	m.WarmRuns.WithLabelValues(outcome).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
