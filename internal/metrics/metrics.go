// Package metrics owns the Prometheus registry shared by the HTTP layer, the
// read cache and the change-notification registry. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry       *prometheus.Registry
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	cacheEvents    *prometheus.CounterVec
	changeEvents   *prometheus.CounterVec
	activeChannels prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "folio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_cache_events_total",
			Help: "Read cache hits, misses and invalidations.",
		}, []string{"event"}),
		changeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_change_events_total",
			Help: "Change notifications received per table.",
		}, []string{"table", "event"}),
		activeChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "folio_notify_channels",
			Help: "Change-notification channels currently open.",
		}),
	}
	reg.MustRegister(
		m.httpRequests, m.httpDuration, m.cacheEvents, m.changeEvents, m.activeChannels,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheEvents.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheEvents.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) CacheInvalidated() {
	if m != nil {
		m.cacheEvents.WithLabelValues("invalidate").Inc()
	}
}

func (m *Metrics) ChangeReceived(table, event string) {
	if m != nil {
		m.changeEvents.WithLabelValues(table, event).Inc()
	}
}

func (m *Metrics) ChannelOpened() {
	if m != nil {
		m.activeChannels.Inc()
	}
}

func (m *Metrics) ChannelClosed() {
	if m != nil {
		m.activeChannels.Dec()
	}
}
