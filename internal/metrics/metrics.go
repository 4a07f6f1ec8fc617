// Package metrics exposes Prometheus collectors for the HTTP API and the
// database pool.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sundayezeilo/pinboard/internal/httpx"
)

// Metrics owns a private registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inflight        *prometheus.GaugeVec
}

// Config holds configuration for Metrics.
type Config struct {
	Namespace string            // metric name prefix, e.g. "pinboard"
	Pool      *pgxpool.Pool     // optional; adds pool gauges
	Labels    prometheus.Labels // constant labels such as service version
}

// New creates and registers the collectors.
func New(cfg Config) (*Metrics, error) {
	ns := sanitizeNamespace(cfg.Namespace)
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "http_requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: cfg.Labels,
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: cfg.Labels,
		}, []string{"method", "route"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "http_inflight_requests",
			Help:        "HTTP requests currently being served.",
			ConstLabels: cfg.Labels,
		}, []string{"method"}),
	}

	cs := []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.inflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if cfg.Pool != nil {
		cs = append(cs, newPoolCollector(ns, cfg.Pool.Stat))
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count, latency and in-flight requests. Routes
// are labelled by their chi pattern so ids do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		m.inflight.WithLabelValues(method).Inc()
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			m.inflight.WithLabelValues(method).Dec()

			route := httpx.RoutePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(ww, r)
	})
}

func sanitizeNamespace(ns string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, ns)
}

// poolCollector reports pgxpool statistics at scrape time.
type poolCollector struct {
	stat func() *pgxpool.Stat

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	max      *prometheus.Desc
	waits    *prometheus.Desc
}

func newPoolCollector(ns string, stat func() *pgxpool.Stat) *poolCollector {
	name := func(n string) string { return prometheus.BuildFQName(ns, "db_pool", n) }
	return &poolCollector{
		stat:     stat,
		acquired: prometheus.NewDesc(name("acquired_conns"), "Connections currently in use.", nil, nil),
		idle:     prometheus.NewDesc(name("idle_conns"), "Idle connections.", nil, nil),
		total:    prometheus.NewDesc(name("total_conns"), "Open connections.", nil, nil),
		max:      prometheus.NewDesc(name("max_conns"), "Configured maximum connections.", nil, nil),
		waits:    prometheus.NewDesc(name("empty_acquire_total"), "Acquires that had to wait for a connection.", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.waits
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	if s == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
}
