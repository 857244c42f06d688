// Package monitoring provides a Prometheus-backed implementation of
// db.MetricsCollector so every statement executed through the toolkit is
// counted and timed.
package monitoring

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector records per-statement metrics. Statements are grouped
// by their leading SQL verb (select, insert, update, delete, ...) rather
// than full query text to keep label cardinality bounded.
type PrometheusCollector struct {
	queryTotal    *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	registry      *prometheus.Registry
}

// NewPrometheusCollector creates a collector with its own registry.
func NewPrometheusCollector() *PrometheusCollector {
	registry := prometheus.NewRegistry()

	c := &PrometheusCollector{
		queryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "userkit_queries_total",
				Help: "Total number of statements executed",
			},
			[]string{"operation", "status"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "userkit_query_duration_seconds",
				Help:    "Statement execution duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
			},
			[]string{"operation"},
		),
		registry: registry,
	}

	registry.MustRegister(c.queryTotal, c.queryDuration)
	return c
}

// RecordQuery implements db.MetricsCollector.
func (c *PrometheusCollector) RecordQuery(query string, duration time.Duration, success bool) {
	op := sqlVerb(query)
	status := "ok"
	if !success {
		status = "error"
	}
	c.queryTotal.WithLabelValues(op, status).Inc()
	c.queryDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// Handler returns an http.Handler exposing the collector's registry in the
// Prometheus text format, ready to mount on /metrics.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func sqlVerb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
