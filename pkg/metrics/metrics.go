// Package metrics provides Prometheus metrics for the folio relay server
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay server
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Chat relay metrics
	ChatStreamsInFlight prometheus.Gauge
	ChatStreamsTotal    *prometheus.CounterVec
	ChatDeltasTotal     prometheus.Counter
	UpstreamErrorsTotal *prometheus.CounterVec

	// Lead metrics
	LeadsTotal *prometheus.CounterVec

	// Database metrics
	DbOperationsTotal   *prometheus.CounterVec
	DbOperationDuration *prometheus.HistogramVec

	ConfigReloadsTotal prometheus.Counter
}

// New creates all metrics and registers them on reg. A nil reg leaves them
// unregistered, which tests use.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{}

	m.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	m.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	m.ChatStreamsInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_chat_streams_in_flight",
			Help: "Number of chat replies currently streaming",
		},
	)

	m.ChatStreamsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_chat_streams_total",
			Help: "Total number of chat streams by result",
		},
		[]string{"result"},
	)

	m.ChatDeltasTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "folio_chat_deltas_total",
			Help: "Total number of content deltas relayed to clients",
		},
	)

	m.UpstreamErrorsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_upstream_errors_total",
			Help: "Total number of model provider failures",
		},
		[]string{"provider", "stage"},
	)

	m.LeadsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_leads_total",
			Help: "Total number of lead submissions by result",
		},
		[]string{"result"},
	)

	m.DbOperationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_db_operations_total",
			Help: "Total number of lead store operations",
		},
		[]string{"operation", "status"},
	)

	m.DbOperationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_db_operation_duration_seconds",
			Help:    "Duration of lead store operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	m.ConfigReloadsTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "folio_config_reloads_total",
			Help: "Total number of applied config reloads",
		},
	)

	return m
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(route, method, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordDbOperation records a lead store operation
func (m *Metrics) RecordDbOperation(operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.DbOperationsTotal.WithLabelValues(operation, status).Inc()
	m.DbOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
