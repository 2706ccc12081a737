package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	eventsPublished *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	lifecycleOps    *prometheus.CounterVec
	dbQueriesTotal  *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
	tokensIssued    *prometheus.CounterVec
}

// NewMetrics builds and registers the collectors. A nil registerer means the
// Prometheus default registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_events_published_total",
				Help: "Lifecycle events sent to the bus by routing key and status.",
			},
			[]string{"routing_key", "status"},
		),
		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "account_event_publish_duration_seconds",
				Help:    "Bus publish latency in seconds by routing key.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"routing_key"},
		),
		lifecycleOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_lifecycle_operations_total",
				Help: "Account create/update/delete operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		dbQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_db_queries_total",
				Help: "Total DB method calls by method and status.",
			},
			[]string{"method", "status"},
		),
		dbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "account_db_query_duration_seconds",
				Help:    "DB method duration in seconds by method and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
		tokensIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_tokens_issued_total",
				Help: "Token pairs issued by reason.",
			},
			[]string{"reason"},
		),
	}

	registerer.MustRegister(
		m.eventsPublished,
		m.publishDuration,
		m.lifecycleOps,
		m.dbQueriesTotal,
		m.dbQueryDuration,
		m.tokensIssued,
	)

	return m
}

func (m *Metrics) ObservePublish(routingKey, status string, duration time.Duration) {
	if m == nil {
		return
	}

	m.eventsPublished.WithLabelValues(routingKey, status).Inc()
	m.publishDuration.WithLabelValues(routingKey).Observe(duration.Seconds())
}

func (m *Metrics) ObserveLifecycle(operation, outcome string) {
	if m == nil {
		return
	}

	m.lifecycleOps.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveDB(method, status string, duration time.Duration) {
	if m == nil {
		return
	}

	m.dbQueriesTotal.WithLabelValues(method, status).Inc()
	m.dbQueryDuration.WithLabelValues(method, status).Observe(duration.Seconds())
}

func (m *Metrics) IncTokensIssued(reason string) {
	if m == nil {
		return
	}

	m.tokensIssued.WithLabelValues(reason).Inc()
}
