package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application.
// Counters are the only mutable state shared between in-flight queries
// and ingestion workers; the prometheus client keeps increments safe
// under concurrency.
type Metrics struct {
	// Query path
	QueryRequests prometheus.Counter
	QueryLatency  prometheus.Histogram
	QueryErrors   *prometheus.CounterVec

	// Ingestion path
	IngestionCycles   prometheus.Counter
	IngestionLatency  prometheus.Histogram
	IngestionFailures prometheus.Counter
	DeadCycles        prometheus.Counter
	DocumentsWritten  prometheus.Counter

	// Transport
	APIRequests   prometheus.Counter
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics registers all metrics against reg. Pass
// prometheus.DefaultRegisterer in main and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueryRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_query_total",
			Help: "Total number of queries processed",
		}),
		QueryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_query_latency_seconds",
			Help:    "Query processing latency",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}, // generation can take minutes
		}),
		QueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_query_errors_total",
			Help: "Total number of query pipeline errors by stage",
		}, []string{"stage"}),

		IngestionCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_cycles_total",
			Help: "Total number of ingestion cycle attempts",
		}),
		IngestionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingestion_cycle_latency_seconds",
			Help:    "Ingestion cycle latency",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		IngestionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_cycle_failures_total",
			Help: "Total number of failed ingestion cycle attempts",
		}),
		DeadCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_cycles_dead_total",
			Help: "Total number of cycles abandoned after exhausting retries",
		}),
		DocumentsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_documents_written_total",
			Help: "Total number of documents written to the store",
		}),

		APIRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of REST API requests",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Number of active WebSocket connections",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_messages_total",
			Help: "Total number of WebSocket messages by direction",
		}, []string{"direction"}), // "inbound" or "outbound"
	}
}

// RecordQueryError increments the per-stage error counter.
func (m *Metrics) RecordQueryError(stage string) {
	m.QueryErrors.WithLabelValues(stage).Inc()
}

// RecordWebSocketConnect records a new WebSocket connection.
func (m *Metrics) RecordWebSocketConnect() {
	m.WSConnections.Inc()
}

// RecordWebSocketDisconnect records a WebSocket disconnection.
func (m *Metrics) RecordWebSocketDisconnect() {
	m.WSConnections.Dec()
}

// RecordWebSocketMessage records one WebSocket message.
func (m *Metrics) RecordWebSocketMessage(direction string) {
	m.WSMessages.WithLabelValues(direction).Inc()
}
