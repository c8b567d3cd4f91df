package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Document outcomes for DocumentsTotal.
const (
	OutcomeIndexed  = "indexed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeIgnored  = "ignored"
)

// Consumer results for ConsumerMessagesTotal.
const (
	ResultHandled     = "handled"
	ResultUndecodable = "undecodable"
	ResultFailed      = "failed"
)

// Ingestion Prometheus metrics.
var (
	DocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brokerdex",
			Name:      "documents_total",
			Help:      "Start documents processed, by outcome",
		},
		[]string{"outcome"},
	)

	RebuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "brokerdex",
			Name:      "rebuild_duration_seconds",
			Help:      "Index rebuild duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"status"},
	)

	ConsumerMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brokerdex",
			Name:      "consumer_messages_total",
			Help:      "Kafka messages consumed, by result",
		},
		[]string{"result"},
	)
)

var registerIngestOnce sync.Once

// RegisterIngestMetrics registers the ingestion metrics. Safe to call more than once.
func RegisterIngestMetrics() {
	registerIngestOnce.Do(func() {
		prometheus.MustRegister(DocumentsTotal)
		prometheus.MustRegister(RebuildDuration)
		prometheus.MustRegister(ConsumerMessagesTotal)
	})
}
