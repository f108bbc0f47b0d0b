package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerTransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "point_ledger_transfers_total",
		Help: "Point transfers processed by the ledger engine, labeled by type and outcome",
	}, []string{"type", "outcome"})

	LedgerTransferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "point_ledger_transfer_duration_seconds",
		Help:    "Latency of ledger transfers including conflict retries",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"type"})

	LedgerConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "point_ledger_conflict_retries_total",
		Help: "Ledger transactions retried after a storage conflict",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "point_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "point_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	OutboxMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "point_outbox_messages_total",
		Help: "Outbox messages handled by the sender, labeled by result",
	}, []string{"result"})
)

// ObserveTransfer 记录一次转账的结果和耗时
func ObserveTransfer(transferType, outcome string, elapsed time.Duration) {
	LedgerTransfersTotal.WithLabelValues(transferType, outcome).Inc()
	LedgerTransferDuration.WithLabelValues(transferType).Observe(elapsed.Seconds())
}
