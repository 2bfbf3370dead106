package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Wallet operations, labelled by the machine code they ended with.
	WalletOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_operations_total",
			Help: "Wallet operations by operation and result code",
		},
		[]string{"op", "code"},
	)
	WalletAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_amount_moved_total",
			Help: "Sum of committed transaction amounts",
		},
		[]string{"type"}, // deposit|withdraw|payment
	)

	// Payment gateway
	GatewayDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_decisions_total",
			Help: "Payment gateway verification outcomes",
		},
		[]string{"outcome"}, // approved|declined|error
	)
	GatewayLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_latency_seconds",
			Help:    "Latency of payment gateway verification calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Worker kuyruğu
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)

	initOnce sync.Once
)

// /metrics endpoint'i için handler
var Handler = promhttp.Handler

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestLatency,
			WalletOperationsTotal,
			WalletAmountTotal,
			GatewayDecisions,
			GatewayLatency,
			WorkerQueueDepth,
		)
	})
}

func RecordWalletOp(op, code string) {
	WalletOperationsTotal.WithLabelValues(op, code).Inc()
}

func RecordAmount(txType string, amount int64) {
	WalletAmountTotal.WithLabelValues(txType).Add(float64(amount))
}

func RecordGateway(outcome string, seconds float64) {
	GatewayDecisions.WithLabelValues(outcome).Inc()
	GatewayLatency.Observe(seconds)
}
