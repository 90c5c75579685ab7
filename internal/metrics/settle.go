package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_total",
			Help: "Total session settlements by result",
		},
		[]string{"result"},
	)

	settleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_duration_ms",
			Help:    "Session settlement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)

	ledgerOpTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_op_total",
			Help: "Total wallet ledger operations by result and op",
		},
		[]string{"result", "op"},
	)
)

// RecordSettlement 记录结算业务指标
// result: "success" | "duplicate" | "fail"
func RecordSettlement(result string, started time.Time) {
	if result != "success" && result != "duplicate" {
		result = "fail"
	}
	settleTotal.WithLabelValues(result).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	settleDuration.WithLabelValues(result).Observe(durMs)
}

// RecordLedgerOp 记录账务操作指标
// op: "transfer" | "credit_load" | "withdrawal" | "commission_convert"
func RecordLedgerOp(result, op string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	ledgerOpTotal.WithLabelValues(res, op).Inc()
}
