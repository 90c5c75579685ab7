package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionOpTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_session_op_total",
			Help: "Total game session operations by result and op",
		},
		[]string{"result", "op"},
	)

	sessionOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "game_session_op_duration_ms",
			Help:    "Game session operation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "op"},
	)

	numbersCalled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "numbers_called_total",
			Help: "Total numbers called across all sessions",
		},
	)

	winsDeclared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wins_declared_total",
			Help: "Total verified wins by pattern",
		},
		[]string{"pattern"},
	)
)

// RecordSessionOp 记录场次操作的业务指标
// result: "success" | "fail"
// op: "create" | "register" | "start" | "call" | "pause" | "resume" | "declare" | "cancel"
func RecordSessionOp(result, op string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	o := strings.ToLower(op)
	sessionOpTotal.WithLabelValues(res, o).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	sessionOpDuration.WithLabelValues(res, o).Observe(durMs)
}

// RecordNumberCalled 叫号计数
func RecordNumberCalled() { numbersCalled.Inc() }

// RecordWin 按中奖图案计数
func RecordWin(pattern string) { winsDeclared.WithLabelValues(pattern).Inc() }
