package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartela_booking_total",
			Help: "Total cartela booking operations by result and op",
		},
		[]string{"result", "op"},
	)

	bookingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cartela_booking_duration_ms",
			Help:    "Cartela booking operation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "op"},
	)
)

// RecordBooking 记录彩票卡预订相关操作的业务指标
// result: "success" | "fail"
// op: "book" | "unbook" | "reset" | "import"
func RecordBooking(result, op string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	bookingTotal.WithLabelValues(res, op).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	bookingDuration.WithLabelValues(res, op).Observe(durMs)
}
