package metrics

import (
	"strconv"
	"time"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpReqTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by path, method and status",
		},
		[]string{"path", "method", "status"},
	)

	httpReqDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "HTTP request duration in ms",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"path", "method"},
	)

	httpInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "HTTP requests currently being served",
		},
	)
)

const metricsStartKey = "_metrics_start"

// HTTPMetricsFilter 在路由前打点，与 HTTPMetricsAfter 配对
func HTTPMetricsFilter(ctx *context.Context) {
	httpInflight.Inc()
	ctx.Input.SetData(metricsStartKey, time.Now())
}

// HTTPMetricsAfter 响应完成后记录耗时与状态码
func HTTPMetricsAfter(ctx *context.Context) {
	httpInflight.Dec()
	v := ctx.Input.GetData(metricsStartKey)
	start, ok := v.(time.Time)
	if !ok || start.IsZero() {
		return
	}
	path := ctx.Input.URL()
	method := ctx.Input.Method()
	status := ctx.ResponseWriter.Status
	if status == 0 {
		// beego 不显式 WriteHeader 时状态为 0，按 200 归档
		status = 200
	}
	httpReqDuration.WithLabelValues(path, method).Observe(float64(time.Since(start).Milliseconds()))
	httpReqTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}
