// Package metrics 定义了服务暴露给 Prometheus 的指标。
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvdom_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tvdom_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	FollowOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvdom_follow_operations_total",
			Help: "Follow and unfollow operations by result",
		},
		[]string{"op", "result"},
	)

	NotificationsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tvdom_notifications_purged_total",
			Help: "Notifications removed by the retention sweeper",
		},
	)

	MediaCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvdom_media_cache_lookups_total",
			Help: "Media metadata cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)

// Middleware 记录请求次数和耗时。未匹配路由统一记为 "unmatched"。
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 /metrics 的处理函数。
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Result 将错误折算为标签值。
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
