package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_http_requests_total",
			Help: "Total number of HTTP requests processed by the realtime service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realtime_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"class"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"class", "event"},
	)
	messagesDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_messages_delivered_total",
			Help: "Messages emitted to at least one live session, by path.",
		},
		[]string{"path"},
	)
	messagesQueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_queued_total",
			Help: "Messages persisted with no recipient session online.",
		},
	)
	callSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_call_signals_total",
			Help: "Call signaling events routed by the service.",
		},
		[]string{"event"},
	)
	registryOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_registry_ops_total",
			Help: "Session registry operations by storage tier.",
		},
		[]string{"tier", "op"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		messagesDeliveredTotal,
		messagesQueuedTotal,
		callSignalsTotal,
		registryOpsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(class string) {
	wsActiveConnections.WithLabelValues(class).Inc()
}

func DecWSActive(class string) {
	wsActiveConnections.WithLabelValues(class).Dec()
}

func IncWSEvent(class, event string) {
	wsEventsTotal.WithLabelValues(class, event).Inc()
}

func IncMessageDelivered(path string) {
	messagesDeliveredTotal.WithLabelValues(path).Inc()
}

func IncMessageQueued() {
	messagesQueuedTotal.Inc()
}

func IncCallSignal(event string) {
	callSignalsTotal.WithLabelValues(event).Inc()
}

func IncRegistryOp(tier, op string) {
	registryOpsTotal.WithLabelValues(tier, op).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
