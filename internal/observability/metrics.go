package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "messenger"

// Status view outcomes.
const (
	ViewRecorded = "recorded"
	ViewRepeat   = "repeat"
	ViewDenied   = "denied"
	ViewExpired  = "expired"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	grpcServerHandledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "grpc",
		Name:      "server_handled_total",
		Help:      "Unary RPCs completed on the internal gRPC server.",
	}, []string{"grpc_service", "grpc_method", "grpc_code"})

	wsActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Open chat websocket connections.",
	})

	wsEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "events_total",
		Help:      "Websocket lifecycle events by kind.",
	}, []string{"event"})

	amqpPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "amqp",
		Name:      "publish_errors_total",
		Help:      "Domain events the broker refused.",
	})

	messagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Messages stored, by message type.",
	}, []string{"type"})

	statusViewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_views_total",
		Help:      "Status view attempts, by outcome.",
	}, []string{"result"})
)

// HTTPMetricsMiddleware records count and latency per route pattern. Requests
// that matched no route share the "unmatched" label.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, code).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// GRPCServerMetricsUnaryInterceptor counts unary RPCs by status code.
func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// splitFullMethod splits "/pkg.Service/Method".
func splitFullMethod(fullMethod string) (service, method string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || service == "" || method == "" {
		return "unknown", "unknown"
	}
	return service, method
}

func IncWSActive() { wsActiveConnections.Inc() }

func DecWSActive() { wsActiveConnections.Dec() }

func IncWSEvent(event string) { wsEventsTotal.WithLabelValues(event).Inc() }

func IncAMQPPublishError() { amqpPublishErrorsTotal.Inc() }

func IncMessageSent(messageType string) { messagesSentTotal.WithLabelValues(messageType).Inc() }

func IncStatusView(result string) { statusViewsTotal.WithLabelValues(result).Inc() }
