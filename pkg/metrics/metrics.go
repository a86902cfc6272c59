package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	// StoreOperationCounter counts store operations by store and operation.
	StoreOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "universal_store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"store", "operation"},
	)

	// SmartCodeRejectionCounter counts writes rejected by the smart code gate.
	SmartCodeRejectionCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "universal_smart_code_rejections_total",
			Help: "Total number of writes rejected by smart code validation",
		},
	)

	// IsolationDenialCounter counts operations rejected for missing or
	// mismatched organization context.
	IsolationDenialCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "universal_tenant_isolation_denials_total",
			Help: "Total number of operations denied by tenant isolation",
		},
	)

	// MembershipResolutionCounter counts auth resolutions by outcome.
	MembershipResolutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "universal_membership_resolutions_total",
			Help: "Total number of membership resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// DBOperationDuration records backing-store operation durations.
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "universal_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ActiveTokenGauge tracks tokens issued minus tokens expired (best effort).
	ActiveTokenGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "universal_active_tokens",
			Help: "Number of JWT tokens currently issued",
		},
	)
)

// HTTPMetrics holds configuration and state for HTTP metrics collection
type HTTPMetrics struct {
	ServiceName string
	initialized bool
}

// NewHTTPMetrics creates a new HTTP metrics collector for a specific service
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	m := &HTTPMetrics{ServiceName: serviceName}
	m.register()
	return m
}

// register registers the prometheus metrics if they haven't been registered already
func (m *HTTPMetrics) register() {
	if !m.initialized {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDurationHistogram)
		prometheus.MustRegister(StoreOperationCounter)
		prometheus.MustRegister(SmartCodeRejectionCounter)
		prometheus.MustRegister(IsolationDenialCounter)
		prometheus.MustRegister(MembershipResolutionCounter)
		prometheus.MustRegister(DBOperationDuration)
		prometheus.MustRegister(ActiveTokenGauge)
		m.initialized = true
	}
}

// Middleware creates an Echo middleware function that records HTTP request metrics
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			method := c.Request().Method
			path := c.Path()
			statusStr := strconv.Itoa(status)

			RequestCounter.WithLabelValues(m.ServiceName, method, path, statusStr).Inc()
			RequestDurationHistogram.WithLabelValues(m.ServiceName, method, path, statusStr).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// TrackDBOperation returns a function that records the duration of a
// database operation when deferred:
//
//	defer metrics.TrackDBOperation("query")(time.Now())
func TrackDBOperation(operation string) func(time.Time) {
	return func(start time.Time) {
		DBOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// GetPrometheusHandler returns an HTTP handler for exposing Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}
