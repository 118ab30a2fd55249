// File: internal/pkg/metrics/error_metrics.go
package metrics

import (
	"strconv"
	"strings"

	"anomali-dm/internal/pkg/xerrors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrorMetrics 对外返回的错误指标，由错误中间件记录
type ErrorMetrics struct {
	ErrorsByCode          *prometheus.CounterVec
	HTTPResponses         *prometheus.CounterVec
	ErrorResponseDuration *prometheus.HistogramVec
}

// DefaultErrorMetrics 默认实例
var DefaultErrorMetrics *ErrorMetrics

func init() {
	DefaultErrorMetrics = NewErrorMetricsWithRegistry(Namespace, GetRegisterer())
}

// NewErrorMetricsWithRegistry 使用指定注册表创建
func NewErrorMetricsWithRegistry(namespace string, registerer prometheus.Registerer) *ErrorMetrics {
	factory := promauto.With(registerer)

	return &ErrorMetrics{
		ErrorsByCode: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"service", "method", "code", "category", "level", "retryable"},
		),
		HTTPResponses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_responses_total",
				Help:      "Total number of HTTP responses by status code",
			},
			[]string{"service", "status_code", "method"},
		),
		ErrorResponseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "error_response_duration_seconds",
				Help:      "Error response duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "method", "code"},
		),
	}
}

// RecordError 记录一次错误响应，duration 单位秒
func (m *ErrorMetrics) RecordError(appErr *xerrors.AppError, statusCode int, method, service string, duration float64) {
	if appErr == nil {
		return
	}

	service = normalizeServiceName(service)
	method = normalizeMethod(method)
	code := strconv.Itoa(appErr.Code.ToInt())

	m.ErrorsByCode.WithLabelValues(
		service,
		method,
		code,
		appErr.Category,
		appErr.Level.String(),
		strconv.FormatBool(appErr.IsRetryable()),
	).Inc()
	m.HTTPResponses.WithLabelValues(service, strconv.Itoa(statusCode), method).Inc()

	if duration > 0 {
		m.ErrorResponseDuration.WithLabelValues(service, method, code).Observe(duration)
	}
}

func normalizeMethod(method string) string {
	if method == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(method)
}
