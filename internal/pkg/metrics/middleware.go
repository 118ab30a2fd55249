// File: internal/pkg/metrics/middleware.go
package metrics

import (
	"time"

	"anomali-dm/internal/pkg/ctxkey"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware 写入 HTTP 方法到 context，并按路由模板记录请求指标
func Middleware() echo.MiddlewareFunc {
	return MiddlewareWithMetrics(DefaultHTTPMetrics)
}

// MiddlewareWithMetrics 使用指定的指标实例
func MiddlewareWithMetrics(m *HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := ctxkey.WithValue(req.Context(), ctxkey.HTTPMethod, req.Method)
			c.SetRequest(req.WithContext(ctx))

			if IsHealthCheckEndpoint(req.URL.Path) {
				return next(c)
			}

			service := GetServiceName()
			m.RequestsInProgress.WithLabelValues(service).Inc()
			defer m.RequestsInProgress.WithLabelValues(service).Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}
			m.RecordRequest(service, c.Path(), req.Method, status, time.Since(start))
			return err
		}
	}
}

// EchoHandler 暴露 /metrics
func EchoHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// EchoHandlerFor 暴露指定 Gatherer 的指标，测试和自定义注册表使用
func EchoHandlerFor(g prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
