package middleware

import (
	"net/http"

	"anomali-dm/internal/pkg/metrics"
	"anomali-dm/internal/pkg/response"
	"anomali-dm/internal/pkg/xerrors"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware 按客户端 IP 限流，健康检查与指标接口不限流
// echo 的限流器把 Deny/ErrorHandler 的返回值交给 c.Error 而不是返回给上层中间件，
// 所以这里直接写回统一响应，c.Error 看到已提交的响应后不再处理
func RateLimitMiddleware(respWriter response.Writer, perSecond int) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = 100
	}

	write := func(c echo.Context, appErr *xerrors.AppError) error {
		metrics.DefaultErrorMetrics.RecordError(appErr, xerrors.GetHTTPStatus(appErr.Code),
			c.Request().Method, metrics.GetServiceName(), 0)
		if err := response.EchoError(c, respWriter, appErr); err != nil {
			return echo.NewHTTPError(http.StatusTooManyRequests)
		}
		return nil
	}

	config := middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return metrics.IsHealthCheckEndpoint(c.Request().URL.Path)
		},
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(perSecond)),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return write(c, xerrors.FromCode(xerrors.CodeInvalidRequest).
				WithService("echo-middleware", "rate_limiter").
				WithMetadata("client_ip", c.RealIP()))
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return write(c, xerrors.FromCode(xerrors.CodeRateLimitExceeded).
				WithService("echo-middleware", "rate_limiter").
				WithMetadata("client_ip", identifier))
		},
	}

	return middleware.RateLimiterWithConfig(config)
}
