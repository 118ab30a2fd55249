package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/metrics"
	"anomali-dm/internal/pkg/response"
	"anomali-dm/internal/pkg/xerrors"

	"github.com/labstack/echo/v4"
)

// ErrorMiddleware 统一错误处理中间件，处理器返回的错误都在这里写回并计数
func ErrorMiddleware(respWriter response.Writer, logger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err == nil {
				return nil
			}

			// websocket 升级后响应已被接管
			if c.Response().Committed {
				return nil
			}

			ctx := c.Request().Context()
			var appErr *xerrors.AppError
			var echoErr *echo.HTTPError

			switch {
			case errors.As(err, &appErr):
			case errors.As(err, &echoErr):
				appErr = convertEchoError(echoErr)
			default:
				appErr = xerrors.NewWithError(xerrors.CodeInternalError, "系统内部错误", err).
					WithService("echo-middleware", "error_handler")

				logger.ErrorContext(ctx, "未处理的错误",
					log.Any("original_error", err),
					log.String("error_type", fmt.Sprintf("%T", err)),
				)
			}

			metrics.DefaultErrorMetrics.RecordError(appErr, xerrors.GetHTTPStatus(appErr.Code),
				c.Request().Method, metrics.GetServiceName(), time.Since(start).Seconds())
			return respWriter.WriteError(ctx, c.Response().Writer, appErr)
		}
	}
}

// convertEchoError 将 Echo 错误转换为业务错误
func convertEchoError(echoErr *echo.HTTPError) *xerrors.AppError {
	message := fmt.Sprintf("%v", echoErr.Message)
	switch echoErr.Code {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return xerrors.FromCode(xerrors.CodeInvalidParams).WithMetadata("echo_message", message)
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return xerrors.FromCode(xerrors.CodeResourceNotFound).WithMetadata("echo_message", message)
	case http.StatusForbidden:
		return xerrors.FromCode(xerrors.CodeOperationNotAllowed).WithMetadata("echo_message", message)
	case http.StatusConflict:
		return xerrors.FromCode(xerrors.CodeDuplicateResource).WithMetadata("echo_message", message)
	case http.StatusTooManyRequests:
		return xerrors.FromCode(xerrors.CodeRateLimitExceeded).WithMetadata("echo_message", message)
	default:
		return xerrors.FromCode(xerrors.CodeInternalError).
			WithMetadata("echo_code", fmt.Sprintf("%d", echoErr.Code)).
			WithMetadata("echo_message", message)
	}
}
