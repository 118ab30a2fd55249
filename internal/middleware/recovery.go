package middleware

import (
	"fmt"
	"runtime/debug"

	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/response"
	"anomali-dm/internal/pkg/xerrors"

	"github.com/labstack/echo/v4"
)

// RecoveryMiddleware 恢复中间件
func RecoveryMiddleware(respWriter response.Writer, logger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					ctx := c.Request().Context()

					logger.ErrorContext(ctx, "应用程序 panic",
						log.Any("panic_value", r),
						log.String("path", c.Request().URL.Path),
						log.String("method", c.Request().Method),
						log.String("stack", string(debug.Stack())),
					)

					appErr := xerrors.FromCode(xerrors.CodeInternalError).
						WithService("echo-middleware", "recovery").
						WithMetadata("panic_value", fmt.Sprintf("%v", r))

					if !c.Response().Committed {
						err = respWriter.WriteError(ctx, c.Response().Writer, appErr)
					}
				}
			}()

			return next(c)
		}
	}
}
