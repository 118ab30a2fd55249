package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"anomali-dm/internal/pkg/ctxkey"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/trace"

	"github.com/labstack/echo/v4"
)

const redacted = "***REDACTED***"

// LoggingConfig 访问日志配置
type LoggingConfig struct {
	SkipPaths []string

	// DetailedLog 额外记录 query、UA 与脱敏后的请求头
	DetailedLog bool

	// LogRequestBody 记录请求体前 MaxBodySize 字节（仅开发环境打开，玩家输入会进日志）
	LogRequestBody bool
	MaxBodySize    int64

	SensitiveHeaders []string
}

// DefaultLoggingConfig 默认配置
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/swagger",
			"/favicon.ico",
		},
		MaxBodySize: 10 * 1024,
		SensitiveHeaders: []string{
			"Authorization",
			"Cookie",
			"X-Api-Key",
			"X-Goog-Api-Key",
			"Sec-Websocket-Key",
		},
	}
}

// LoggingMiddleware 使用默认配置
func LoggingMiddleware(logger log.Logger) echo.MiddlewareFunc {
	return LoggingMiddlewareWithConfig(logger, DefaultLoggingConfig())
}

// LoggingMiddlewareWithConfig 每个请求一条完成日志，级别随状态码变化；详细模式下另记一条开始日志
func LoggingMiddlewareWithConfig(logger log.Logger, config *LoggingConfig) echo.MiddlewareFunc {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if shouldSkip(req.URL.Path, config.SkipPaths) {
				return next(c)
			}

			start := time.Now()
			ctx := req.Context()
			traceID := trace.GetTraceID(ctx)

			if config.DetailedLog {
				logger.DebugContext(ctx, "请求开始", requestDetails(c, config, traceID)...)
			}

			err := next(c)

			// handler 可能已经把战役/回合写进 context
			ctx = c.Request().Context()
			status := c.Response().Status
			fields := []any{
				log.String("method", req.Method),
				log.String("path", req.URL.Path),
				log.String("route", c.Path()),
				log.Int("status_code", status),
				log.Duration("duration_ms", time.Since(start).Milliseconds()),
				log.Int64("response_size", c.Response().Size),
				log.String("client_ip", c.RealIP()),
				log.String("trace_id", traceID),
			}
			if campaignID := campaignOf(c); campaignID != "" {
				fields = append(fields, log.String("campaign_id", campaignID))
			}
			if turnID := ctxkey.GetString(ctx, ctxkey.TurnID); turnID != "" {
				fields = append(fields, log.String("turn_id", turnID))
			}
			if isWebsocket(req) {
				fields = append(fields, log.Bool("websocket", true))
			}

			switch {
			case err != nil:
				fields = append(fields, log.Any("error", err))
				logger.ErrorContext(ctx, "请求处理出错", fields...)
			case status >= 500:
				logger.ErrorContext(ctx, "请求完成（服务器错误）", fields...)
			case status >= 400:
				logger.WarnContext(ctx, "请求完成（客户端错误）", fields...)
			default:
				logger.InfoContext(ctx, "请求完成", fields...)
			}
			return err
		}
	}
}

func requestDetails(c echo.Context, config *LoggingConfig, traceID string) []any {
	req := c.Request()
	fields := []any{
		log.String("method", req.Method),
		log.String("path", req.URL.Path),
		log.String("user_agent", req.UserAgent()),
		log.String("trace_id", traceID),
	}
	if req.URL.RawQuery != "" {
		fields = append(fields, log.String("query", req.URL.RawQuery))
	}
	if headers := sanitizeHeaders(req.Header, config.SensitiveHeaders); len(headers) > 0 {
		fields = append(fields, log.Any("headers", headers))
	}
	// websocket 握手没有请求体
	if config.LogRequestBody && !isWebsocket(req) {
		if body := peekBody(req, config.MaxBodySize); body != "" {
			fields = append(fields, log.String("request_body", body))
		}
	}
	return fields
}

func campaignOf(c echo.Context) string {
	if id := ctxkey.GetString(c.Request().Context(), ctxkey.CampaignID); id != "" {
		return id
	}
	return c.Param("campaign_id")
}

func isWebsocket(req *http.Request) bool {
	return strings.EqualFold(req.Header.Get("Upgrade"), "websocket")
}

func shouldSkip(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

func sanitizeHeaders(headers http.Header, sensitiveHeaders []string) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(v) == 0 {
			continue
		}
		result[k] = v[0]
		for _, sensitive := range sensitiveHeaders {
			if strings.EqualFold(k, sensitive) {
				result[k] = redacted
				break
			}
		}
	}
	return result
}

// peekBody 读取前 maxSize 字节用于日志，请求体原样交还给后续 handler
func peekBody(req *http.Request, maxSize int64) string {
	if req.Body == nil || req.Body == http.NoBody {
		return ""
	}

	head, err := io.ReadAll(io.LimitReader(req.Body, maxSize))
	req.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), req.Body), req.Body}
	if err != nil {
		return ""
	}

	body := string(head)
	if int64(len(head)) >= maxSize {
		body += "... (truncated)"
	}
	return body
}
