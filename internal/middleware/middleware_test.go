package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/response"
	"anomali-dm/internal/pkg/xerrors"
)

func newTestEcho(h echo.HandlerFunc, mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	respWriter := response.NewResponseHandler(log.NewNopLogger(), "test")
	e.Use(RecoveryMiddleware(respWriter, log.NewNopLogger()))
	e.Use(ErrorMiddleware(respWriter, log.NewNopLogger()))
	e.Use(mw...)
	e.GET("/api/v1/dm/x", h)
	return e
}

func serve(e *echo.Echo) (*httptest.ResponseRecorder, response.Response) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dm/x", nil))
	var body response.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestErrorMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   xerrors.ErrorCode
	}{
		{name: "业务错误", err: xerrors.NewCampaignNotFoundError("c-1"), wantStatus: 404, wantCode: xerrors.CodeDMCampaignNotFound},
		{name: "包装后的业务错误", err: errors.Join(errors.New("ctx"), xerrors.NewCompletionError("openai", errors.New("x"))), wantStatus: 502, wantCode: xerrors.CodeDMCompletionFailure},
		{name: "Echo错误", err: echo.NewHTTPError(http.StatusBadRequest, "bad"), wantStatus: 400, wantCode: xerrors.CodeInvalidParams},
		{name: "限流", err: echo.ErrTooManyRequests, wantStatus: 429, wantCode: xerrors.CodeRateLimitExceeded},
		{name: "未知错误", err: errors.New("boom"), wantStatus: 500, wantCode: xerrors.CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho(func(echo.Context) error { return tt.err })
			rec, body := serve(e)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, int(tt.wantCode), body.Code)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	e := newTestEcho(func(echo.Context) error { panic("kaboom") })
	rec, body := serve(e)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, int(xerrors.CodeInternalError), body.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	respWriter := response.NewResponseHandler(log.NewNopLogger(), "test")
	e := newTestEcho(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RateLimitMiddleware(respWriter, 1))

	first, _ := serve(e)
	require.Equal(t, http.StatusNoContent, first.Code)

	var limited *httptest.ResponseRecorder
	var body response.Response
	for i := 0; i < 5 && limited == nil; i++ {
		rec, b := serve(e)
		if rec.Code != http.StatusNoContent {
			limited, body = rec, b
		}
	}
	require.NotNil(t, limited, "超出速率后应被拒绝")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, int(xerrors.CodeRateLimitExceeded), body.Code)
}

func TestShouldSkipAndSanitize(t *testing.T) {
	cfg := DefaultLoggingConfig()
	assert.True(t, shouldSkip("/metrics", cfg.SkipPaths))
	assert.True(t, shouldSkip("/swagger/index.html", cfg.SkipPaths))
	assert.False(t, shouldSkip("/api/v1/dm/respond", cfg.SkipPaths))

	headers := sanitizeHeaders(map[string][]string{
		"Authorization": {"Bearer x"},
		"Content-Type":  {"application/json"},
	}, cfg.SensitiveHeaders)
	assert.Equal(t, "***REDACTED***", headers["Authorization"])
	assert.Equal(t, "application/json", headers["Content-Type"])
}

func TestPeekBodyKeepsFullBody(t *testing.T) {
	payload := `{"campaign_id":"c1","user_input":"` + strings.Repeat("a", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dm/respond", strings.NewReader(payload))

	logged := peekBody(req, 16)
	assert.Equal(t, payload[:16]+"... (truncated)", logged)

	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(rest), "后续 handler 仍能读到完整请求体")
}

func TestLoggingMiddlewareBodyReachesHandler(t *testing.T) {
	cfg := DefaultLoggingConfig()
	cfg.DetailedLog = true
	cfg.LogRequestBody = true
	cfg.MaxBodySize = 8

	var got string
	e := echo.New()
	e.Use(LoggingMiddlewareWithConfig(log.NewNopLogger(), cfg))
	e.POST("/api/v1/dm/respond", func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		got = string(b)
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dm/respond", strings.NewReader(`{"user_input":"open the door"}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, `{"user_input":"open the door"}`, got)
}
