package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"anomali-dm/internal/pkg/xerrors"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withServiceName(t *testing.T, name string) {
	original := GetServiceName()
	SetServiceName(name)
	t.Cleanup(func() {
		SetServiceName(original)
	})
}

func TestDMMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDMMetricsWithRegistry("test", reg)

	m.RecordTurn("ok", 2*time.Second)
	m.RecordTurn("ok", time.Second)
	m.RecordTurn("completion_failed", time.Second)
	m.RecordUpdateBlock("malformed")
	m.RecordParseWarning("unknown_action_type")
	m.RecordAction("updateInventory", "applied")
	m.RecordAction("useSpellSlot", "skipped")
	m.RecordWriteConflict("inventory")
	m.RecordCompletion("openai", 3*time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.TurnsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TurnsTotal.WithLabelValues("completion_failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpdateBlocksTotal.WithLabelValues("malformed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ParseWarnings.WithLabelValues("unknown_action_type")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActionsTotal.WithLabelValues("useSpellSlot", "skipped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WriteConflicts.WithLabelValues("inventory")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CompletionDuration))
}

func TestResourceMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewResourceMetricsWithRegistry("test", reg)
	withServiceName(t, "dm")

	m.RecordDBPoolStats("", "postgres", 10, 4, 6, 25, 3, 2*time.Second)
	m.RecordRedisOperation("SETNX", true, 2*time.Millisecond, "")
	m.RecordRedisOperation("GET", false, time.Millisecond, "")
	m.RecordRedisPoolStats(8, 3, 1, "")

	assert.Equal(t, float64(4), testutil.ToFloat64(m.DBConnections.WithLabelValues("dm", "postgres", "in_use")))
	assert.Equal(t, float64(25), testutil.ToFloat64(m.DBMaxConnections.WithLabelValues("dm", "postgres")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.DBWaitCount.WithLabelValues("dm", "postgres")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RedisOperations.WithLabelValues("GET", "error", "dm")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.RedisConnectionPool.WithLabelValues("active", "dm")))
}

func TestErrorMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewErrorMetricsWithRegistry("test", reg)
	withServiceName(t, "dm")

	m.RecordError(xerrors.FromCode(xerrors.CodeDMCompletionFailure), 502, "post", "", 0.5)
	m.RecordError(nil, 500, "GET", "", 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.ErrorsByCode.WithLabelValues("dm", "POST", "900006", "dm", "CRITICAL", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPResponses.WithLabelValues("dm", "502", "POST")))
}

func TestMiddleware_RouteTemplate(t *testing.T) {
	tests := []struct {
		name          string
		registerRoute string
		requestPath   string
		method        string
		status        int
	}{
		{
			name:          "参数化路由记录模板",
			registerRoute: "/api/v1/dm/campaigns/:campaign_id/log",
			requestPath:   "/api/v1/dm/campaigns/c-42/log",
			method:        http.MethodGet,
			status:        http.StatusOK,
		},
		{
			name:          "错误状态码",
			registerRoute: "/api/v1/dm/respond",
			requestPath:   "/api/v1/dm/respond",
			method:        http.MethodPost,
			status:        http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			m := NewHTTPMetricsWithRegistry("test", reg)
			withServiceName(t, "dm")

			e := echo.New()
			e.Use(MiddlewareWithMetrics(m))
			e.Add(tt.method, tt.registerRoute, func(c echo.Context) error {
				return c.NoContent(tt.status)
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.requestPath, nil))
			require.Equal(t, tt.status, rec.Code)

			got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("dm", tt.registerRoute, tt.method, strconv.Itoa(tt.status)))
			assert.Equal(t, float64(1), got)
			assert.Equal(t, float64(0), testutil.ToFloat64(m.RequestsInProgress.WithLabelValues("dm")))
		})
	}
}

func TestMiddleware_SkipsHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegistry("test", reg)

	e := echo.New()
	e.Use(MiddlewareWithMetrics(m))
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, 0, testutil.CollectAndCount(m.RequestsTotal))
}
