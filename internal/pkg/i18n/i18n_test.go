package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"anomali-dm/internal/pkg/xerrors"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestParseAcceptLanguage(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   language.Tag
	}{
		{name: "空头部使用默认", header: "", want: language.Chinese},
		{name: "英文优先", header: "en-US,en;q=0.9,zh;q=0.8", want: language.English},
		{name: "中文优先", header: "zh-CN,zh;q=0.9,en;q=0.8", want: language.Chinese},
		{name: "不支持的语言回退默认", header: "fr-FR", want: language.Chinese},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAcceptLanguage(tt.header))
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "Campaign not found", GetErrorMessage(xerrors.CodeDMCampaignNotFound, language.English))
	assert.Equal(t, "战役不存在", GetErrorMessage(xerrors.CodeDMCampaignNotFound, language.Chinese))
	assert.Equal(t, "Unknown error", GetErrorMessage(xerrors.ErrorCode(123), language.English))
}

func TestMiddlewareQueryParamWins(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?lang=en", nil)
	req.Header.Set("Accept-Language", "zh-CN")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got language.Tag
	h := Middleware()(func(c echo.Context) error {
		got = GetLanguage(c.Request().Context())
		return nil
	})

	assert.NoError(t, h(c))
	assert.Equal(t, language.English, got)
}
