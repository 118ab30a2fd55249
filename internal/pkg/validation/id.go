// Package validation 路径参数的格式校验
package validation

import (
	"regexp"

	"github.com/labstack/echo/v4"

	"anomali-dm/internal/pkg/response"
)

// 战役与角色 ID 允许字母、数字、下划线和连字符（兼容 UUID 与文档库生成的 ID）
var idRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// IsValidID 检查字符串是否是合法的资源 ID
func IsValidID(s string) bool {
	return idRegex.MatchString(s)
}

// IDValidationMiddleware 校验白名单中的路径参数，不合法直接返回 404
func IDValidationMiddleware(respWriter response.Writer) echo.MiddlewareFunc {
	idParams := map[string]bool{
		"campaign_id":  true,
		"character_id": true,
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, name := range c.ParamNames() {
				if !idParams[name] {
					continue
				}
				if value := c.Param(name); value != "" && !IsValidID(value) {
					return response.EchoNotFound(c, respWriter, name, value)
				}
			}
			return next(c)
		}
	}
}
