// File: internal/pkg/validator/validator.go
package validator

import (
	"reflect"
	"strings"

	"anomali-dm/internal/pkg/xerrors"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator 包装 go-playground validator 供 Echo 使用
type CustomValidator struct {
	validator *validator.Validate
}

// Validate 实现 echo.Validator，失败时返回带首个字段信息的参数错误
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		details := TranslateValidationErrors(err)
		appErr := xerrors.NewValidationError(details[0].Field, details[0].Message)
		appErr.Err = err
		return appErr
	}
	return nil
}

// New 创建 Echo 校验器
func New() echo.Validator {
	return &CustomValidator{validator: NewEngine()}
}

// NewEngine 创建注册了自定义规则的底层校验器，字段名取 json tag
func NewEngine() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("not_blank", validateNotBlank)

	return v
}

// validateNotBlank 去掉首尾空白后不能为空
func validateNotBlank(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}
