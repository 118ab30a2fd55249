// File: internal/pkg/validator/translator.go
package validator

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError 验证错误详情
type ValidationError struct {
	Field   string `json:"field"`   // 字段名
	Message string `json:"message"` // 错误消息
	Tag     string `json:"tag"`     // 验证标签
}

// TranslateValidationErrors 翻译所有验证错误，非 validator 错误归为 request 字段
func TranslateValidationErrors(err error) []ValidationError {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return []ValidationError{{Field: "request", Message: err.Error(), Tag: "unknown"}}
	}

	result := make([]ValidationError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		result = append(result, ValidationError{
			Field:   fe.Field(),
			Message: translateFieldError(fe),
			Tag:     fe.Tag(),
		})
	}
	return result
}

// TranslateValidationError 返回第一个错误的中文消息
func TranslateValidationError(err error) string {
	if details := TranslateValidationErrors(err); len(details) > 0 {
		return details[0].Message
	}
	return ""
}

func translateFieldError(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s不能为空", field)
	case "not_blank":
		return fmt.Sprintf("%s不能为空白", field)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s长度不能少于%s个字符", field, fe.Param())
		}
		return fmt.Sprintf("%s不能小于%s", field, fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s长度不能超过%s个字符", field, fe.Param())
		}
		return fmt.Sprintf("%s不能大于%s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s必须大于%s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s必须大于或等于%s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s必须小于或等于%s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s的值必须是以下之一: %s", field, fe.Param())
	case "alphanum":
		return fmt.Sprintf("%s只能包含字母和数字", field)
	case "dive":
		return fmt.Sprintf("%s包含无效的值", field)
	default:
		return fmt.Sprintf("%s验证失败: %s", field, fe.Tag())
	}
}
