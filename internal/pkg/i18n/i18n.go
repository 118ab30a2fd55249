// File: internal/pkg/i18n/i18n.go
package i18n

import (
	"context"
	"strings"

	"anomali-dm/internal/pkg/ctxkey"

	"golang.org/x/text/language"
)

var (
	// DefaultLanguage 默认中文
	DefaultLanguage = language.Chinese

	// SupportedLanguages 对外错误消息支持的语言
	SupportedLanguages = []language.Tag{
		language.Chinese,
		language.English,
	}

	matcher = language.NewMatcher(SupportedLanguages)
)

// WithLanguage 在 context 中设置语言偏好
func WithLanguage(ctx context.Context, lang language.Tag) context.Context {
	return context.WithValue(ctx, ctxkey.Language, lang)
}

// GetLanguage 从 context 中获取语言偏好
func GetLanguage(ctx context.Context) language.Tag {
	if lang, ok := ctx.Value(ctxkey.Language).(language.Tag); ok {
		return lang
	}
	return DefaultLanguage
}

// ParseAcceptLanguage 解析 Accept-Language 头部，例如 "en-US,en;q=0.9,zh;q=0.8"
func ParseAcceptLanguage(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return DefaultLanguage
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}

	return normalize(tags...)
}

// ParseLanguageCode 解析 ?lang= 参数，支持 zh / zh-CN / en / en-US
func ParseLanguageCode(code string) language.Tag {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultLanguage
	}

	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}
	return normalize(tag)
}

// normalize 匹配到受支持语言的基础标签，避免 "en-u-rg-uszzzz" 之类的匹配结果查不到消息
func normalize(tags ...language.Tag) language.Tag {
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLanguage
	}
	return SupportedLanguages[idx]
}

// GetLanguageCode 获取语言代码 (zh, en)
func GetLanguageCode(lang language.Tag) string {
	base, _ := lang.Base()
	return base.String()
}
