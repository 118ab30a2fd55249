// Package llm 语言模型补全客户端
package llm

import (
	"context"
	"errors"
)

// 角色
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ErrEmptyCompletion 模型没有返回任何内容
var ErrEmptyCompletion = errors.New("模型返回空内容")

// CompletionRequest 一次补全请求
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	// 为 nil 时使用 provider 配置的温度
	Temperature *float32
	// 要求模型只输出 JSON（战役生成使用）
	JSONMode bool
}

// CompletionResponse 补全结果
type CompletionResponse struct {
	Text     string
	Provider string
	Model    string
}

// Completer 补全客户端，不做重试
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Name() string
}

// Float32 取地址辅助
func Float32(v float32) *float32 {
	return &v
}
