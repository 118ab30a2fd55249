// File: internal/pkg/llm/gemini.go
package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiCompleter 基于官方 GenAI SDK 的 Gemini 客户端
type GeminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewGeminiCompleter 创建客户端，SDK 客户端在进程内复用
func NewGeminiCompleter(ctx context.Context, cfg ProviderConfig, apiKey string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini 缺少 API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 GenAI 客户端失败: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiCompleter{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

// Name provider 名称
func (g *GeminiCompleter) Name() string {
	return "gemini"
}

// Complete 调用 generateContent
func (g *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	temperature := g.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if g.maxTokens > 0 {
		config.MaxOutputTokens = g.maxTokens
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.UserPrompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini 调用失败: %w", err)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyCompletion
	}
	return &CompletionResponse{Text: text, Provider: g.Name(), Model: g.model}, nil
}
