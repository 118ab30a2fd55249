// File: internal/pkg/llm/openai_compatible.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// chatMessage chat-completions 消息
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ChatCompleter OpenAI 兼容的 chat-completions 客户端（OpenAI / DeepSeek / Qwen）
type ChatCompleter struct {
	name        string
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	maxTokens   int
	httpClient  *http.Client
}

// NewChatCompleter 创建客户端，httpClient 的超时即为模型调用超时
func NewChatCompleter(name string, cfg ProviderConfig, apiKey string, httpClient *http.Client) *ChatCompleter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ChatCompleter{
		name:        name,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      apiKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  httpClient,
	}
}

// Name provider 名称
func (c *ChatCompleter) Name() string {
	return c.name
}

// Complete 发送 system + user 两条消息，取第一个 choice
func (c *ChatCompleter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: RoleSystem, Content: req.SystemPrompt},
			{Role: RoleUser, Content: req.UserPrompt},
		},
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s 调用失败: %w", c.name, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("读取 %s 响应失败: %w", c.name, err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s 返回状态 %d: %s", c.name, res.StatusCode, truncate(string(raw), 512))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("解析 %s 响应失败: %w", c.name, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%s 错误: %s", c.name, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyCompletion
	}

	return &CompletionResponse{
		Text:     parsed.Choices[0].Message.Content,
		Provider: c.name,
		Model:    c.model,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
