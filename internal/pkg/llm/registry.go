// File: internal/pkg/llm/registry.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// provider 种类
const (
	KindOpenAI = "openai"
	KindGemini = "gemini"
)

// ProviderConfig 单个 provider 的配置
type ProviderConfig struct {
	Kind        string  `yaml:"kind"` // openai（兼容协议）或 gemini
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Catalogue configs/llm/models.yaml 的内容
type Catalogue struct {
	ActiveProvider string                    `yaml:"active_provider"`
	Providers      map[string]ProviderConfig `yaml:"providers"`
}

// DefaultCatalogue 配置文件缺失时使用
func DefaultCatalogue() *Catalogue {
	return &Catalogue{
		ActiveProvider: "openai",
		Providers: map[string]ProviderConfig{
			"openai": {
				Kind:        KindOpenAI,
				BaseURL:     "https://api.openai.com/v1",
				Model:       "gpt-4",
				APIKeyEnv:   "OPENAI_API_KEY",
				Temperature: 0.8,
			},
			"deepseek": {
				Kind:        KindOpenAI,
				BaseURL:     "https://api.deepseek.com",
				Model:       "deepseek-chat",
				APIKeyEnv:   "DEEPSEEK_API_KEY",
				Temperature: 0.8,
				MaxTokens:   4096,
			},
			"gemini": {
				Kind:        KindGemini,
				Model:       "gemini-2.0-flash",
				APIKeyEnv:   "GEMINI_API_KEY",
				Temperature: 0.8,
			},
		},
	}
}

// LoadCatalogue 读取 YAML 目录，文件不存在时返回默认目录
func LoadCatalogue(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultCatalogue(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取模型配置失败: %w", err)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue 解析 YAML
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var cat Catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("解析模型配置失败: %w", err)
	}
	if len(cat.Providers) == 0 {
		return nil, fmt.Errorf("模型配置中没有任何 provider")
	}
	if cat.ActiveProvider == "" {
		cat.ActiveProvider = "openai"
	}
	return &cat, nil
}

// Options 创建 Completer 的参数
type Options struct {
	Provider string        // 为空时使用 ActiveProvider
	Model    string        // 覆盖配置中的模型
	Timeout  time.Duration // HTTP 调用超时
}

// NewCompleter 按目录创建 Completer，API key 从 api_key_env 指定的环境变量读取
func (c *Catalogue) NewCompleter(ctx context.Context, opts Options) (Completer, error) {
	name := opts.Provider
	if name == "" {
		name = c.ActiveProvider
	}
	cfg, ok := c.Providers[name]
	if !ok {
		return nil, fmt.Errorf("未知的模型 provider: %s", name)
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}

	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	switch cfg.Kind {
	case KindGemini:
		return NewGeminiCompleter(ctx, cfg, apiKey)
	case KindOpenAI, "":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("provider %s 缺少 base_url", name)
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		return NewChatCompleter(name, cfg, apiKey, &http.Client{Timeout: timeout}), nil
	default:
		return nil, fmt.Errorf("provider %s 的 kind 无效: %s", name, cfg.Kind)
	}
}
