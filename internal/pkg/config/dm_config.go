// File: internal/pkg/config/dm_config.go
package config

import (
	"fmt"
	"time"
)

// 并发写入模式
const (
	ConcurrencyOptimistic     = "optimistic"
	ConcurrencyLastWriterWins = "last_writer_wins"
)

// 存储后端
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DMConfig DM 服务的全部运行配置
type DMConfig struct {
	Environment string
	LogLevel    string

	HTTPPort    string
	Store       string
	DatabaseURL string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	NATSAddress   string
	ConsulAddress string

	LLMProvider   string
	LLMModel      string
	LLMConfigPath string

	ParserLenient      bool
	ConcurrencyMode    string
	MaxWriteAttempts   int
	LLMTimeout         time.Duration
	ApplyTimeout       time.Duration
	TurnReplayTTL      time.Duration
	CORSAllowOrigins   string
	RateLimitPerSecond int
}

// LoadDMConfig 从环境变量加载配置，settings 是模块配置文件中的值，优先级低于环境变量
func LoadDMConfig(settings map[string]interface{}) (*DMConfig, error) {
	setting := func(key string) string {
		if settings == nil {
			return ""
		}
		if v, ok := settings[key].(string); ok {
			return v
		}
		return ""
	}

	cfg := &DMConfig{
		Environment: GetEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    GetEnvOrDefault("LOG_LEVEL", "info"),

		HTTPPort:    GetEnvOrDefault("DM_HTTP_PORT", firstNonEmpty(setting("http_port"), "8090")),
		Store:       GetEnvOrDefault("DM_STORE", StorePostgres),
		DatabaseURL: GetDatabaseURL("DM_DATABASE_URL", setting("database_url")),

		RedisHost:     GetEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     GetEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: GetEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       GetEnvInt("REDIS_DB", 0),

		NATSAddress:   GetEnvOrDefault("NATS_ADDRESS", "127.0.0.1:4222"),
		ConsulAddress: GetEnvOrDefault("CONSUL_ADDRESS", "127.0.0.1:8500"),

		LLMProvider:   GetEnvOrDefault("DM_LLM_PROVIDER", "openai"),
		LLMModel:      GetEnvOrDefault("DM_LLM_MODEL", ""),
		LLMConfigPath: GetEnvOrDefault("DM_LLM_CONFIG", "configs/llm/models.yaml"),

		ParserLenient:      GetEnvBool("DM_PARSER_LENIENT", false),
		ConcurrencyMode:    GetEnvOrDefault("DM_CONCURRENCY_MODE", ConcurrencyOptimistic),
		MaxWriteAttempts:   GetEnvInt("DM_MAX_WRITE_ATTEMPTS", 3),
		LLMTimeout:         GetEnvDuration("DM_LLM_TIMEOUT", 60*time.Second),
		ApplyTimeout:       GetEnvDuration("DM_APPLY_TIMEOUT", 15*time.Second),
		TurnReplayTTL:      GetEnvDuration("DM_TURN_REPLAY_TTL", 24*time.Hour),
		CORSAllowOrigins:   GetEnvOrDefault("CORS_ALLOW_ORIGINS", "*"),
		RateLimitPerSecond: GetEnvInt("DM_RATE_LIMIT", 100),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查枚举值与取值范围
func (c *DMConfig) Validate() error {
	switch c.ConcurrencyMode {
	case ConcurrencyOptimistic, ConcurrencyLastWriterWins:
	default:
		return fmt.Errorf("DM_CONCURRENCY_MODE 取值无效: %q", c.ConcurrencyMode)
	}
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DM_STORE=postgres 时必须设置 DM_DATABASE_URL")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("DM_STORE 取值无效: %q", c.Store)
	}
	if c.MaxWriteAttempts < 1 {
		return fmt.Errorf("DM_MAX_WRITE_ATTEMPTS 必须大于 0")
	}
	return nil
}

// Optimistic 是否启用乐观并发
func (c *DMConfig) Optimistic() bool {
	return c.ConcurrencyMode == ConcurrencyOptimistic
}

// LogFields 脱敏后的配置，用于启动日志
func (c *DMConfig) LogFields() map[string]any {
	return SanitizeConfigForLog(map[string]any{
		"environment":        c.Environment,
		"http_port":          c.HTTPPort,
		"store":              c.Store,
		"database_url":       c.DatabaseURL,
		"redis_addr":         c.RedisHost + ":" + c.RedisPort,
		"redis_password":     c.RedisPassword,
		"nats_address":       c.NATSAddress,
		"llm_provider":       c.LLMProvider,
		"llm_model":          c.LLMModel,
		"parser_lenient":     c.ParserLenient,
		"concurrency_mode":   c.ConcurrencyMode,
		"max_write_attempts": c.MaxWriteAttempts,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
