// File: internal/pkg/redis/redis.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"anomali-dm/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

// Config Redis 配置
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Client Redis 客户端封装，所有操作记录指标
type Client struct {
	*redis.Client
	service string
}

// NewClient 创建 Redis 客户端并测试连接
func NewClient(cfg Config, service string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	return Wrap(rdb, service), nil
}

// Wrap 包装已有的 go-redis 客户端
func Wrap(rdb *redis.Client, service string) *Client {
	if service == "" {
		service = metrics.GetServiceName()
	}
	return &Client{Client: rdb, service: service}
}

// SetNXWithTTL 仅当键不存在时写入，返回是否写入成功
func (c *Client) SetNXWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.SetNX(ctx, key, value, ttl).Result()
	c.record("SETNX", err, time.Since(start))
	return ok, err
}

// SetWithTTL 设置键值对，带过期时间
func (c *Client) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := c.Set(ctx, key, value, ttl).Err()
	c.record("SET", err, time.Since(start))
	return err
}

// GetBytes 获取原始字节，键不存在时返回 (nil, false, nil)
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	data, err := c.Get(ctx, key).Bytes()
	c.record("GET", err, time.Since(start))

	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// DeleteKey 删除键
func (c *Client) DeleteKey(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := c.Del(ctx, keys...).Err()
	c.record("DEL", err, time.Since(start))
	return err
}

// Service 指标中使用的服务名
func (c *Client) Service() string {
	return c.service
}

func (c *Client) record(operation string, err error, duration time.Duration) {
	switch {
	case err == nil:
		metrics.DefaultResourceMetrics.RecordRedisOperation(operation, true, duration, c.service)
	case errors.Is(err, redis.Nil):
		// 未命中不算失败
		metrics.DefaultResourceMetrics.RecordRedisOperation(operation, true, duration, c.service)
		metrics.DefaultResourceMetrics.RecordRedisError("nil", c.service)
	case errors.Is(err, context.DeadlineExceeded):
		metrics.DefaultResourceMetrics.RecordRedisOperation(operation, false, duration, c.service)
		metrics.DefaultResourceMetrics.RecordRedisError("timeout", c.service)
	default:
		metrics.DefaultResourceMetrics.RecordRedisOperation(operation, false, duration, c.service)
		metrics.DefaultResourceMetrics.RecordRedisError("operation_error", c.service)
	}
}
