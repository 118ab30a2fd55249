// Package turncache 进程内的回合结果缓存，Redis 不可用或内存模式下替代 TurnReplayStore
package turncache

import (
	"context"
	"sync"
	"time"

	"anomali-dm/internal/pkg/log"
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Cache 线程安全的 TTL 缓存，键为 campaign_id + turn_id
type Cache struct {
	ttl    time.Duration
	logger log.Logger
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]*entry
}

// New 创建缓存，ttl<=0 时默认 24 小时
func New(ttl time.Duration, logger log.Logger) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Cache{
		ttl:    ttl,
		logger: logger.With("component", "turn_cache"),
		clock:  time.Now,
		store:  make(map[string]*entry),
	}
}

func key(campaignID, turnID string) string {
	return campaignID + "\x00" + turnID
}

// Get 返回缓存的回合结果，过期项顺带删除
func (c *Cache) Get(ctx context.Context, campaignID, turnID string) ([]byte, bool, error) {
	k := key(campaignID, turnID)

	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.store[k]
	if !ok {
		return nil, false, nil
	}
	if c.clock().After(value.expiresAt) {
		delete(c.store, k)
		c.logger.DebugContext(ctx, "回合缓存过期",
			log.String("campaign_id", campaignID),
			log.String("turn_id", turnID))
		return nil, false, nil
	}
	return value.payload, true, nil
}

// Put 写入回合结果；未过期的已有结果不会被覆盖
func (c *Cache) Put(ctx context.Context, campaignID, turnID string, payload []byte) error {
	k := key(campaignID, turnID)
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.store[k]; ok && !now.After(existing.expiresAt) {
		return nil
	}
	c.store[k] = &entry{payload: payload, expiresAt: now.Add(c.ttl)}
	return nil
}

// Sweep 清理所有过期项，返回清理数量
func (c *Cache) Sweep() int {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, v := range c.store {
		if now.After(v.expiresAt) {
			delete(c.store, k)
			removed++
		}
	}
	return removed
}

// Len 当前条目数
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}
