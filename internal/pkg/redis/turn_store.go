// File: internal/pkg/redis/turn_store.go
package redis

import (
	"context"
	"fmt"
	"time"
)

// DefaultTurnReplayTTL 回合结果的保留时间
const DefaultTurnReplayTTL = 24 * time.Hour

// TurnReplayStore 以 Redis 保存已完成回合的结果，用于同一 turn_id 的重放
type TurnReplayStore struct {
	client *Client
	ttl    time.Duration
}

// NewTurnReplayStore 创建回合重放存储
func NewTurnReplayStore(client *Client, ttl time.Duration) *TurnReplayStore {
	if ttl <= 0 {
		ttl = DefaultTurnReplayTTL
	}
	return &TurnReplayStore{client: client, ttl: ttl}
}

// TurnKey 回合幂等键 dm:turn:<campaign_id>:<turn_id>
func TurnKey(campaignID, turnID string) string {
	return fmt.Sprintf("dm:turn:%s:%s", campaignID, turnID)
}

// Get 读取已保存的回合结果
func (s *TurnReplayStore) Get(ctx context.Context, campaignID, turnID string) ([]byte, bool, error) {
	data, ok, err := s.client.GetBytes(ctx, TurnKey(campaignID, turnID))
	if err != nil {
		return nil, false, fmt.Errorf("读取回合结果失败: %w", err)
	}
	return data, ok, nil
}

// Put 保存回合结果；已存在时保留最先写入的结果
func (s *TurnReplayStore) Put(ctx context.Context, campaignID, turnID string, payload []byte) error {
	if _, err := s.client.SetNXWithTTL(ctx, TurnKey(campaignID, turnID), payload, s.ttl); err != nil {
		return fmt.Errorf("保存回合结果失败: %w", err)
	}
	return nil
}
