// File: internal/pkg/notify/notify.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// 回合事件主题 dm.campaign.<campaign_id>.turn
const (
	subjectPrefix = "dm.campaign."
	subjectSuffix = ".turn"

	// SubjectAllTurns 订阅所有战役的回合事件
	SubjectAllTurns = "dm.campaign.*.turn"
)

// TurnSubject 指定战役的回合事件主题
func TurnSubject(campaignID string) string {
	return subjectPrefix + campaignID + subjectSuffix
}

// CampaignFromSubject 从主题中解析战役 ID
func CampaignFromSubject(subject string) (string, bool) {
	if !strings.HasPrefix(subject, subjectPrefix) || !strings.HasSuffix(subject, subjectSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(subject, subjectPrefix), subjectSuffix)
	if id == "" || strings.Contains(id, ".") {
		return "", false
	}
	return id, true
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

// NatsPublisher 基于 NATS 的发布器，conn 为 nil 时静默降级
type NatsPublisher struct {
	conn *nats.Conn
}

// NewNatsPublisher 创建发布器
func NewNatsPublisher(conn *nats.Conn) *NatsPublisher {
	return &NatsPublisher{conn: conn}
}

// Publish 以 JSON 发布事件
func (p *NatsPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	if p == nil || p.conn == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	return p.conn.Publish(subject, data)
}

// Subscribe 订阅主题，回调收到主题与原始数据
func (p *NatsPublisher) Subscribe(subject string, handler func(subject string, data []byte)) (*nats.Subscription, error) {
	if p == nil || p.conn == nil {
		return nil, nil
	}
	return p.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
}

// NopPublisher 丢弃所有事件
type NopPublisher struct{}

// Publish 什么都不做
func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
