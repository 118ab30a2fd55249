// File: internal/pkg/ctxkey/ctxkey.go
package ctxkey

import "context"

// ContextKey 统一的 context key 类型
type ContextKey string

const (
	// Language 语言偏好
	Language ContextKey = "language"

	// TraceID 请求追踪 ID
	TraceID ContextKey = "trace_id"

	// HTTPMethod HTTP 请求方法
	HTTPMethod ContextKey = "http_method"

	// CampaignID 当前回合所属战役
	CampaignID ContextKey = "campaign_id"

	// PlayerID 发起回合的玩家
	PlayerID ContextKey = "player_id"

	// TurnID 回合幂等 ID
	TurnID ContextKey = "turn_id"
)

// WithValue 在 context 中设置指定 key 的值
func WithValue(ctx context.Context, key ContextKey, value interface{}) context.Context {
	return context.WithValue(ctx, key, value)
}

// GetString 从 context 中获取字符串类型的值
func GetString(ctx context.Context, key ContextKey) string {
	if value, ok := ctx.Value(key).(string); ok {
		return value
	}
	return ""
}

// WithTurn 一次性写入回合相关的三个字段，空值跳过
func WithTurn(ctx context.Context, campaignID, playerID, turnID string) context.Context {
	if campaignID != "" {
		ctx = context.WithValue(ctx, CampaignID, campaignID)
	}
	if playerID != "" {
		ctx = context.WithValue(ctx, PlayerID, playerID)
	}
	if turnID != "" {
		ctx = context.WithValue(ctx, TurnID, turnID)
	}
	return ctx
}
