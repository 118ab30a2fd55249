package interfaces

import (
	"context"
	"errors"

	"anomali-dm/internal/domain/dm"
)

// AnyVersion 写入时跳过版本检查（最后写入者获胜）
const AnyVersion int64 = -1

var (
	// ErrCharacterNotFound 角色不存在
	ErrCharacterNotFound = errors.New("character not found")
	// ErrCampaignNotFound 战役不存在
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrCharacterExists 角色 ID 已被占用
	ErrCharacterExists = errors.New("character already exists")
	// ErrVersionConflict 条件写入时版本已变化
	ErrVersionConflict = errors.New("version conflict")
)

// CharacterRepository 角色状态仓储接口
type CharacterRepository interface {
	// GetCharacter 读取角色当前状态和版本号
	GetCharacter(ctx context.Context, characterID string) (*dm.CharacterState, error)
	// PutCharacterInventory 写入背包，expectedVersion 为 AnyVersion 时不做检查，返回新版本号
	PutCharacterInventory(ctx context.Context, characterID string, inventory []string, expectedVersion int64) (int64, error)
	// PutCharacterSpellSlots 写入法术位表，返回新版本号
	PutCharacterSpellSlots(ctx context.Context, characterID string, slots dm.SpellSlots, expectedVersion int64) (int64, error)
}

// CampaignLogRepository 战役日志仓储接口
type CampaignLogRepository interface {
	// GetCampaignLog 读取战役日志和版本号
	GetCampaignLog(ctx context.Context, campaignID string) (*dm.CampaignLog, error)
	// PutCampaignLog 整体写回日志，返回新版本号
	PutCampaignLog(ctx context.Context, campaignID string, entries []dm.LogEntry, expectedVersion int64) (int64, error)
}

// CampaignRepository 战役仓储接口
type CampaignRepository interface {
	CharacterRepository
	CampaignLogRepository

	// GetCampaign 读取战役基本信息
	GetCampaign(ctx context.Context, campaignID string) (*dm.Campaign, error)
	// GetCampaignContext 组装回合快照：骨架、日志、队伍
	GetCampaignContext(ctx context.Context, campaignID string) (*dm.CampaignContext, error)
	// CreateCampaign 创建战役，ID 为空时自动生成
	CreateCampaign(ctx context.Context, campaign *dm.Campaign) error
	// CreateCharacter 在战役下创建角色，ID 为空时自动生成
	CreateCharacter(ctx context.Context, campaignID string, player *dm.PlayerSnapshot) (*dm.CharacterState, error)
}
