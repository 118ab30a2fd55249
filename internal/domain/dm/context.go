// Package dm 回合协议的领域模型
package dm

import (
	"encoding/json"
	"time"
)

// LogTimestampLayout 日志时间戳格式（UTC，毫秒精度）
const LogTimestampLayout = "2006-01-02T15:04:05.000Z"

// LogEntry 战役日志条目，只追加不修改
type LogEntry struct {
	Entry     string `json:"entry"`
	Timestamp string `json:"timestamp"`
}

// NewLogEntry 以给定时间创建日志条目
func NewLogEntry(entry string, now time.Time) LogEntry {
	return LogEntry{Entry: entry, Timestamp: now.UTC().Format(LogTimestampLayout)}
}

// PlayerSnapshot 回合开始时的玩家与角色快照
type PlayerSnapshot struct {
	Name        string          `json:"name"`
	CharacterID string          `json:"character_id"`
	Stats       json.RawMessage `json:"stats,omitempty"`
	Inventory   []string        `json:"inventory"`
	Spells      []string        `json:"spells"`
	SpellSlots  SpellSlots      `json:"spell_slots,omitempty"`
	IsPresent   bool            `json:"is_present"`
}

// CampaignContext 每个回合从存储重新组装的只读快照
type CampaignContext struct {
	CampaignID string `json:"campaign_id"`
	// 世界骨架保持原始字节，提示词中原样嵌入
	Skeleton json.RawMessage  `json:"skeleton"`
	Log      []LogEntry       `json:"campaign_log"`
	Players  []PlayerSnapshot `json:"players"`
}

// HasCharacter 角色是否属于当前战役的队伍
func (c *CampaignContext) HasCharacter(characterID string) bool {
	for _, p := range c.Players {
		if p.CharacterID == characterID {
			return true
		}
	}
	return false
}
