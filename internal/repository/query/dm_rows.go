package query

import (
	"github.com/aarondl/null/v8"
	"github.com/aarondl/sqlboiler/v4/types"
)

// CampaignRow campaigns 表行
type CampaignRow struct {
	ID          string     `boil:"id"`
	Name        string     `boil:"name"`
	Skeleton    types.JSON `boil:"skeleton"`
	CampaignLog types.JSON `boil:"campaign_log"`
	LogVersion  int64      `boil:"log_version"`
	CreatedAt   null.Time  `boil:"created_at"`
}

// CharacterRow characters 表行，带玩家名
type CharacterRow struct {
	ID         string      `boil:"id"`
	CampaignID string      `boil:"campaign_id"`
	Name       string      `boil:"name"`
	PlayerName null.String `boil:"player_name"`
	Stats      null.JSON   `boil:"stats"`
	Inventory  types.JSON  `boil:"inventory"`
	Spells     types.JSON  `boil:"spells"`
	SpellSlots types.JSON  `boil:"spell_slots"`
	IsPresent  bool        `boil:"is_present"`
	Version    int64       `boil:"version"`
}

// VersionRow 条件更新 RETURNING 的版本号
type VersionRow struct {
	Version int64 `boil:"version"`
}
