package dm

import (
	"encoding/json"
	"time"
)

// Campaign 战役记录
type Campaign struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Skeleton  json.RawMessage `json:"skeleton"`
	CreatedAt time.Time       `json:"created_at"`
}

// CampaignParams 生成战役时玩家填写的偏好
type CampaignParams struct {
	Tone               string `json:"tone" validate:"required,max=100" example:"dark"`
	Theme              string `json:"theme" validate:"required,max=100" example:"political intrigue"`
	MagicOption        string `json:"magicOption" validate:"max=100" example:"rare and dangerous"`
	ReligionHandling   string `json:"religionHandling" validate:"max=100" example:"pantheon"`
	LevelingMethod     string `json:"levelingMethod" validate:"max=100" example:"milestone"`
	MaterialComponents bool   `json:"materialComponents"`
	CarryWeightEnabled bool   `json:"carryWeightEnabled"`
	TrackRations       bool   `json:"trackRations"`
	IncludeElements    string `json:"includeElements" validate:"max=1000"`
	AvoidElements      string `json:"avoidElements" validate:"max=1000"`
}

// CampaignOutline 模型生成的世界大纲，持久化后即为战役骨架
type CampaignOutline struct {
	WorldName           string   `json:"worldName"`
	Summary             string   `json:"summary"`
	MajorNPCs           []string `json:"majorNPCs"`
	Hooks               []string `json:"hooks"`
	Towns               []string `json:"towns"`
	Cities              []string `json:"cities"`
	Villages            []string `json:"villages"`
	Factions            []string `json:"factions"`
	Geography           []string `json:"geography"`
	Climates            []string `json:"climates"`
	Religions           []string `json:"religions"`
	BeliefSystems       []string `json:"beliefSystems"`
	MagicLaws           string   `json:"magicLaws"`
	PoliticalStructures []string `json:"politicalStructures"`
	MajorConflicts      []string `json:"majorConflicts"`
	PointsOfInterest    []string `json:"pointsOfInterest"`
	CampaignLog         []string `json:"campaignLog"`
}
