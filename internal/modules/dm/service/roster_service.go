package service

import (
	"context"
	"errors"
	"strings"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/xerrors"
	"anomali-dm/internal/repository/interfaces"
)

// RosterService 管理战役中的角色
type RosterService struct {
	repo   interfaces.CampaignRepository
	logger log.Logger
}

// NewRosterService 创建角色服务
func NewRosterService(repo interfaces.CampaignRepository, logger log.Logger) *RosterService {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &RosterService{repo: repo, logger: logger}
}

// AddCharacter 把角色加入战役，CharacterID 为空时自动生成
func (s *RosterService) AddCharacter(ctx context.Context, campaignID string, player *dm.PlayerSnapshot) (*dm.CharacterState, error) {
	if player == nil || strings.TrimSpace(player.Name) == "" {
		return nil, xerrors.NewValidationError("name", "角色名不能为空")
	}
	for level, count := range player.SpellSlots {
		if level <= 0 || count < 0 {
			return nil, xerrors.NewValidationError("spell_slots", "法术位等级必须大于 0 且数量不能为负")
		}
	}

	state, err := s.repo.CreateCharacter(ctx, campaignID, player)
	if errors.Is(err, interfaces.ErrCampaignNotFound) {
		return nil, xerrors.NewCampaignNotFoundError(campaignID)
	}
	if errors.Is(err, interfaces.ErrCharacterExists) {
		return nil, xerrors.FromCode(xerrors.CodeDuplicateResource).WithMetadata("character_id", player.CharacterID)
	}
	if err != nil {
		return nil, xerrors.NewDatabaseError("create_character", "characters", err)
	}

	log.LogBusinessEvent(ctx, s.logger, "character_added", "character", state.ID, map[string]interface{}{
		"campaign_id": campaignID,
	})
	return state, nil
}

// Character 读取单个角色
func (s *RosterService) Character(ctx context.Context, characterID string) (*dm.CharacterState, error) {
	state, err := s.repo.GetCharacter(ctx, characterID)
	if errors.Is(err, interfaces.ErrCharacterNotFound) {
		return nil, xerrors.FromCode(xerrors.CodeDMCharacterNotFound).WithMetadata("character_id", characterID)
	}
	if err != nil {
		return nil, xerrors.NewDatabaseError("get_character", "characters", err)
	}
	return state, nil
}
