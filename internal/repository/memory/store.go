// Package memory 进程内的战役仓储，用于本地运行和测试
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/repository/interfaces"
)

type campaignRecord struct {
	campaign   dm.Campaign
	log        []dm.LogEntry
	logVersion int64
	// 角色按创建顺序排列
	characters []string
}

type characterRecord struct {
	state  dm.CharacterState
	player dm.PlayerSnapshot
}

// Store 线程安全的内存仓储，语义与 Postgres 实现一致
type Store struct {
	mu         sync.RWMutex
	campaigns  map[string]*campaignRecord
	characters map[string]*characterRecord
}

var _ interfaces.CampaignRepository = (*Store)(nil)

// NewStore 创建空的内存仓储
func NewStore() *Store {
	return &Store{
		campaigns:  make(map[string]*campaignRecord),
		characters: make(map[string]*characterRecord),
	}
}

// GetCampaign 获取战役
func (s *Store) GetCampaign(_ context.Context, campaignID string) (*dm.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCampaignNotFound, campaignID)
	}
	c := rec.campaign
	c.Skeleton = cloneRaw(c.Skeleton)
	return &c, nil
}

// GetCampaignContext 组装回合快照
func (s *Store) GetCampaignContext(_ context.Context, campaignID string) (*dm.CampaignContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCampaignNotFound, campaignID)
	}

	players := make([]dm.PlayerSnapshot, 0, len(rec.characters))
	for _, id := range rec.characters {
		c := s.characters[id]
		p := c.player
		p.Stats = cloneRaw(p.Stats)
		p.Inventory = cloneStrings(c.state.Inventory)
		p.Spells = cloneStrings(p.Spells)
		p.SpellSlots = c.state.SpellSlots.Clone()
		players = append(players, p)
	}

	return &dm.CampaignContext{
		CampaignID: campaignID,
		Skeleton:   cloneRaw(rec.campaign.Skeleton),
		Log:        append([]dm.LogEntry{}, rec.log...),
		Players:    players,
	}, nil
}

// CreateCampaign 创建战役
func (s *Store) CreateCampaign(_ context.Context, campaign *dm.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if campaign.ID == "" {
		campaign.ID = uuid.New().String()
	}
	if _, exists := s.campaigns[campaign.ID]; exists {
		return fmt.Errorf("战役已存在: %s", campaign.ID)
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	if len(campaign.Skeleton) == 0 {
		campaign.Skeleton = json.RawMessage(`{}`)
	}

	c := *campaign
	c.Skeleton = cloneRaw(campaign.Skeleton)
	s.campaigns[c.ID] = &campaignRecord{campaign: c, log: []dm.LogEntry{}}
	return nil
}

// CreateCharacter 在战役下创建角色
func (s *Store) CreateCharacter(_ context.Context, campaignID string, player *dm.PlayerSnapshot) (*dm.CharacterState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCampaignNotFound, campaignID)
	}
	if player.CharacterID == "" {
		player.CharacterID = uuid.New().String()
	}
	if _, exists := s.characters[player.CharacterID]; exists {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCharacterExists, player.CharacterID)
	}

	slots := player.SpellSlots.Clone()
	if slots == nil {
		slots = dm.SpellSlots{}
	}
	state := dm.CharacterState{
		ID:         player.CharacterID,
		CampaignID: campaignID,
		Name:       player.Name,
		Inventory:  cloneStrings(player.Inventory),
		SpellSlots: slots,
	}
	snapshot := *player
	snapshot.Stats = cloneRaw(player.Stats)
	snapshot.Spells = cloneStrings(player.Spells)

	s.characters[state.ID] = &characterRecord{state: state, player: snapshot}
	rec.characters = append(rec.characters, state.ID)

	out := cloneState(state)
	return &out, nil
}

// GetCharacter 读取角色状态
func (s *Store) GetCharacter(_ context.Context, characterID string) (*dm.CharacterState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.characters[characterID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCharacterNotFound, characterID)
	}
	out := cloneState(c.state)
	return &out, nil
}

// PutCharacterInventory 条件写入背包
func (s *Store) PutCharacterInventory(_ context.Context, characterID string, inventory []string, expectedVersion int64) (int64, error) {
	return s.putCharacter(characterID, expectedVersion, func(state *dm.CharacterState) {
		state.Inventory = cloneStrings(inventory)
	})
}

// PutCharacterSpellSlots 条件写入法术位
func (s *Store) PutCharacterSpellSlots(_ context.Context, characterID string, slots dm.SpellSlots, expectedVersion int64) (int64, error) {
	return s.putCharacter(characterID, expectedVersion, func(state *dm.CharacterState) {
		state.SpellSlots = slots.Clone()
		if state.SpellSlots == nil {
			state.SpellSlots = dm.SpellSlots{}
		}
	})
}

func (s *Store) putCharacter(characterID string, expectedVersion int64, mutate func(*dm.CharacterState)) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.characters[characterID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", interfaces.ErrCharacterNotFound, characterID)
	}
	if expectedVersion != interfaces.AnyVersion && c.state.Version != expectedVersion {
		return 0, fmt.Errorf("%w: characters %s", interfaces.ErrVersionConflict, characterID)
	}
	mutate(&c.state)
	c.state.Version++
	return c.state.Version, nil
}

// GetCampaignLog 读取战役日志
func (s *Store) GetCampaignLog(_ context.Context, campaignID string) (*dm.CampaignLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCampaignNotFound, campaignID)
	}
	return &dm.CampaignLog{
		CampaignID: campaignID,
		Entries:    append([]dm.LogEntry{}, rec.log...),
		Version:    rec.logVersion,
	}, nil
}

// PutCampaignLog 条件写回战役日志
func (s *Store) PutCampaignLog(_ context.Context, campaignID string, entries []dm.LogEntry, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.campaigns[campaignID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", interfaces.ErrCampaignNotFound, campaignID)
	}
	if expectedVersion != interfaces.AnyVersion && rec.logVersion != expectedVersion {
		return 0, fmt.Errorf("%w: campaigns %s", interfaces.ErrVersionConflict, campaignID)
	}
	rec.log = append([]dm.LogEntry{}, entries...)
	rec.logVersion++
	return rec.logVersion, nil
}

func cloneState(s dm.CharacterState) dm.CharacterState {
	s.Inventory = cloneStrings(s.Inventory)
	s.SpellSlots = s.SpellSlots.Clone()
	return s
}

func cloneStrings(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
