package impl

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/aarondl/sqlboiler/v4/boil"
	"github.com/aarondl/sqlboiler/v4/queries"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/repository/interfaces"
	"anomali-dm/internal/repository/query"
)

type campaignRepositoryImpl struct {
	db boil.ContextExecutor
}

// NewCampaignRepository 创建战役仓储实例
func NewCampaignRepository(db boil.ContextExecutor) interfaces.CampaignRepository {
	return &campaignRepositoryImpl{db: db}
}

const characterColumns = `
	c.id, c.campaign_id, c.name, c.player_name, c.stats,
	c.inventory, c.spells, c.spell_slots, c.is_present, c.version`

// GetCampaign 根据ID获取战役
func (r *campaignRepositoryImpl) GetCampaign(ctx context.Context, campaignID string) (*dm.Campaign, error) {
	row, err := r.getCampaignRow(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return &dm.Campaign{
		ID:        row.ID,
		Name:      row.Name,
		Skeleton:  json.RawMessage(row.Skeleton),
		CreatedAt: row.CreatedAt.Time,
	}, nil
}

func (r *campaignRepositoryImpl) getCampaignRow(ctx context.Context, campaignID string) (*query.CampaignRow, error) {
	var row query.CampaignRow
	err := queries.Raw(`
		SELECT id, name, skeleton, campaign_log, log_version, created_at
		FROM campaigns
		WHERE id = $1
	`, campaignID).Bind(ctx, r.db, &row)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCampaignNotFound, campaignID)
	}
	if err != nil {
		return nil, fmt.Errorf("查询战役失败: %w", err)
	}
	return &row, nil
}

// GetCampaignContext 组装回合快照
func (r *campaignRepositoryImpl) GetCampaignContext(ctx context.Context, campaignID string) (*dm.CampaignContext, error) {
	row, err := r.getCampaignRow(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	entries, err := decodeLog(row.CampaignLog)
	if err != nil {
		return nil, err
	}

	var characters []*query.CharacterRow
	err = queries.Raw(`SELECT `+characterColumns+`
		FROM characters c
		WHERE c.campaign_id = $1
		ORDER BY c.created_at, c.id
	`, campaignID).Bind(ctx, r.db, &characters)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("查询队伍失败: %w", err)
	}

	players := make([]dm.PlayerSnapshot, 0, len(characters))
	for _, c := range characters {
		p, err := toPlayerSnapshot(c)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}

	return &dm.CampaignContext{
		CampaignID: row.ID,
		Skeleton:   json.RawMessage(row.Skeleton),
		Log:        entries,
		Players:    players,
	}, nil
}

// CreateCampaign 创建战役
func (r *campaignRepositoryImpl) CreateCampaign(ctx context.Context, campaign *dm.Campaign) error {
	if campaign.ID == "" {
		campaign.ID = uuid.New().String()
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	skeleton := campaign.Skeleton
	if len(skeleton) == 0 {
		skeleton = json.RawMessage(`{}`)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, skeleton, campaign_log, log_version, created_at)
		VALUES ($1, $2, $3, '[]'::jsonb, 0, $4)
	`, campaign.ID, campaign.Name, []byte(skeleton), campaign.CreatedAt)
	if err != nil {
		return fmt.Errorf("创建战役失败: %w", err)
	}
	return nil
}

// CreateCharacter 在战役下创建角色
func (r *campaignRepositoryImpl) CreateCharacter(ctx context.Context, campaignID string, player *dm.PlayerSnapshot) (*dm.CharacterState, error) {
	if _, err := r.getCampaignRow(ctx, campaignID); err != nil {
		return nil, err
	}
	if player.CharacterID == "" {
		player.CharacterID = uuid.New().String()
	}

	inventory, err := encodeJSON(nonNil(player.Inventory))
	if err != nil {
		return nil, err
	}
	spells, err := encodeJSON(nonNil(player.Spells))
	if err != nil {
		return nil, err
	}
	slots := player.SpellSlots
	if slots == nil {
		slots = dm.SpellSlots{}
	}
	slotsJSON, err := encodeJSON(slots)
	if err != nil {
		return nil, err
	}

	var stats null.JSON
	if len(player.Stats) > 0 {
		stats = null.JSONFrom(player.Stats)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO characters (id, campaign_id, name, player_name, stats, inventory, spells, spell_slots, is_present, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)
	`, player.CharacterID, campaignID, player.Name, null.StringFrom(player.Name), stats,
		inventory, spells, slotsJSON, player.IsPresent)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCharacterExists, player.CharacterID)
	}
	if err != nil {
		return nil, fmt.Errorf("创建角色失败: %w", err)
	}

	return &dm.CharacterState{
		ID:         player.CharacterID,
		CampaignID: campaignID,
		Name:       player.Name,
		Inventory:  nonNil(player.Inventory),
		SpellSlots: slots.Clone(),
	}, nil
}

// GetCharacter 读取角色状态
func (r *campaignRepositoryImpl) GetCharacter(ctx context.Context, characterID string) (*dm.CharacterState, error) {
	var row query.CharacterRow
	err := queries.Raw(`SELECT `+characterColumns+`
		FROM characters c
		WHERE c.id = $1
	`, characterID).Bind(ctx, r.db, &row)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCharacterNotFound, characterID)
	}
	if err != nil {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}

	state := &dm.CharacterState{
		ID:         row.ID,
		CampaignID: row.CampaignID,
		Name:       row.Name,
		Version:    row.Version,
	}
	if err := decodeJSON(row.Inventory, &state.Inventory); err != nil {
		return nil, fmt.Errorf("解析角色背包失败: %w", err)
	}
	if err := decodeJSON(row.SpellSlots, &state.SpellSlots); err != nil {
		return nil, fmt.Errorf("解析角色法术位失败: %w", err)
	}
	state.Inventory = nonNil(state.Inventory)
	if state.SpellSlots == nil {
		state.SpellSlots = dm.SpellSlots{}
	}
	return state, nil
}

// PutCharacterInventory 条件写入背包
func (r *campaignRepositoryImpl) PutCharacterInventory(ctx context.Context, characterID string, inventory []string, expectedVersion int64) (int64, error) {
	payload, err := encodeJSON(nonNil(inventory))
	if err != nil {
		return 0, err
	}
	return r.putCharacterColumn(ctx, characterID, "inventory", payload, expectedVersion)
}

// PutCharacterSpellSlots 条件写入法术位
func (r *campaignRepositoryImpl) PutCharacterSpellSlots(ctx context.Context, characterID string, slots dm.SpellSlots, expectedVersion int64) (int64, error) {
	if slots == nil {
		slots = dm.SpellSlots{}
	}
	payload, err := encodeJSON(slots)
	if err != nil {
		return 0, err
	}
	return r.putCharacterColumn(ctx, characterID, "spell_slots", payload, expectedVersion)
}

// putCharacterColumn column 只接受内部常量
func (r *campaignRepositoryImpl) putCharacterColumn(ctx context.Context, characterID, column string, payload []byte, expectedVersion int64) (int64, error) {
	var row query.VersionRow
	err := queries.Raw(fmt.Sprintf(`
		UPDATE characters
		SET %s = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND ($3::bigint < 0 OR version = $3)
		RETURNING version
	`, column), characterID, payload, expectedVersion).Bind(ctx, r.db, &row)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, r.missOrConflict(ctx, "characters", characterID, interfaces.ErrCharacterNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("更新角色 %s 失败: %w", column, err)
	}
	return row.Version, nil
}

// GetCampaignLog 读取战役日志
func (r *campaignRepositoryImpl) GetCampaignLog(ctx context.Context, campaignID string) (*dm.CampaignLog, error) {
	row, err := r.getCampaignRow(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	entries, err := decodeLog(row.CampaignLog)
	if err != nil {
		return nil, err
	}
	return &dm.CampaignLog{
		CampaignID: row.ID,
		Entries:    entries,
		Version:    row.LogVersion,
	}, nil
}

// PutCampaignLog 条件写回战役日志
func (r *campaignRepositoryImpl) PutCampaignLog(ctx context.Context, campaignID string, entries []dm.LogEntry, expectedVersion int64) (int64, error) {
	if entries == nil {
		entries = []dm.LogEntry{}
	}
	payload, err := encodeJSON(entries)
	if err != nil {
		return 0, err
	}

	var row query.VersionRow
	err = queries.Raw(`
		UPDATE campaigns
		SET campaign_log = $2, log_version = log_version + 1, updated_at = NOW()
		WHERE id = $1 AND ($3::bigint < 0 OR log_version = $3)
		RETURNING log_version AS version
	`, campaignID, payload, expectedVersion).Bind(ctx, r.db, &row)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, r.missOrConflict(ctx, "campaigns", campaignID, interfaces.ErrCampaignNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("更新战役日志失败: %w", err)
	}
	return row.Version, nil
}

// missOrConflict 条件更新未命中时区分记录不存在与版本冲突
func (r *campaignRepositoryImpl) missOrConflict(ctx context.Context, table, id string, notFound error) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table), id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("检查 %s 记录失败: %w", table, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return fmt.Errorf("%w: %s %s", interfaces.ErrVersionConflict, table, id)
}

func toPlayerSnapshot(c *query.CharacterRow) (dm.PlayerSnapshot, error) {
	p := dm.PlayerSnapshot{
		Name:        c.PlayerName.String,
		CharacterID: c.ID,
		IsPresent:   c.IsPresent,
	}
	if !c.PlayerName.Valid || p.Name == "" {
		p.Name = c.Name
	}
	if c.Stats.Valid {
		p.Stats = json.RawMessage(c.Stats.JSON)
	}
	if err := decodeJSON(c.Inventory, &p.Inventory); err != nil {
		return p, fmt.Errorf("解析角色 %s 背包失败: %w", c.ID, err)
	}
	if err := decodeJSON(c.Spells, &p.Spells); err != nil {
		return p, fmt.Errorf("解析角色 %s 法术失败: %w", c.ID, err)
	}
	if err := decodeJSON(c.SpellSlots, &p.SpellSlots); err != nil {
		return p, fmt.Errorf("解析角色 %s 法术位失败: %w", c.ID, err)
	}
	p.Inventory = nonNil(p.Inventory)
	p.Spells = nonNil(p.Spells)
	return p, nil
}

func decodeLog(raw []byte) ([]dm.LogEntry, error) {
	entries := []dm.LogEntry{}
	if err := decodeJSON(raw, &entries); err != nil {
		return nil, fmt.Errorf("解析战役日志失败: %w", err)
	}
	return entries, nil
}

func decodeJSON(raw []byte, dst interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化失败: %w", err)
	}
	return b, nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// isUniqueViolation 主键或唯一索引冲突
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
