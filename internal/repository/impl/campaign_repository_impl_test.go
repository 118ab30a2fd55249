package impl

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/repository/interfaces"
	"anomali-dm/internal/test"
)

func setupRepo(t *testing.T) (interfaces.CampaignRepository, string) {
	t.Helper()
	db := test.SetupTestDB(t)
	t.Cleanup(func() { test.TeardownTestDB(t, db) })

	// 事务隔离，测试结束回滚
	tx := test.BeginTestTransaction(t, db)
	t.Cleanup(func() { test.RollbackTestTransaction(t, tx) })

	repo := NewCampaignRepository(tx)
	campaign := &dm.Campaign{Name: "Ashfall", Skeleton: json.RawMessage(`{"worldName":"Ashfall","towns":["Brindle"]}`)}
	require.NoError(t, repo.CreateCampaign(context.Background(), campaign))

	_, err := repo.CreateCharacter(context.Background(), campaign.ID, &dm.PlayerSnapshot{
		Name:       "Mira",
		Stats:      json.RawMessage(`{"str":10}`),
		Inventory:  []string{"Torch", "Dagger"},
		Spells:     []string{"Shield"},
		SpellSlots: dm.SpellSlots{1: 2, 2: 0},
		IsPresent:  true,
	})
	require.NoError(t, err)
	return repo, campaign.ID
}

func TestCampaignRepository_GetCampaignContext(t *testing.T) {
	repo, id := setupRepo(t)

	cc, err := repo.GetCampaignContext(context.Background(), id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"worldName":"Ashfall","towns":["Brindle"]}`, string(cc.Skeleton))
	require.Len(t, cc.Players, 1)
	assert.Equal(t, "Mira", cc.Players[0].Name)
	assert.Equal(t, dm.SpellSlots{1: 2, 2: 0}, cc.Players[0].SpellSlots)
	assert.Empty(t, cc.Log)

	_, err = repo.GetCampaignContext(context.Background(), "nope")
	assert.ErrorIs(t, err, interfaces.ErrCampaignNotFound)
}

func TestCampaignRepository_ConditionalWrites(t *testing.T) {
	repo, id := setupRepo(t)
	ctx := context.Background()

	cc, err := repo.GetCampaignContext(ctx, id)
	require.NoError(t, err)
	charID := cc.Players[0].CharacterID

	c, err := repo.GetCharacter(ctx, charID)
	require.NoError(t, err)

	v, err := repo.PutCharacterInventory(ctx, charID, []string{"Rope"}, c.Version)
	require.NoError(t, err)
	assert.Equal(t, c.Version+1, v)

	_, err = repo.PutCharacterInventory(ctx, charID, []string{"Lantern"}, c.Version)
	assert.ErrorIs(t, err, interfaces.ErrVersionConflict)

	_, err = repo.PutCharacterSpellSlots(ctx, charID, dm.SpellSlots{1: 1}, interfaces.AnyVersion)
	require.NoError(t, err)

	_, err = repo.PutCharacterSpellSlots(ctx, "ghost", dm.SpellSlots{}, interfaces.AnyVersion)
	assert.ErrorIs(t, err, interfaces.ErrCharacterNotFound)

	got, err := repo.GetCharacter(ctx, charID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rope"}, got.Inventory)
	assert.Equal(t, dm.SpellSlots{1: 1}, got.SpellSlots)
}

func TestCampaignRepository_CampaignLog(t *testing.T) {
	repo, id := setupRepo(t)
	ctx := context.Background()

	log, err := repo.GetCampaignLog(ctx, id)
	require.NoError(t, err)

	entries := append(log.Entries, dm.LogEntry{Entry: "Crossed the river", Timestamp: "2025-01-01T00:00:00.000Z"})
	_, err = repo.PutCampaignLog(ctx, id, entries, log.Version)
	require.NoError(t, err)

	_, err = repo.PutCampaignLog(ctx, id, entries, log.Version)
	assert.ErrorIs(t, err, interfaces.ErrVersionConflict)

	again, err := repo.GetCampaignLog(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entries, again.Entries)
}

func TestCampaignRepository_CreateDuplicateCharacter(t *testing.T) {
	repo, id := setupRepo(t)
	ctx := context.Background()

	_, err := repo.CreateCharacter(ctx, id, &dm.PlayerSnapshot{CharacterID: "dup-1", Name: "Oren"})
	require.NoError(t, err)

	// 唯一约束冲突后事务不可再用，放在最后
	_, err = repo.CreateCharacter(ctx, id, &dm.PlayerSnapshot{CharacterID: "dup-1", Name: "Oren"})
	assert.ErrorIs(t, err, interfaces.ErrCharacterExists)
}
