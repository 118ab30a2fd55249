package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/pkg/config"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/metrics"
	"anomali-dm/internal/repository/interfaces"
)

var fixedNow = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

func newTestApplier(repo interfaces.CampaignRepository, opts ...ApplierOption) (*StateMutationApplier, *metrics.DMMetrics) {
	m := metrics.NewDMMetricsWithRegistry("test", prometheus.NewRegistry())
	opts = append([]ApplierOption{WithClock(func() time.Time { return fixedNow }), WithApplierMetrics(m)}, opts...)
	return NewStateMutationApplier(repo, log.NewNopLogger(), opts...), m
}

func strPtr(s string) *string { return &s }

func TestApplyInventoryRemovesThenAdds(t *testing.T) {
	repo := newFakeRepo()
	seedCampaign(t, repo)
	a, _ := newTestApplier(repo)

	result := a.Apply(context.Background(), "camp-1", &dm.DMResponse{Actions: dm.ActionList{
		dm.UpdateInventoryAction{CharacterID: "c1", Add: []string{"Rope"}, Remove: []string{"Torch"}},
	}})

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, dm.OutcomeApplied, result.Outcomes[0].Status)

	c, err := repo.GetCharacter(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dagger", "Rope"}, c.Inventory)
}

func TestApplySpellSlot(t *testing.T) {
	tests := []struct {
		name   string
		slots  dm.SpellSlots
		level  int
		status dm.OutcomeStatus
		reason string
		want   dm.SpellSlots
	}{
		{name: "有剩余时扣减", level: 1, status: dm.OutcomeApplied, want: dm.SpellSlots{1: 1, 2: 0}},
		{name: "只扣减对应环位", slots: dm.SpellSlots{1: 2, 2: 3}, level: 2, status: dm.OutcomeApplied, want: dm.SpellSlots{1: 2, 2: 2}},
		{name: "已耗尽时不变", level: 2, status: dm.OutcomeSkipped, reason: dm.ReasonNoSlotAvailable, want: dm.SpellSlots{1: 2, 2: 0}},
		{name: "未定义环位不变", level: 5, status: dm.OutcomeSkipped, reason: dm.ReasonNoSlotAvailable, want: dm.SpellSlots{1: 2, 2: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			seedCampaign(t, repo)
			a, _ := newTestApplier(repo)

			characterID := "c1"
			if tt.slots != nil {
				characterID = "c2"
				_, err := repo.CreateCharacter(context.Background(), "camp-1", &dm.PlayerSnapshot{
					CharacterID: characterID,
					Name:        "Oren",
					SpellSlots:  tt.slots,
					IsPresent:   true,
				})
				require.NoError(t, err)
			}

			result := a.Apply(context.Background(), "camp-1", &dm.DMResponse{Actions: dm.ActionList{
				dm.UseSpellSlotAction{CharacterID: characterID, SpellLevel: tt.level},
			}})

			require.Len(t, result.Outcomes, 1)
			assert.Equal(t, tt.status, result.Outcomes[0].Status)
			assert.Equal(t, tt.reason, result.Outcomes[0].Reason)
			assert.Nil(t, result.Outcomes[0].Err)

			c, err := repo.GetCharacter(context.Background(), characterID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.SpellSlots)
		})
	}
}

func TestApplyExhaustedSlotDoesNotWrite(t *testing.T) {
	repo := newFakeRepo()
	seedCampaign(t, repo)
	a, _ := newTestApplier(repo)

	a.Apply(context.Background(), "camp-1", &dm.DMResponse{Actions: dm.ActionList{
		dm.UseSpellSlotAction{CharacterID: "c1", SpellLevel: 2},
	}})
	assert.Equal(t, 0, repo.putCount())
}

func TestApplyIsolatesFailures(t *testing.T) {
	repo := newFakeRepo()
	seedCampaign(t, repo)
	_, err := repo.CreateCharacter(context.Background(), "camp-1", &dm.PlayerSnapshot{CharacterID: "c2", Name: "Bran", Inventory: []string{"Axe"}})
	require.NoError(t, err)
	repo.putErr["c2"] = errors.New("disk full")

	a, m := newTestApplier(repo)
	result := a.Apply(context.Background(), "camp-1", &dm.DMResponse{
		LogUpdate: strPtr("A busy day."),
		Actions: dm.ActionList{
			dm.UpdateInventoryAction{CharacterID: "ghost", Add: []string{"Rope"}},
			dm.UpdateInventoryAction{CharacterID: "c2", Add: []string{"Shield"}},
			dm.UpdateInventoryAction{CharacterID: "x1", Remove: []string{"Coin"}},
			dm.UseSpellSlotAction{CharacterID: "c1", SpellLevel: 1},
		},
	})

	require.Len(t, result.Outcomes, 4)
	assert.Equal(t, dm.OutcomeSkipped, result.Outcomes[0].Status)
	assert.Equal(t, dm.ReasonCharacterNotFound, result.Outcomes[0].Reason)
	assert.Equal(t, dm.OutcomeFailed, result.Outcomes[1].Status)
	assert.Equal(t, dm.ReasonPersistence, result.Outcomes[1].Reason)
	assert.Error(t, result.Outcomes[1].Err)
	assert.Equal(t, dm.OutcomeSkipped, result.Outcomes[2].Status)
	assert.Equal(t, dm.ReasonOtherCampaign, result.Outcomes[2].Reason)
	assert.Equal(t, dm.OutcomeApplied, result.Outcomes[3].Status)

	assert.Equal(t, 1, result.Applied())
	assert.Equal(t, 2, result.Skipped())
	assert.Equal(t, 1, result.Failed())

	// 失败之后的动作和日志仍然执行
	require.NotNil(t, result.Log)
	assert.Equal(t, dm.OutcomeApplied, result.Log.Status)

	x1, err := repo.GetCharacter(context.Background(), "x1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Coin"}, x1.Inventory)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsTotal.WithLabelValues("updateInventory", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActionsTotal.WithLabelValues("updateInventory", "skipped")))
}

func TestApplyPreservesOrder(t *testing.T) {
	repo := newFakeRepo()
	seedCampaign(t, repo)
	a, _ := newTestApplier(repo)

	a.Apply(context.Background(), "camp-1", &dm.DMResponse{Actions: dm.ActionList{
		dm.UpdateInventoryAction{CharacterID: "c1", Add: []string{"Gem"}},
		dm.UpdateInventoryAction{CharacterID: "c1", Remove: []string{"Gem"}, Add: []string{"Gold"}},
		dm.UpdateInventoryAction{CharacterID: "c1", Add: []string{"Gem"}},
	}})

	c, err := repo.GetCharacter(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Torch", "Dagger", "Gold", "Gem"}, c.Inventory)
}

func TestApplyAppendsLogEntry(t *testing.T) {
	repo := newFakeRepo()
	seedCampaign(t, repo)
	a, _ := newTestApplier(repo)

	ctx := context.Background()
	for _, text := range []string{"First.", "Second."} {
		result := a.Apply(ctx, "camp-1", &dm.DMResponse{LogUpdate: strPtr(text), Actions: dm.ActionList{}})
		require.NotNil(t, result.Log)
		assert.Equal(t, dm.OutcomeApplied, result.Log.Status)
	}

	log, err := repo.GetCampaignLog(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, []dm.LogEntry{
		{Entry: "First.", Timestamp: "2025-06-01T12:30:00.000Z"},
		{Entry: "Second.", Timestamp: "2025-06-01T12:30:00.000Z"},
	}, log.Entries)
}

func TestApplyWithoutLogUpdateLeavesLog(t *testing.T) {
	repo := newFakeRepo()
	seedCampaign(t, repo)
	a, _ := newTestApplier(repo)

	result := a.Apply(context.Background(), "camp-1", &dm.DMResponse{LogUpdate: strPtr("   ")})
	assert.Nil(t, result.Log)
	assert.Empty(t, result.Outcomes)
	assert.Equal(t, 0, repo.putCount())
}

func TestApplyLogFailureIsReported(t *testing.T) {
	repo := newFakeRepo()
	seedCampaign(t, repo)
	repo.logErr = errors.New("connection reset")
	a, _ := newTestApplier(repo)

	result := a.Apply(context.Background(), "camp-1", &dm.DMResponse{LogUpdate: strPtr("Lost.")})
	require.NotNil(t, result.Log)
	assert.Equal(t, dm.OutcomeFailed, result.Log.Status)
	assert.Equal(t, dm.ReasonPersistence, result.Log.Reason)
}

func TestApplyOptimisticRetriesOnConflict(t *testing.T) {
	repo := newFakeRepo()
	seedCampaign(t, repo)

	// 第一次写入前，另一回合往背包里加了一件物品
	fired := false
	repo.beforePut = func(id string) {
		if fired || id != "c1" {
			return
		}
		fired = true
		_, err := repo.Store.PutCharacterInventory(context.Background(), "c1", []string{"Torch", "Dagger", "Lute"}, interfaces.AnyVersion)
		require.NoError(t, err)
	}

	a, m := newTestApplier(repo, WithConcurrencyMode(config.ConcurrencyOptimistic))
	result := a.Apply(context.Background(), "camp-1", &dm.DMResponse{Actions: dm.ActionList{
		dm.UpdateInventoryAction{CharacterID: "c1", Add: []string{"Rope"}, Remove: []string{"Torch"}},
	}})

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, dm.OutcomeApplied, result.Outcomes[0].Status)
	assert.Equal(t, 2, result.Outcomes[0].Attempts)

	c, err := repo.GetCharacter(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dagger", "Lute", "Rope"}, c.Inventory, "并发写入的物品不能丢失")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WriteConflicts.WithLabelValues("inventory")))
}

func TestApplyLastWriterWinsOverwrites(t *testing.T) {
	repo := newFakeRepo()
	seedCampaign(t, repo)

	fired := false
	repo.beforePut = func(id string) {
		if fired {
			return
		}
		fired = true
		_, err := repo.Store.PutCharacterInventory(context.Background(), "c1", []string{"Torch", "Dagger", "Lute"}, interfaces.AnyVersion)
		require.NoError(t, err)
	}

	a, _ := newTestApplier(repo, WithConcurrencyMode(config.ConcurrencyLastWriterWins))
	result := a.Apply(context.Background(), "camp-1", &dm.DMResponse{Actions: dm.ActionList{
		dm.UpdateInventoryAction{CharacterID: "c1", Add: []string{"Rope"}, Remove: []string{"Torch"}},
	}})

	assert.Equal(t, dm.OutcomeApplied, result.Outcomes[0].Status)
	assert.Equal(t, 1, result.Outcomes[0].Attempts)

	c, err := repo.GetCharacter(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dagger", "Rope"}, c.Inventory)
}

func TestApplyFailsAfterAttemptBudget(t *testing.T) {
	repo := newFakeRepo()
	seedCampaign(t, repo)
	repo.conflicts["c1"] = 10

	a, m := newTestApplier(repo, WithMaxAttempts(3))
	result := a.Apply(context.Background(), "camp-1", &dm.DMResponse{Actions: dm.ActionList{
		dm.UseSpellSlotAction{CharacterID: "c1", SpellLevel: 1},
	}})

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, dm.OutcomeFailed, result.Outcomes[0].Status)
	assert.Equal(t, dm.ReasonVersionConflict, result.Outcomes[0].Reason)
	assert.Equal(t, 3, result.Outcomes[0].Attempts)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.WriteConflicts.WithLabelValues("spell_slots")))

	c, err := repo.GetCharacter(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, c.SpellSlots[1])
}

func TestApplyReadFailureMarksFailed(t *testing.T) {
	repo := newFakeRepo()
	seedCampaign(t, repo)
	repo.getErr["c1"] = errors.New("timeout")

	a, _ := newTestApplier(repo)
	result := a.Apply(context.Background(), "camp-1", &dm.DMResponse{Actions: dm.ActionList{
		dm.UpdateInventoryAction{CharacterID: "c1", Add: []string{"Rope"}},
	}})

	assert.Equal(t, dm.OutcomeFailed, result.Outcomes[0].Status)
	assert.Equal(t, dm.ReasonPersistence, result.Outcomes[0].Reason)
}
