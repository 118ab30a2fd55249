package dm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyInventoryChange(t *testing.T) {
	tests := []struct {
		name    string
		current []string
		add     []string
		remove  []string
		want    []string
	}{
		{name: "先移除后追加", current: []string{"Torch", "Dagger"}, add: []string{"Rope"}, remove: []string{"Torch"}, want: []string{"Dagger", "Rope"}},
		{name: "移除不存在的物品无影响", current: []string{"Dagger"}, remove: []string{"Shield"}, want: []string{"Dagger"}},
		{name: "追加允许重复", current: []string{"Arrow"}, add: []string{"Arrow", "Arrow"}, want: []string{"Arrow", "Arrow", "Arrow"}},
		{name: "移除所有同名物品", current: []string{"Ration", "Rope", "Ration"}, remove: []string{"Ration"}, want: []string{"Rope"}},
		{name: "空背包", current: nil, add: []string{"Map"}, want: []string{"Map"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyInventoryChange(tt.current, tt.add, tt.remove))
		})
	}
}

func TestSpendSlot(t *testing.T) {
	slots := SpellSlots{1: 2, 2: 3}
	next, ok := SpendSlot(slots, 2)
	assert.True(t, ok)
	assert.Equal(t, SpellSlots{1: 2, 2: 2}, next)
	assert.Equal(t, 3, slots[2], "原表不应被修改")

	exhausted := SpellSlots{1: 2, 2: 0}
	next, ok = SpendSlot(exhausted, 2)
	assert.False(t, ok)
	assert.Equal(t, SpellSlots{1: 2, 2: 0}, next)

	_, ok = SpendSlot(exhausted, 5)
	assert.False(t, ok)
}

func TestSpellSlotsJSON(t *testing.T) {
	var slots SpellSlots
	require.NoError(t, json.Unmarshal([]byte(`{"1": 4, "3": "2"}`), &slots))
	assert.Equal(t, SpellSlots{1: 4, 3: 2}, slots)
	assert.Equal(t, []int{1, 3}, slots.Levels())

	out, err := json.Marshal(SpellSlots{2: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"2":1}`, string(out))
}

func TestActionListRestoresConcreteTypes(t *testing.T) {
	actions := ActionList{
		UpdateInventoryAction{CharacterID: "c1", Add: []string{"Rope"}, Remove: []string{"Torch"}},
		UseSpellSlotAction{CharacterID: "c2", SpellLevel: 2},
	}
	data, err := json.Marshal(actions)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"updateInventory"`)
	assert.Contains(t, string(data), `"type":"useSpellSlot"`)

	var restored ActionList
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, actions, restored)

	assert.Error(t, json.Unmarshal([]byte(`[{"type":"castFireball"}]`), &restored))
}

func TestNewLogEntry(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 891000000, time.FixedZone("UTC+8", 8*3600))
	entry := NewLogEntry("The party reached Brindle.", now)
	assert.Equal(t, "2025-03-03T21:06:07.891Z", entry.Timestamp)
}

func TestApplyResultCounts(t *testing.T) {
	r := &ApplyResult{Outcomes: []ActionOutcome{
		{Status: OutcomeApplied}, {Status: OutcomeSkipped}, {Status: OutcomeApplied}, {Status: OutcomeFailed},
	}}
	assert.Equal(t, 2, r.Applied())
	assert.Equal(t, 1, r.Skipped())
	assert.Equal(t, 1, r.Failed())
}

func TestHasLogUpdate(t *testing.T) {
	text := func(s string) *string { return &s }
	tests := []struct {
		name string
		log  *string
		want bool
	}{
		{name: "没有日志字段", log: nil, want: false},
		{name: "空字符串", log: text(""), want: false},
		{name: "只有空白", log: text("  \n\t "), want: false},
		{name: "正常日志", log: text("Met the innkeeper."), want: true},
		{name: "带首尾空白的日志", log: text("  Found a key. "), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &DMResponse{LogUpdate: tt.log}
			assert.Equal(t, tt.want, r.HasLogUpdate())
		})
	}
}
