package dm

import (
	"encoding/json"
	"sort"
	"strconv"
)

// SpellSlots 环位 -> 剩余法术位
type SpellSlots map[int]int

// Clone 深拷贝
func (s SpellSlots) Clone() SpellSlots {
	if s == nil {
		return nil
	}
	out := make(SpellSlots, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Levels 升序的环位列表
func (s SpellSlots) Levels() []int {
	levels := make([]int, 0, len(s))
	for k := range s {
		levels = append(levels, k)
	}
	sort.Ints(levels)
	return levels
}

// UnmarshalJSON 兼容 {"1":2} 与 {"1":"2"} 两种写法
func (s *SpellSlots) UnmarshalJSON(data []byte) error {
	var raw map[string]json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(SpellSlots, len(raw))
	for k, v := range raw {
		level, err := strconv.Atoi(k)
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return err
		}
		out[level] = n
	}
	*s = out
	return nil
}

// CharacterState 持久化的角色可变状态
type CharacterState struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaign_id"`
	Name       string     `json:"name"`
	Inventory  []string   `json:"inventory"`
	SpellSlots SpellSlots `json:"spell_slots"`
	Version    int64      `json:"version"`
}

// CampaignLog 持久化的战役日志
type CampaignLog struct {
	CampaignID string     `json:"campaign_id"`
	Entries    []LogEntry `json:"campaign_log"`
	Version    int64      `json:"version"`
}

// ApplyInventoryChange 先移除 remove 中每个名字的所有出现，再追加 add
func ApplyInventoryChange(current, add, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, name := range remove {
		drop[name] = struct{}{}
	}

	next := make([]string, 0, len(current)+len(add))
	for _, item := range current {
		if _, ok := drop[item]; ok {
			continue
		}
		next = append(next, item)
	}
	return append(next, add...)
}

// SpendSlot 剩余大于 0 时扣减一个，返回新表与是否扣减
func SpendSlot(slots SpellSlots, level int) (SpellSlots, bool) {
	if slots[level] <= 0 {
		return slots, false
	}
	next := slots.Clone()
	next[level]--
	return next, true
}
