package dm

import (
	"encoding/json"
	"fmt"
)

// ActionType 动作标签
type ActionType string

const (
	ActionUpdateInventory ActionType = "updateInventory"
	ActionUseSpellSlot    ActionType = "useSpellSlot"
)

// Known 是否是已知的动作标签
func (t ActionType) Known() bool {
	return t == ActionUpdateInventory || t == ActionUseSpellSlot
}

// UpdateAction 更新块中的单个动作
type UpdateAction interface {
	Type() ActionType
	Character() string
}

// UpdateInventoryAction 先移除后追加，物品按多重集处理
type UpdateInventoryAction struct {
	CharacterID string   `json:"characterId" validate:"not_blank"`
	Add         []string `json:"add,omitempty"`
	Remove      []string `json:"remove,omitempty"`
}

func (a UpdateInventoryAction) Type() ActionType  { return ActionUpdateInventory }
func (a UpdateInventoryAction) Character() string { return a.CharacterID }

// MarshalJSON 输出时带上 type 字段，与更新块格式一致
func (a UpdateInventoryAction) MarshalJSON() ([]byte, error) {
	type alias UpdateInventoryAction
	return json.Marshal(struct {
		Type ActionType `json:"type"`
		alias
	}{a.Type(), alias(a)})
}

// UseSpellSlotAction 消耗一个指定环位的法术位
type UseSpellSlotAction struct {
	CharacterID string `json:"characterId" validate:"not_blank"`
	SpellLevel  int    `json:"spellLevel" validate:"gt=0"`
}

func (a UseSpellSlotAction) Type() ActionType  { return ActionUseSpellSlot }
func (a UseSpellSlotAction) Character() string { return a.CharacterID }

// MarshalJSON 输出时带上 type 字段
func (a UseSpellSlotAction) MarshalJSON() ([]byte, error) {
	type alias UseSpellSlotAction
	return json.Marshal(struct {
		Type ActionType `json:"type"`
		alias
	}{a.Type(), alias(a)})
}

// ActionList 有序动作列表，可从带 type 字段的 JSON 还原（用于回合重放）
type ActionList []UpdateAction

// UnmarshalJSON 按 type 还原具体动作，未知类型报错
func (l *ActionList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(ActionList, 0, len(raw))
	for i, item := range raw {
		var head struct {
			Type ActionType `json:"type"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return fmt.Errorf("动作 %d: %w", i, err)
		}

		switch head.Type {
		case ActionUpdateInventory:
			var a UpdateInventoryAction
			if err := json.Unmarshal(item, &a); err != nil {
				return fmt.Errorf("动作 %d: %w", i, err)
			}
			out = append(out, a)
		case ActionUseSpellSlot:
			var a UseSpellSlotAction
			if err := json.Unmarshal(item, &a); err != nil {
				return fmt.Errorf("动作 %d: %w", i, err)
			}
			out = append(out, a)
		default:
			return fmt.Errorf("动作 %d: 未知类型 %q", i, head.Type)
		}
	}
	*l = out
	return nil
}
