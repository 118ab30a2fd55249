// Package parser 从模型回复中提取并校验状态更新块
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/pkg/jsonx"
	customvalidator "anomali-dm/internal/pkg/validator"
	"anomali-dm/internal/pkg/xerrors"
)

// Parser 分阶段的更新块解析器：定界扫描 -> 内容提取 -> 结构解析 -> 字段校验。
// 解析失败一律降级为纯叙述，不返回错误。
type Parser struct {
	lenient  bool
	validate *validator.Validate
}

// Option 解析器选项
type Option func(*Parser)

// WithLenient 开启宽松模式：标准解析失败后尝试修复 JSON
func WithLenient(enabled bool) Option {
	return func(p *Parser) {
		p.lenient = enabled
	}
}

// WithValidator 替换字段校验器
func WithValidator(v *validator.Validate) Option {
	return func(p *Parser) {
		p.validate = v
	}
}

// New 创建解析器
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	if p.validate == nil {
		p.validate = customvalidator.NewEngine()
	}
	return p
}

// Lenient 是否为宽松模式
func (p *Parser) Lenient() bool {
	return p.lenient
}

// Parse 解析模型原始回复
func (p *Parser) Parse(raw string) *dm.DMResponse {
	resp := &dm.DMResponse{
		Narration:   raw,
		Actions:     dm.ActionList{},
		BlockStatus: dm.BlockNone,
	}

	fences := scanFences(raw)
	if len(fences) == 0 {
		return resp
	}

	first := fences[0]
	// 只解析第一个块，其余块直接从叙述中删掉
	spans := make([][2]int, 0, len(fences)+1)
	for i, f := range fences[1:] {
		spans = append(spans, [2]int{f.start, f.end})
		resp.Warnings = append(resp.Warnings, warning(dm.WarnExtraBlock, xerrors.CodeDMMalformedUpdateBlock, -1,
			fmt.Sprintf("忽略第 %d 个更新块", i+2)))
	}

	payload, err := p.decodeBlock(first.inner(raw))
	if err != nil {
		// 降级：保留块内文本，只去掉定界符
		resp.BlockStatus = dm.BlockMalformed
		resp.Warnings = append([]dm.ParseWarning{
			warning(dm.WarnMalformedBlock, xerrors.CodeDMMalformedUpdateBlock, -1, err.Error()),
		}, resp.Warnings...)
		rest := removeSpans(raw[first.end:], shiftSpans(spans, first.end))
		resp.Narration = strings.TrimSpace(raw[:first.start] + first.inner(raw) + rest)
		return resp
	}

	resp.BlockStatus = dm.BlockParsed
	resp.Narration = strings.TrimSpace(removeSpans(raw, append([][2]int{{first.start, first.end}}, spans...)))
	p.validateFields(payload, resp)
	return resp
}

// decodeBlock 阶段三：结构解析，顶层必须是对象
func (p *Parser) decodeBlock(inner string) (map[string]json.RawMessage, error) {
	if inner == "" {
		return nil, errors.New("更新块为空")
	}

	var payload map[string]json.RawMessage
	err := json.Unmarshal([]byte(inner), &payload)
	if err == nil && payload != nil {
		return payload, nil
	}
	if err == nil {
		err = errors.New("更新块顶层不是对象")
	}
	if !p.lenient {
		return nil, err
	}

	normalized, _, nerr := jsonx.Normalize(inner)
	if nerr != nil {
		return nil, fmt.Errorf("%v; %w", err, nerr)
	}
	payload = nil
	if err := json.Unmarshal(normalized, &payload); err != nil || payload == nil {
		return nil, errors.New("修复后的更新块顶层不是对象")
	}
	return payload, nil
}

// validateFields 阶段四：逐字段校验，问题只记录警告
func (p *Parser) validateFields(payload map[string]json.RawMessage, resp *dm.DMResponse) {
	if raw, ok := payload["logUpdate"]; ok && !isNull(raw) {
		var entry string
		if err := json.Unmarshal(raw, &entry); err != nil {
			resp.Warnings = append(resp.Warnings, warning(dm.WarnInvalidLogUpdate, xerrors.CodeDMIncompleteAction, -1,
				"logUpdate 必须是字符串"))
		} else if strings.TrimSpace(entry) != "" {
			resp.LogUpdate = &entry
		}
	}

	raw, ok := payload["actions"]
	if !ok || isNull(raw) {
		return
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		resp.Warnings = append(resp.Warnings, warning(dm.WarnInvalidActions, xerrors.CodeDMIncompleteAction, -1,
			"actions 必须是数组"))
		return
	}

	for i, element := range elements {
		action, w := p.decodeAction(i, element)
		if w != nil {
			resp.Warnings = append(resp.Warnings, *w)
			continue
		}
		resp.Actions = append(resp.Actions, action)
	}
}

func (p *Parser) decodeAction(index int, element json.RawMessage) (dm.UpdateAction, *dm.ParseWarning) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(element, &fields); err != nil || fields == nil {
		w := warning(dm.WarnIncompleteAction, xerrors.CodeDMIncompleteAction, index, "动作必须是对象")
		return nil, &w
	}

	var actionType dm.ActionType
	if raw, ok := fields["type"]; ok {
		_ = json.Unmarshal(raw, &actionType)
	}
	if !actionType.Known() {
		w := warning(dm.WarnUnknownActionType, xerrors.CodeDMUnknownActionType, index,
			fmt.Sprintf("未知的动作类型 %q", string(actionType)))
		return nil, &w
	}

	var (
		action dm.UpdateAction
		err    error
	)
	switch actionType {
	case dm.ActionUpdateInventory:
		action, err = decodeInventory(fields)
	case dm.ActionUseSpellSlot:
		action, err = decodeSpellSlot(fields)
	}
	if err == nil {
		err = p.validate.Struct(action)
		if err != nil {
			err = errors.New(customvalidator.TranslateValidationError(err))
		}
	}
	if err != nil {
		w := warning(dm.WarnIncompleteAction, xerrors.CodeDMIncompleteAction, index,
			fmt.Sprintf("%s: %v", actionType, err))
		return nil, &w
	}
	return action, nil
}

func decodeInventory(fields map[string]json.RawMessage) (dm.UpdateAction, error) {
	var a dm.UpdateInventoryAction
	if err := decodeString(fields, "characterId", &a.CharacterID); err != nil {
		return nil, err
	}
	if err := decodeStrings(fields, "add", &a.Add); err != nil {
		return nil, err
	}
	if err := decodeStrings(fields, "remove", &a.Remove); err != nil {
		return nil, err
	}
	return a, nil
}

func decodeSpellSlot(fields map[string]json.RawMessage) (dm.UpdateAction, error) {
	var a dm.UseSpellSlotAction
	if err := decodeString(fields, "characterId", &a.CharacterID); err != nil {
		return nil, err
	}

	raw, ok := fields["spellLevel"]
	if !ok || isNull(raw) {
		return nil, errors.New("缺少 spellLevel")
	}
	level, err := decodeLevel(raw)
	if err != nil {
		return nil, err
	}
	a.SpellLevel = level
	return a, nil
}

func decodeString(fields map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s 必须是字符串", key)
	}
	return nil
}

func decodeStrings(fields map[string]json.RawMessage, key string, dst *[]string) error {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s 必须是字符串数组", key)
	}
	return nil
}

// decodeLevel 环位必须是整数，允许 2.0 这样的整值浮点
func decodeLevel(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, errors.New("spellLevel 必须是整数")
	}
	if i, err := strconv.ParseInt(n.String(), 10, 32); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, errors.New("spellLevel 必须是整数")
	}
	return int(f), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func warning(kind dm.WarningKind, code xerrors.ErrorCode, index int, message string) dm.ParseWarning {
	return dm.ParseWarning{
		Kind:    kind,
		Code:    code.ToInt(),
		Index:   index,
		Message: message,
	}
}
