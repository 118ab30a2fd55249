package dm

import "strings"

// BlockStatus 更新块的解析状态
type BlockStatus string

const (
	BlockNone      BlockStatus = "none"      // 没有更新块
	BlockParsed    BlockStatus = "parsed"    // 更新块解析成功（可能有被丢弃的动作）
	BlockMalformed BlockStatus = "malformed" // 更新块无法解析，整体当作叙述
)

// WarningKind 解析警告种类
type WarningKind string

const (
	WarnMalformedBlock    WarningKind = "malformed_block"
	WarnInvalidLogUpdate  WarningKind = "invalid_log_update"
	WarnInvalidActions    WarningKind = "invalid_actions"
	WarnUnknownActionType WarningKind = "unknown_action_type"
	WarnIncompleteAction  WarningKind = "incomplete_action"
	WarnExtraBlock        WarningKind = "extra_block"
)

// ParseWarning 被吸收的解析问题，Index 为动作下标，块级问题为 -1
type ParseWarning struct {
	Kind    WarningKind `json:"kind"`
	Code    int         `json:"code"`
	Index   int         `json:"index"`
	Message string      `json:"message"`
}

// DMResponse 一次模型输出的解析结果
type DMResponse struct {
	Narration   string         `json:"narration"`
	LogUpdate   *string        `json:"log_update,omitempty"`
	Actions     ActionList     `json:"actions"`
	Warnings    []ParseWarning `json:"warnings,omitempty"`
	BlockStatus BlockStatus    `json:"block_status"`
}

// HasLogUpdate 是否有需要追加的日志
func (r *DMResponse) HasLogUpdate() bool {
	return r.LogUpdate != nil && strings.TrimSpace(*r.LogUpdate) != ""
}
