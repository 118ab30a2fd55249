// File: internal/pkg/i18n/error_messages.go
package i18n

import (
	"anomali-dm/internal/pkg/xerrors"

	"golang.org/x/text/language"
)

// ErrorMessages 对外错误消息的多语言映射
var ErrorMessages = map[xerrors.ErrorCode]map[language.Tag]string{
	xerrors.CodeSuccess:           {language.Chinese: "操作成功", language.English: "Operation successful"},
	xerrors.CodeInternalError:     {language.Chinese: "内部服务错误", language.English: "Internal server error"},
	xerrors.CodeInvalidParams:     {language.Chinese: "参数错误", language.English: "Invalid parameters"},
	xerrors.CodeInvalidRequest:    {language.Chinese: "请求格式错误", language.English: "Invalid request format"},
	xerrors.CodeResourceNotFound:  {language.Chinese: "资源不存在", language.English: "Resource not found"},
	xerrors.CodeDuplicateResource: {language.Chinese: "资源已存在", language.English: "Resource already exists"},
	xerrors.CodeRateLimitExceeded: {language.Chinese: "请求频率限制", language.English: "Rate limit exceeded"},

	xerrors.CodeExternalServiceError: {language.Chinese: "外部服务错误", language.English: "External service error"},
	xerrors.CodeDatabaseError:        {language.Chinese: "数据库错误", language.English: "Database error"},
	xerrors.CodeCacheError:           {language.Chinese: "缓存服务错误", language.English: "Cache service error"},
	xerrors.CodeMessageQueueError:    {language.Chinese: "消息队列错误", language.English: "Message queue error"},

	// 9xxxxx: DM 回合协议
	xerrors.CodeDMEmptyUserInput:       {language.Chinese: "玩家输入不能为空", language.English: "User input must not be empty"},
	xerrors.CodeDMMalformedUpdateBlock: {language.Chinese: "状态更新块格式错误", language.English: "Malformed update block"},
	xerrors.CodeDMUnknownActionType:    {language.Chinese: "未知的状态更新动作", language.English: "Unknown action type"},
	xerrors.CodeDMIncompleteAction:     {language.Chinese: "状态更新动作缺少必填字段", language.English: "Incomplete action"},
	xerrors.CodeDMMutationPersistence:  {language.Chinese: "状态更新写入失败", language.English: "Failed to persist state mutation"},
	xerrors.CodeDMCompletionFailure:    {language.Chinese: "地下城主暂时无法回应", language.English: "Failed to get a response from the AI DM"},
	xerrors.CodeDMCampaignNotFound:     {language.Chinese: "战役不存在", language.English: "Campaign not found"},
	xerrors.CodeDMVersionConflict:      {language.Chinese: "状态已被其他回合修改", language.English: "State was modified by another turn"},
	xerrors.CodeDMCharacterNotFound:    {language.Chinese: "角色不存在", language.English: "Character not found"},
}

// GetErrorMessage 获取错误码对应语言的消息，缺失时回退中文
func GetErrorMessage(code xerrors.ErrorCode, lang language.Tag) string {
	if messages, ok := ErrorMessages[code]; ok {
		if msg, ok := messages[lang]; ok {
			return msg
		}
		if msg, ok := messages[language.Chinese]; ok {
			return msg
		}
	}
	if lang == language.English {
		return "Unknown error"
	}
	return "未知错误"
}
