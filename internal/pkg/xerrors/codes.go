// File: internal/pkg/xerrors/codes.go
package xerrors

import "fmt"

// ErrorCode 错误码类型（类型安全）
type ErrorCode int

// IsValid 检查错误码是否在预定义列表中
func (c ErrorCode) IsValid() bool {
	_, exists := codeMessages[c]
	return exists
}

// String 返回错误码的字符串表示
func (c ErrorCode) String() string {
	if msg, ok := codeMessages[c]; ok {
		return fmt.Sprintf("%d (%s)", c, msg)
	}
	return fmt.Sprintf("%d (未定义的错误码)", c)
}

// Message 返回错误码对应的消息
func (c ErrorCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "未知错误"
}

// ToInt 转换为 int
func (c ErrorCode) ToInt() int {
	return int(c)
}

// -----------------------------------------------------------------------------
// 业务错误码统一定义
// 按领域分段：1xxxxx 通用，6xxxxx 业务，7xxxxx 外部依赖，9xxxxx DM 回合协议
// -----------------------------------------------------------------------------
const (
	// 1xxxxx: 通用错误码
	CodeSuccess           ErrorCode = 100000 // 操作成功
	CodeInternalError     ErrorCode = 100001 // 内部服务错误
	CodeInvalidParams     ErrorCode = 100002 // 参数错误
	CodeInvalidRequest    ErrorCode = 100003 // 请求格式错误
	CodeResourceNotFound  ErrorCode = 100404 // 资源不存在
	CodeDuplicateResource ErrorCode = 100409 // 资源已存在
	CodeRateLimitExceeded ErrorCode = 100429 // 请求频率限制

	// 6xxxxx: 业务逻辑错误码
	CodeBusinessLogicError  ErrorCode = 600001 // 业务逻辑错误
	CodeDataIntegrityError  ErrorCode = 600002 // 数据完整性错误
	CodeOperationNotAllowed ErrorCode = 600003 // 操作不被允许

	// 7xxxxx: 外部服务错误码
	CodeExternalServiceError ErrorCode = 700001 // 外部服务错误
	CodeDatabaseError        ErrorCode = 700003 // 数据库错误
	CodeCacheError           ErrorCode = 700004 // 缓存服务错误
	CodeMessageQueueError    ErrorCode = 700005 // 消息队列错误

	// 9xxxxx: DM 回合协议
	CodeDMEmptyUserInput       ErrorCode = 900001 // 玩家输入为空
	CodeDMMalformedUpdateBlock ErrorCode = 900002 // 更新块无法解析（内部吸收）
	CodeDMUnknownActionType    ErrorCode = 900003 // 未知动作类型（内部吸收）
	CodeDMIncompleteAction     ErrorCode = 900004 // 动作缺少必填字段（内部吸收）
	CodeDMMutationPersistence  ErrorCode = 900005 // 状态写入失败（内部吸收）
	CodeDMCompletionFailure    ErrorCode = 900006 // 语言模型无响应
	CodeDMCampaignNotFound     ErrorCode = 900007 // 战役不存在
	CodeDMVersionConflict      ErrorCode = 900008 // 并发写入冲突
	CodeDMCharacterNotFound    ErrorCode = 900009 // 角色不存在
)

// -----------------------------------------------------------------------------
// HTTP 状态码常量定义
// -----------------------------------------------------------------------------
const (
	HTTPStatusOK                  = 200
	HTTPStatusBadRequest          = 400
	HTTPStatusNotFound            = 404
	HTTPStatusConflict            = 409
	HTTPStatusTooManyRequests     = 429
	HTTPStatusInternalServerError = 500
	HTTPStatusBadGateway          = 502
	HTTPStatusServiceUnavailable  = 503
)

// -----------------------------------------------------------------------------
// 错误消息映射
// -----------------------------------------------------------------------------
var codeMessages = map[ErrorCode]string{
	CodeSuccess:           "操作成功",
	CodeInternalError:     "内部服务错误",
	CodeInvalidParams:     "参数错误",
	CodeInvalidRequest:    "请求格式错误",
	CodeResourceNotFound:  "资源不存在",
	CodeDuplicateResource: "资源已存在",
	CodeRateLimitExceeded: "请求频率限制",

	CodeBusinessLogicError:  "业务逻辑错误",
	CodeDataIntegrityError:  "数据完整性错误",
	CodeOperationNotAllowed: "操作不被允许",

	CodeExternalServiceError: "外部服务错误",
	CodeDatabaseError:        "数据库错误",
	CodeCacheError:           "缓存服务错误",
	CodeMessageQueueError:    "消息队列错误",

	CodeDMEmptyUserInput:       "玩家输入不能为空",
	CodeDMMalformedUpdateBlock: "状态更新块格式错误",
	CodeDMUnknownActionType:    "未知的状态更新动作",
	CodeDMIncompleteAction:     "状态更新动作缺少必填字段",
	CodeDMMutationPersistence:  "状态更新写入失败",
	CodeDMCompletionFailure:    "地下城主暂时无法回应",
	CodeDMCampaignNotFound:     "战役不存在",
	CodeDMVersionConflict:      "状态已被其他回合修改",
	CodeDMCharacterNotFound:    "角色不存在",
}

// GetHTTPStatus 根据业务错误码获取HTTP状态码
func GetHTTPStatus(code ErrorCode) int {
	switch {
	case code == CodeSuccess:
		return HTTPStatusOK
	case code == CodeResourceNotFound, code == CodeDMCampaignNotFound, code == CodeDMCharacterNotFound:
		return HTTPStatusNotFound
	case code == CodeDuplicateResource, code == CodeDMVersionConflict:
		return HTTPStatusConflict
	case code == CodeInvalidParams, code == CodeInvalidRequest, code == CodeDMEmptyUserInput:
		return HTTPStatusBadRequest
	case code == CodeRateLimitExceeded:
		return HTTPStatusTooManyRequests
	case code == CodeDMCompletionFailure:
		return HTTPStatusBadGateway
	case code >= 600000 && code < 700000:
		return HTTPStatusBadRequest
	case code >= 700000 && code < 800000:
		return HTTPStatusServiceUnavailable
	default:
		return HTTPStatusInternalServerError
	}
}

// getCategoryByCode 根据错误码获取分类
func getCategoryByCode(code ErrorCode) string {
	switch {
	case code >= 100000 && code < 200000:
		return "system"
	case code >= 600000 && code < 700000:
		return "business"
	case code >= 700000 && code < 800000:
		return "external"
	case code >= 900000 && code < 1000000:
		return "dm"
	default:
		return "unknown"
	}
}

// getLevelByCode 根据错误码获取级别
func getLevelByCode(code ErrorCode) ErrorLevel {
	switch {
	case code == CodeSuccess:
		return LevelInfo
	case code >= 100001 && code <= 100003:
		return LevelWarn
	case code == CodeDMEmptyUserInput, code == CodeDMCampaignNotFound, code == CodeDMCharacterNotFound:
		return LevelWarn
	// 被吸收的协议错误只用于运维观测
	case code >= CodeDMMalformedUpdateBlock && code <= CodeDMIncompleteAction:
		return LevelInfo
	case code >= 700001 && code < 800000, code == CodeDMCompletionFailure:
		return LevelCritical
	default:
		return LevelError
	}
}

// isRetryableByCode 根据错误码判断是否可重试
func isRetryableByCode(code ErrorCode) bool {
	switch code {
	case CodeInternalError,
		CodeExternalServiceError,
		CodeDatabaseError,
		CodeCacheError,
		CodeMessageQueueError,
		CodeRateLimitExceeded,
		CodeDMCompletionFailure,
		CodeDMVersionConflict:
		return true
	default:
		return false
	}
}
