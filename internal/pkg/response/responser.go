// File: internal/pkg/response/responser.go
package response

import (
	"context"
	"net/http"
)

// Writer 统一的响应写入接口，handler 只依赖它
type Writer interface {
	WriteSuccess(ctx context.Context, w http.ResponseWriter, data any) error
	WriteError(ctx context.Context, w http.ResponseWriter, err error) error
	WriteJSON(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error
}

// Response 对外的统一响应结构
type Response struct {
	Code      int         `json:"code"`               // 业务响应码
	Message   string      `json:"message"`            // 响应消息
	Data      interface{} `json:"data,omitempty"`     // 响应数据，成功时返回
	Error     string      `json:"error,omitempty"`    // 错误详情，仅非生产环境返回
	Timestamp int64       `json:"timestamp"`          // Unix时间戳
	TraceId   string      `json:"trace_id,omitempty"` // 请求追踪ID
}

// ResponseResult 泛型版本，供 swagger 注释和测试解码使用
type ResponseResult[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      *T     `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
	TraceId   string `json:"trace_id,omitempty"`
}
