// File: internal/pkg/response/handler.go
package response

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"anomali-dm/internal/pkg/i18n"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/trace"
	"anomali-dm/internal/pkg/xerrors"
)

// ResponseHandler Writer 的默认实现
type ResponseHandler struct {
	logger      log.Logger
	environment string
}

// NewResponseHandler 创建响应处理器
func NewResponseHandler(logger log.Logger, environment string) *ResponseHandler {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &ResponseHandler{logger: logger, environment: environment}
}

// DefaultResponseHandler 使用全局 logger 的开发环境处理器
func DefaultResponseHandler() *ResponseHandler {
	return NewResponseHandler(log.GetLogger(), "development")
}

// WriteSuccess 写入 200 成功响应
func (h *ResponseHandler) WriteSuccess(ctx context.Context, w http.ResponseWriter, data any) error {
	lang := i18n.GetLanguage(ctx)
	resp := &Response{
		Code:      int(xerrors.CodeSuccess),
		Message:   i18n.GetErrorMessage(xerrors.CodeSuccess, lang),
		Data:      data,
		Timestamp: time.Now().Unix(),
		TraceId:   trace.GetTraceID(ctx),
	}
	return h.encode(ctx, w, http.StatusOK, resp)
}

// WriteError 按 AppError 的错误码写入失败响应，非 AppError 一律按内部错误处理
func (h *ResponseHandler) WriteError(ctx context.Context, w http.ResponseWriter, err error) error {
	appErr := xerrors.Wrap(err, xerrors.CodeInternalError, "未分类错误")
	if appErr == nil {
		appErr = xerrors.FromCode(xerrors.CodeInternalError)
	}

	lang := i18n.GetLanguage(ctx)
	resp := &Response{
		Code:      int(appErr.Code),
		Message:   i18n.GetErrorMessage(appErr.Code, lang),
		Timestamp: time.Now().Unix(),
		TraceId:   trace.GetTraceID(ctx),
	}

	// 生产环境不暴露底层错误
	if h.environment != "production" {
		resp.Error = appErr.Error()
	}

	status := xerrors.GetHTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError {
		log.LogAppError(ctx, h.logger, "请求处理失败", appErr)
	}
	return h.encode(ctx, w, status, resp)
}

// WriteJSON 直接写入 JSON，不做统一包装
func (h *ResponseHandler) WriteJSON(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	return h.encode(ctx, w, statusCode, data)
}

func (h *ResponseHandler) encode(ctx context.Context, w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if traceID := trace.GetTraceID(ctx); traceID != "" {
		w.Header().Set(trace.HeaderTraceID, traceID)
	}
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(ctx, "写入JSON响应失败", "error", err)
		return err
	}
	return nil
}
