// Package httperror 把服务层错误映射为统一的 HTTP 错误响应。
package httperror

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	chatService "github.com/zhouzirui/agent-chat/backend/internal/service/chat"
	"github.com/zhouzirui/agent-chat/backend/pkg/utils"
)

// Error codes.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeAgentFailed      = "AGENT_INVOCATION_FAILED"
	CodeAgentTimeout     = "AGENT_TIMEOUT"
	CodeAgentUnavailable = "AGENT_UNAVAILABLE"
	CodeRequestTimeout   = "REQUEST_TIMEOUT"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

// ValidationError 表示请求本身不合法，总是映射为 400。
type ValidationError struct {
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation 构造一个校验错误。
func Validation(message string, details map[string]any) error {
	return &ValidationError{Message: message, Details: details}
}

// Write 根据错误类型选择状态码与错误码并写出响应。
func Write(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := classify(err)

	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error_code", code,
			"error", err,
		)
	}

	utils.RespondError(w, status, code, message, details)
}

func classify(err error) (int, string, string, any) {
	var validation *ValidationError
	if errors.As(err, &validation) {
		var details any
		if len(validation.Details) > 0 {
			details = validation.Details
		}
		return http.StatusBadRequest, CodeValidation, validation.Message, details
	}

	if errors.Is(err, chatService.ErrInvalidTurn) {
		return http.StatusBadRequest, CodeValidation, err.Error(), nil
	}

	if errors.Is(err, chatService.ErrSessionNotFound) {
		return http.StatusNotFound, CodeSessionNotFound, "session not found", nil
	}

	var agentErr *chatService.AgentInvocationError
	if errors.As(err, &agentErr) {
		if agentErr.Timeout() {
			return http.StatusBadGateway, CodeAgentTimeout, "agent did not reply in time",
				map[string]any{"retryable": true}
		}
		return http.StatusBadGateway, CodeAgentFailed, "agent invocation failed",
			map[string]any{"cause": agentErr.Err.Error()}
	}

	if errors.Is(err, chatService.ErrAgentUnavailable) {
		return http.StatusServiceUnavailable, CodeAgentUnavailable, "no agent is configured", nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, CodeRequestTimeout, "request timed out", map[string]any{"retryable": true}
	}

	return http.StatusInternalServerError, CodeInternal, "internal server error", nil
}

// NotFound 处理未注册的路由。
func NotFound(w http.ResponseWriter, r *http.Request) {
	utils.RespondError(w, http.StatusNotFound, CodeNotFound, "route not found", map[string]any{"path": r.URL.Path})
}

// MethodNotAllowed 处理路由存在但方法不匹配的请求。
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	utils.RespondError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed",
		map[string]any{"method": r.Method, "path": r.URL.Path})
}
