package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorBody 是所有错误响应共用的结构。
type ErrorBody struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Details      any    `json:"details,omitempty"`
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// RespondError 发送错误响应，details 为空时省略。
func RespondError(w http.ResponseWriter, status int, code, message string, details any) {
	RespondJSON(w, status, ErrorBody{ErrorCode: code, ErrorMessage: message, Details: details})
}
