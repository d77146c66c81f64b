package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/agent-chat/backend/internal/handler/httperror"
	chatService "github.com/zhouzirui/agent-chat/backend/internal/service/chat"
	"github.com/zhouzirui/agent-chat/backend/pkg/utils"
)

const (
	// MaxMessageLength 是单条用户消息允许的最大字符数。
	MaxMessageLength = 10000
	maxBodyBytes     = 1 << 20
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

type chatRequest struct {
	Message   *string `json:"message"`
	SessionID *string `json:"session_id"`
}

type chatResponse struct {
	Response  string    `json:"response"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// handleChat 处理一轮对话：校验请求后交给服务层，会话不存在时返回 404。
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		httperror.Write(w, r, err)
		return
	}

	message, err := validateMessage(payload.Message)
	if err != nil {
		httperror.Write(w, r, err)
		return
	}

	sessionID := ""
	if payload.SessionID != nil {
		sessionID = strings.TrimSpace(*payload.SessionID)
	}

	reply, err := h.chatSvc.Chat(r.Context(), sessionID, message)
	if err != nil {
		httperror.Write(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{
		Response:  reply.Text,
		SessionID: reply.SessionID,
		Timestamp: reply.Timestamp,
	})
}

func validateMessage(message *string) (string, error) {
	if message == nil {
		return "", httperror.Validation("message is required", map[string]any{"field": "message"})
	}

	length := utf8.RuneCountInString(*message)
	switch {
	case length == 0:
		return "", httperror.Validation("message must not be empty", map[string]any{"field": "message"})
	case length > MaxMessageLength:
		return "", httperror.Validation(
			fmt.Sprintf("message must be at most %d characters", MaxMessageLength),
			map[string]any{"field": "message", "length": length, "max_length": MaxMessageLength},
		)
	case strings.TrimSpace(*message) == "":
		return "", httperror.Validation("message must not be blank", map[string]any{"field": "message"})
	}
	return *message, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return httperror.Validation("request body too large", map[string]any{"max_bytes": tooLarge.Limit})
		}
		return httperror.Validation("invalid request body", map[string]any{"reason": err.Error()})
	}
	return nil
}
