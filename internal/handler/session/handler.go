package session

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/agent-chat/backend/internal/handler/httperror"
	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/agent-chat/backend/internal/service/chat"
	"github.com/zhouzirui/agent-chat/backend/pkg/utils"
)

// Handler 会话管理的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建会话处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{sessionID}", h.handleGet)
	})
}

type createResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

type detailResponse struct {
	chat.Session
	Messages []chat.Turn `json:"messages"`
}

type listResponse struct {
	Sessions []chat.Session `json:"sessions"`
}

// handleCreate 创建空会话，请求体可以省略或为 {}。
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&payload)
	if err != nil && !errors.Is(err, io.EOF) {
		httperror.Write(w, r, httperror.Validation("invalid request body", map[string]any{"reason": err.Error()}))
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		httperror.Write(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, createResponse{
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
	})
}

// handleGet 返回会话元数据和保留的全部消息。
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, turns, err := h.chatSvc.Transcript(r.Context(), sessionID)
	if err != nil {
		httperror.Write(w, r, err)
		return
	}

	if turns == nil {
		turns = []chat.Turn{}
	}

	utils.RespondJSON(w, http.StatusOK, detailResponse{Session: session, Messages: turns})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, listResponse{Sessions: h.chatSvc.ListSessions(r.Context())})
}
