package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/agent-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/agent-chat/backend/internal/handler/httperror"
	"github.com/zhouzirui/agent-chat/backend/internal/handler/session"
	middlewarePkg "github.com/zhouzirui/agent-chat/backend/internal/middleware"
	chatService "github.com/zhouzirui/agent-chat/backend/internal/service/chat"
	"github.com/zhouzirui/agent-chat/backend/pkg/utils"
)

// API 元信息，由 GET / 返回。
const (
	APIName        = "Conversational AI Agent API"
	APIVersion     = "0.1.0"
	APIDescription = "REST API for conversational AI agents"
)

// NewRouter wires HTTP routes to core services. requestTimeout bounds each
// request; zero disables the bound.
func NewRouter(chatSvc *chatService.Service, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.NotFound(httperror.NotFound)
	r.MethodNotAllowed(httperror.MethodNotAllowed)

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth)

	chatHandler := chat.New(chatSvc)
	sessionHandler := session.New(chatSvc)

	r.Route("/api/v1", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		sessionHandler.RegisterRoutes(api)
	})

	return r
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"name":        APIName,
		"version":     APIVersion,
		"description": APIDescription,
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
