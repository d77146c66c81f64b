package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/agent-chat/backend/internal/config"
	"github.com/zhouzirui/agent-chat/backend/internal/handler"
	"github.com/zhouzirui/agent-chat/backend/internal/logging"
	"github.com/zhouzirui/agent-chat/backend/internal/service/ai"
	"github.com/zhouzirui/agent-chat/backend/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.Setup(cfg.Log)

	// Initialize agent
	var agent chat.Invoker
	if cfg.Agent.Enabled() {
		invoker, err := ai.NewInvoker(ctx, cfg.Agent)
		if err != nil {
			logger.Warn("failed to initialize agent, chat requests will return 503", "provider", cfg.Agent.Provider, "error", err)
		} else {
			agent = invoker
			logger.Info("agent initialized", "provider", invoker.Name())
		}
	} else {
		logger.Warn("no agent provider configured, set ARK_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY or ANTHROPIC_API_KEY")
	}

	chatService := chat.NewService(agent,
		chat.WithTruncationPolicy(truncationPolicy(cfg.Session)),
		chat.WithSystemPrompt(cfg.Agent.SystemPrompt),
		chat.WithAgentTimeout(cfg.Agent.Timeout),
		chat.WithLogger(logger),
	)
	defer chatService.Close()

	router := handler.NewRouter(chatService, cfg.Server.RequestTimeout)

	startServer(ctx, logger, cfg.Server, router)
}

func truncationPolicy(cfg config.SessionConfig) chat.TruncationPolicy {
	if cfg.Truncation == config.TruncateByTokens {
		return chat.TokenPolicy{MaxTokens: cfg.MaxTokens}
	}
	return chat.CountPolicy{MaxTurns: cfg.MaxTurns}
}

func startServer(ctx context.Context, logger *slog.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("agent chat backend listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
