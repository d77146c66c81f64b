package ai

import (
	"context"
	"fmt"

	"github.com/zhouzirui/agent-chat/backend/internal/config"
	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
)

// Invoker produces the agent reply for an assembled prompt.
type Invoker interface {
	InvokeAgent(ctx context.Context, messages []chat.PromptMessage) (string, error)
	Name() string
}

// NewInvoker builds the invoker for the configured provider.
func NewInvoker(ctx context.Context, cfg config.AgentConfig) (Invoker, error) {
	var (
		invoker Invoker
		err     error
	)

	switch cfg.Provider {
	case config.ProviderArk:
		invoker, err = NewService(ctx, cfg)
	case config.ProviderOpenAI:
		invoker, err = NewOpenAIClient(cfg)
	case config.ProviderAnthropic:
		invoker, err = NewAnthropicClient(cfg)
	case "":
		return nil, fmt.Errorf("no agent provider configured")
	default:
		return nil, fmt.Errorf("unknown agent provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return invoker, nil
}
