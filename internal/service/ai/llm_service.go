package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/agent-chat/backend/internal/config"
	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
)

// Service runs prompts through an eino chain ending in a chat model.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	name      string
}

// NewService creates an Ark-backed AI service instance.
func NewService(ctx context.Context, cfg config.AgentConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceFromModel(ctx, chatModel, config.ProviderArk)
}

// NewServiceFromModel wraps an existing eino chat model.
func NewServiceFromModel(ctx context.Context, chatModel model.ChatModel, name string) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("messages", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		chain:     runnable,
		name:      name,
	}, nil
}

// Name identifies the provider behind the chain.
func (s *Service) Name() string {
	return s.name
}

// InvokeAgent generates the reply for an assembled prompt.
func (s *Service) InvokeAgent(ctx context.Context, messages []chat.PromptMessage) (string, error) {
	response, err := s.chain.Invoke(ctx, map[string]any{
		"messages": toSchemaMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("AI chain returned no message")
	}

	slog.Debug("generated response", "component", "ai", "provider", s.name, "length", len(response.Content))
	return response.Content, nil
}

// GetChatModel 返回底层的聊天模型
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

func toSchemaMessages(messages []chat.PromptMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleSystem:
			out = append(out, schema.SystemMessage(msg.Text))
		case chat.RoleUser:
			out = append(out, schema.UserMessage(msg.Text))
		case chat.RoleAgent:
			out = append(out, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return out
}
