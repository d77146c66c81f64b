package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/zhouzirui/agent-chat/backend/internal/config"
	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	temperature *float64
	maxTokens   int64
}

// NewAnthropicClient builds a client from configuration.
func NewAnthropicClient(cfg config.AgentConfig, opts ...option.RequestOption) (*AnthropicClient, error) {
	if !cfg.Anthropic.Enabled() {
		return nil, errors.New("anthropic api key or model missing, set ANTHROPIC_API_KEY")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.Anthropic.APIKey)}
	if cfg.Anthropic.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	maxTokens := int64(defaultAnthropicMaxTokens)
	if cfg.MaxTokens != nil && *cfg.MaxTokens > 0 {
		maxTokens = int64(*cfg.MaxTokens)
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(clientOpts...),
		model:       cfg.Anthropic.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Name identifies the provider.
func (c *AnthropicClient) Name() string {
	return config.ProviderAnthropic
}

// InvokeAgent sends the prompt as one Messages request. System messages go
// into the dedicated system field.
func (c *AnthropicClient) InvokeAgent(ctx context.Context, messages []chat.PromptMessage) (string, error) {
	system, conversation := splitAnthropicPrompt(messages)
	if len(conversation) == 0 {
		return "", errors.New("anthropic api error: prompt has no user message")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  conversation,
	}
	if len(system) > 0 {
		params.System = system
	}
	if c.temperature != nil {
		params.Temperature = anthropic.Float(*c.temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var builder strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			builder.WriteString(block.AsText().Text)
		}
	}
	if strings.TrimSpace(builder.String()) == "" {
		return "", fmt.Errorf("anthropic api error: empty response (stop reason %q)", resp.StopReason)
	}
	return builder.String(), nil
}

// splitAnthropicPrompt separates system text from the conversation. The
// Messages API wants the conversation to open with a user turn and to
// alternate roles, so leading agent turns are skipped and consecutive turns
// of one role are merged.
func splitAnthropicPrompt(messages []chat.PromptMessage) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var conversation []anthropic.MessageParam
	var lastRole chat.Role

	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Text})
		case chat.RoleUser, chat.RoleAgent:
			if len(conversation) == 0 && msg.Role == chat.RoleAgent {
				continue
			}
			block := anthropic.NewTextBlock(msg.Text)
			if msg.Role == lastRole {
				last := &conversation[len(conversation)-1]
				last.Content = append(last.Content, block)
				continue
			}
			if msg.Role == chat.RoleUser {
				conversation = append(conversation, anthropic.NewUserMessage(block))
			} else {
				conversation = append(conversation, anthropic.NewAssistantMessage(block))
			}
			lastRole = msg.Role
		}
	}
	return system, conversation
}
