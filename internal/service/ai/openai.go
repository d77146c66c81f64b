package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zhouzirui/agent-chat/backend/internal/config"
	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
)

// OpenAIClient talks to an OpenAI-compatible Chat Completions endpoint.
// Gemini is reached the same way through its compatibility base URL.
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature *float64
	maxTokens   *int
}

// NewOpenAIClient builds a client from configuration. Extra request options
// are appended after the configured ones.
func NewOpenAIClient(cfg config.AgentConfig, opts ...option.RequestOption) (*OpenAIClient, error) {
	if !cfg.OpenAI.Enabled() {
		return nil, errors.New("openai api key or model missing, set OPENAI_API_KEY or GEMINI_API_KEY")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.OpenAI.APIKey)}
	if cfg.OpenAI.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAIClient{
		client:      openai.NewClient(clientOpts...),
		model:       cfg.OpenAI.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Name identifies the provider.
func (c *OpenAIClient) Name() string {
	return config.ProviderOpenAI
}

// InvokeAgent sends the prompt as one chat completion request.
func (c *OpenAIClient) InvokeAgent(ctx context.Context, messages []chat.PromptMessage) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toOpenAIMessages(messages),
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}
	if c.maxTokens != nil {
		params.MaxTokens = openai.Int(int64(*c.maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai api error: no choices returned")
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("openai api error: empty completion (finish reason %q)", resp.Choices[0].FinishReason)
	}
	return content, nil
}

func toOpenAIMessages(messages []chat.PromptMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Text))
		case chat.RoleUser:
			out = append(out, openai.UserMessage(msg.Text))
		case chat.RoleAgent:
			out = append(out, openai.AssistantMessage(msg.Text))
		}
	}
	return out
}
