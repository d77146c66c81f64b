package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/agent-chat/backend/internal/config"
	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
)

type fakeChatModel struct {
	input []*schema.Message
	reply string
	err   error
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(m.reply, nil)}), nil
}

func (m *fakeChatModel) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

var samplePrompt = []chat.PromptMessage{
	{Role: chat.RoleSystem, Text: "be brief"},
	{Role: chat.RoleUser, Text: "hi {name}"},
	{Role: chat.RoleAgent, Text: "hello"},
	{Role: chat.RoleUser, Text: "how are you?"},
}

func TestToSchemaMessages(t *testing.T) {
	got := toSchemaMessages(samplePrompt)

	require.Len(t, got, 4)
	assert.Equal(t, schema.System, got[0].Role)
	assert.Equal(t, schema.User, got[1].Role)
	assert.Equal(t, schema.Assistant, got[2].Role)
	assert.Equal(t, "how are you?", got[3].Content)
}

func TestServiceInvokeAgentRunsChain(t *testing.T) {
	chatModel := &fakeChatModel{reply: "fine, thanks"}
	svc, err := NewServiceFromModel(context.Background(), chatModel, "fake")
	require.NoError(t, err)

	reply, err := svc.InvokeAgent(context.Background(), samplePrompt)
	require.NoError(t, err)
	assert.Equal(t, "fine, thanks", reply)
	assert.Equal(t, "fake", svc.Name())

	require.Len(t, chatModel.input, 4)
	assert.Equal(t, "hi {name}", chatModel.input[1].Content, "user text must not be treated as a template")
}

func TestServiceInvokeAgentPropagatesModelError(t *testing.T) {
	modelErr := errors.New("rate limited")
	svc, err := NewServiceFromModel(context.Background(), &fakeChatModel{err: modelErr}, "fake")
	require.NoError(t, err)

	_, err = svc.InvokeAgent(context.Background(), samplePrompt)
	assert.ErrorIs(t, err, modelErr)
}

func TestNewInvokerRequiresProvider(t *testing.T) {
	_, err := NewInvoker(context.Background(), config.AgentConfig{})
	assert.Error(t, err)

	_, err = NewInvoker(context.Background(), config.AgentConfig{Provider: config.ProviderOpenAI})
	assert.Error(t, err, "missing key must be reported")

	_, err = NewInvoker(context.Background(), config.AgentConfig{Provider: config.ProviderArk})
	assert.Error(t, err)
}

func TestNewInvokerBuildsConfiguredProvider(t *testing.T) {
	invoker, err := NewInvoker(context.Background(), config.AgentConfig{
		Provider: config.ProviderAnthropic,
		Anthropic: config.AnthropicConfig{
			APIKey: "test-key",
			Model:  "claude-3-5-haiku-latest",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, config.ProviderAnthropic, invoker.Name())
}
