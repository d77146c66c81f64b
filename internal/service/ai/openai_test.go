package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/agent-chat/backend/internal/config"
)

func TestToOpenAIMessages(t *testing.T) {
	got := toOpenAIMessages(samplePrompt)

	require.Len(t, got, 4)
	assert.NotNil(t, got[0].OfSystem)
	assert.NotNil(t, got[1].OfUser)
	assert.NotNil(t, got[2].OfAssistant)
	assert.NotNil(t, got[3].OfUser)
}

func TestOpenAIClientInvokeAgent(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gemini-pro",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "doing well"}}]
		}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(config.AgentConfig{
		OpenAI: config.OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "gemini-pro"},
	}, option.WithMaxRetries(0))
	require.NoError(t, err)

	reply, err := client.InvokeAgent(context.Background(), samplePrompt)
	require.NoError(t, err)
	assert.Equal(t, "doing well", reply)

	assert.Equal(t, "gemini-pro", captured.Model)
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "be brief", captured.Messages[0].Content)
	assert.Equal(t, "assistant", captured.Messages[2].Role)
	assert.Equal(t, "how are you?", captured.Messages[3].Content)
}

func TestOpenAIClientReportsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(config.AgentConfig{
		OpenAI: config.OpenAIConfig{APIKey: "wrong", BaseURL: srv.URL + "/", Model: "gpt-4o-mini"},
	}, option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = client.InvokeAgent(context.Background(), samplePrompt)
	assert.ErrorContains(t, err, "openai api error")
}
