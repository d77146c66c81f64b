package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/agent-chat/backend/internal/service/chat"
)

type stubAgent struct {
	mu      sync.Mutex
	prompts [][]chat.PromptMessage
	err     error
}

func (a *stubAgent) InvokeAgent(_ context.Context, prompt []chat.PromptMessage) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, append([]chat.PromptMessage(nil), prompt...))
	if a.err != nil {
		return "", a.err
	}
	return "echo: " + prompt[len(prompt)-1].Text, nil
}

func (a *stubAgent) lastPrompt() []chat.PromptMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prompts[len(a.prompts)-1]
}

func setupRouter(agent chatservice.Invoker) (*chi.Mux, *chatservice.Service) {
	chatSvc := chatservice.NewService(agent, chatservice.WithSystemPrompt(""))
	handler := New(chatSvc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func postChat(t *testing.T, r http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	switch v := body.(type) {
	case string:
		payload = []byte(v)
	default:
		var err error
		payload, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func TestChatWithoutSessionCreatesOne(t *testing.T) {
	r, svc := setupRouter(&stubAgent{})

	resp := postChat(t, r, map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, resp.Code)

	body := decodeBody(t, resp)
	assert.Equal(t, "echo: hello", body["response"])
	sessionID, _ := body["session_id"].(string)
	assert.True(t, strings.HasPrefix(sessionID, "session_"))

	ts, _ := body["timestamp"].(string)
	_, err := time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)

	assert.Len(t, svc.ListSessions(context.Background()), 1)
}

func TestChatSecondCallSeesFirstExchange(t *testing.T) {
	agent := &stubAgent{}
	r, _ := setupRouter(agent)

	first := decodeBody(t, postChat(t, r, map[string]any{"message": "My name is Ada."}))
	sessionID := first["session_id"].(string)

	resp := postChat(t, r, map[string]any{"message": "What is my name?", "session_id": sessionID})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, sessionID, decodeBody(t, resp)["session_id"])

	prompt := agent.lastPrompt()
	require.Len(t, prompt, 3)
	assert.Equal(t, "My name is Ada.", prompt[0].Text)
	assert.Equal(t, chat.RoleAgent, prompt[1].Role)
	assert.Equal(t, "What is my name?", prompt[2].Text)
}

func TestChatEmptySessionIDIsTreatedAsAbsent(t *testing.T) {
	r, svc := setupRouter(&stubAgent{})

	resp := postChat(t, r, map[string]any{"message": "hi", "session_id": ""})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, svc.ListSessions(context.Background()), 1)
}

func TestChatUnknownSessionReturns404(t *testing.T) {
	r, svc := setupRouter(&stubAgent{})

	resp := postChat(t, r, map[string]any{"message": "hi", "session_id": "session_does_not_exist"})
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeBody(t, resp)["error_code"])
	assert.Empty(t, svc.ListSessions(context.Background()), "unknown id must not create a session")
}

func TestChatValidation(t *testing.T) {
	cases := []struct {
		name string
		body any
	}{
		{"missing message", map[string]any{"session_id": "x"}},
		{"null message", map[string]any{"message": nil}},
		{"empty message", map[string]any{"message": ""}},
		{"blank message", map[string]any{"message": "   \n"}},
		{"oversized message", map[string]any{"message": strings.Repeat("a", MaxMessageLength+1)}},
		{"wrong type", map[string]any{"message": 42}},
		{"malformed json", `{"message": "hi"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agent := &stubAgent{}
			r, svc := setupRouter(agent)

			resp := postChat(t, r, tc.body)
			require.Equal(t, http.StatusBadRequest, resp.Code)

			body := decodeBody(t, resp)
			assert.Equal(t, "VALIDATION_ERROR", body["error_code"])
			assert.NotEmpty(t, body["error_message"])
			assert.Empty(t, svc.ListSessions(context.Background()))
			assert.Empty(t, agent.prompts)
		})
	}
}

func TestChatAcceptsMaximumLengthInCharacters(t *testing.T) {
	r, _ := setupRouter(&stubAgent{})

	resp := postChat(t, r, map[string]any{"message": strings.Repeat("é", MaxMessageLength)})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestChatAgentFailureReturns502AndRecordsNothing(t *testing.T) {
	agent := &stubAgent{}
	r, svc := setupRouter(agent)

	first := decodeBody(t, postChat(t, r, map[string]any{"message": "hello"}))
	sessionID := first["session_id"].(string)

	agent.mu.Lock()
	agent.err = errors.New("provider exploded")
	agent.mu.Unlock()

	resp := postChat(t, r, map[string]any{"message": "again", "session_id": sessionID})
	require.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, "AGENT_INVOCATION_FAILED", decodeBody(t, resp)["error_code"])

	turns, err := svc.LoadTranscript(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestChatWithoutAgentReturns503(t *testing.T) {
	r, svc := setupRouter(nil)

	resp := postChat(t, r, map[string]any{"message": "hello"})
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "AGENT_UNAVAILABLE", decodeBody(t, resp)["error_code"])
	assert.Empty(t, svc.ListSessions(context.Background()))
}
