package chat_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	model "github.com/zhouzirui/agent-chat/backend/internal/model/chat"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeAgent struct {
	mu      sync.Mutex
	prompts [][]model.PromptMessage
	reply   func(ctx context.Context, prompt []model.PromptMessage) (string, error)
}

func (a *fakeAgent) InvokeAgent(ctx context.Context, prompt []model.PromptMessage) (string, error) {
	a.mu.Lock()
	copied := append([]model.PromptMessage(nil), prompt...)
	a.prompts = append(a.prompts, copied)
	reply := a.reply
	a.mu.Unlock()

	if reply != nil {
		return reply(ctx, prompt)
	}
	return "reply to: " + prompt[len(prompt)-1].Text, nil
}

func (a *fakeAgent) Prompts() [][]model.PromptMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][]model.PromptMessage(nil), a.prompts...)
}

func sequentialIDs() func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("session_%04d", n), nil
	}
}
