package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
)

// Store holds the conversation history of every registered session and
// enforces the truncation policy after each append.
type Store struct {
	registry *Registry
	policy   TruncationPolicy
}

// NewStore returns a store over the sessions of registry. A nil policy
// falls back to CountPolicy{MaxTurns: DefaultMaxTurns}.
func NewStore(registry *Registry, policy TruncationPolicy) *Store {
	if policy == nil {
		policy = CountPolicy{MaxTurns: DefaultMaxTurns}
	}
	return &Store{registry: registry, policy: policy}
}

type pendingTurn struct {
	role chat.Role
	text string
}

// Append records one turn and returns it with its assigned sequence.
func (s *Store) Append(ctx context.Context, id string, role chat.Role, text string) (chat.Turn, error) {
	turns, err := s.appendTurns(ctx, id, pendingTurn{role: role, text: text})
	if err != nil {
		return chat.Turn{}, err
	}
	return turns[0], nil
}

// AppendExchange records a user turn and the agent reply to it in a single
// critical section, so readers never observe half of an exchange.
func (s *Store) AppendExchange(ctx context.Context, id, userText, agentText string) ([]chat.Turn, error) {
	return s.appendTurns(ctx, id,
		pendingTurn{role: chat.RoleUser, text: userText},
		pendingTurn{role: chat.RoleAgent, text: agentText},
	)
}

// History returns the retained turns of a session, oldest first.
func (s *Store) History(ctx context.Context, id string) ([]chat.Turn, error) {
	h, err := s.registry.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return h.History(), nil
}

func (s *Store) appendTurns(ctx context.Context, id string, pending ...pendingTurn) ([]chat.Turn, error) {
	for _, p := range pending {
		if !p.role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidTurn, p.role)
		}
		if strings.TrimSpace(p.text) == "" {
			return nil, fmt.Errorf("%w: %s text is empty", ErrInvalidTurn, p.role)
		}
	}

	h, err := s.registry.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.registry.now()

	h.e.mu.Lock()
	defer h.e.mu.Unlock()

	appended := make([]chat.Turn, 0, len(pending))
	for _, p := range pending {
		h.e.nextSeq++
		turn := chat.Turn{
			Role:      p.role,
			Text:      p.text,
			Sequence:  h.e.nextSeq,
			CreatedAt: now,
		}
		h.e.turns = append(h.e.turns, turn)
		appended = append(appended, turn)
	}
	h.e.turns = retain(s.policy, h.e.turns, len(pending))

	return appended, nil
}
