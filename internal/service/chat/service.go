package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
)

// DefaultAgentTimeout bounds a single agent call when no timeout is configured.
const DefaultAgentTimeout = 60 * time.Second

// Invoker is the agent collaborator: given the ordered prompt it returns the
// reply text. Retries, if any, are the invoker's business.
type Invoker interface {
	InvokeAgent(ctx context.Context, prompt []chat.PromptMessage) (string, error)
}

// Reply is the outcome of one successful chat exchange.
type Reply struct {
	SessionID string
	Text      string
	Timestamp time.Time
	Turns     []chat.Turn
}

// Service encapsulates conversation state management.
type Service struct {
	registry  *Registry
	store     *Store
	assembler *Assembler
	agent     Invoker
	timeout   time.Duration
	logger    *slog.Logger
}

type options struct {
	registry     *Registry
	policy       TruncationPolicy
	systemPrompt string
	timeout      time.Duration
	logger       *slog.Logger
}

// Option customizes a Service.
type Option func(*options)

// WithRegistry supplies the session registry, e.g. one with a test clock.
func WithRegistry(registry *Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithTruncationPolicy sets the policy bounding both stored history and
// the prompt window.
func WithTruncationPolicy(policy TruncationPolicy) Option {
	return func(o *options) { o.policy = policy }
}

// WithSystemPrompt sets the instruction prepended to every prompt. An empty
// string disables it.
func WithSystemPrompt(prompt string) Option {
	return func(o *options) { o.systemPrompt = prompt }
}

// WithAgentTimeout bounds every agent call. Zero or negative disables it.
func WithAgentTimeout(timeout time.Duration) Option {
	return func(o *options) { o.timeout = timeout }
}

// WithLogger sets the logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewService wires registry, store and assembler around agent. agent may be
// nil, in which case Chat fails with ErrAgentUnavailable.
func NewService(agent Invoker, opts ...Option) *Service {
	o := options{
		policy:       CountPolicy{MaxTurns: DefaultMaxTurns},
		systemPrompt: DefaultSystemPrompt,
		timeout:      DefaultAgentTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Service{
		registry:  o.registry,
		store:     NewStore(o.registry, o.policy),
		assembler: NewAssembler(o.systemPrompt, o.policy),
		agent:     agent,
		timeout:   o.timeout,
		logger:    o.logger.With("component", "chat"),
	}
}

// AgentAvailable reports whether an agent collaborator is configured.
func (s *Service) AgentAvailable() bool {
	return s.agent != nil
}

// CreateSession provisions an empty session.
func (s *Service) CreateSession(ctx context.Context) (chat.Session, error) {
	session, err := s.registry.Create(ctx)
	if err != nil {
		return chat.Session{}, err
	}
	s.logger.Debug("session created", "session", session.ID)
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	h, err := s.registry.Resolve(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return h.Session(), nil
}

// LoadTranscript returns the retained turns for the provided session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	return s.store.History(ctx, sessionID)
}

// Transcript returns the session and its retained turns as one consistent
// snapshot.
func (s *Service) Transcript(ctx context.Context, sessionID string) (chat.Session, []chat.Turn, error) {
	h, err := s.registry.Resolve(ctx, sessionID)
	if err != nil {
		return chat.Session{}, nil, err
	}
	session, turns := h.Snapshot()
	return session, turns, nil
}

// ListSessions returns every live session, oldest first.
func (s *Service) ListSessions(ctx context.Context) []chat.Session {
	return s.registry.List(ctx)
}

// Chat runs one exchange: resolve (or create, when sessionID is empty) the
// session, build the prompt, call the agent and record both turns.
//
// Exchanges on the same session run one at a time. Nothing is recorded when
// the agent fails or times out.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (Reply, error) {
	if strings.TrimSpace(message) == "" {
		return Reply{}, fmt.Errorf("%w: message is empty", ErrInvalidTurn)
	}
	if s.agent == nil {
		return Reply{}, ErrAgentUnavailable
	}

	id, h, err := s.registry.ResolveOrCreate(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}

	release, err := h.acquire(ctx)
	if err != nil {
		return Reply{SessionID: id}, fmt.Errorf("wait for session %s: %w", id, err)
	}
	defer release()

	prompt := s.assembler.BuildPrompt(h.History(), message)

	started := time.Now()
	text, err := s.invoke(ctx, prompt)
	if err != nil {
		s.logger.Warn("agent call failed", "session", id, "prompt_messages", len(prompt), "error", err)
		return Reply{SessionID: id}, err
	}

	turns, err := s.store.AppendExchange(ctx, id, message, text)
	if err != nil {
		return Reply{SessionID: id}, err
	}
	if err := s.registry.Touch(ctx, id); err != nil {
		return Reply{SessionID: id}, err
	}

	s.logger.Info("exchange recorded",
		"session", id,
		"prompt_messages", len(prompt),
		"reply_length", len(text),
		"elapsed", time.Since(started),
	)

	return Reply{
		SessionID: id,
		Text:      text,
		Timestamp: turns[len(turns)-1].CreatedAt,
		Turns:     turns,
	}, nil
}

// Close drops all sessions. It is called once at shutdown.
func (s *Service) Close() {
	s.registry.Close()
}

func (s *Service) invoke(ctx context.Context, prompt []chat.PromptMessage) (string, error) {
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.agent.InvokeAgent(callCtx, prompt)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return "", &AgentInvocationError{Err: err, TimedOut: timedOut}
	}
	if strings.TrimSpace(text) == "" {
		return "", &AgentInvocationError{Err: errors.New("agent returned an empty reply")}
	}
	return text, nil
}
