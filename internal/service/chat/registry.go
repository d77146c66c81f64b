package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
)

const maxIDAttempts = 3

// entry is the live state of one session. mu guards session metadata and
// history; gate serializes whole chat exchanges and is never held by readers.
type entry struct {
	gate    chan struct{}
	mu      sync.Mutex
	session chat.Session
	turns   []chat.Turn
	nextSeq int64
}

func newEntry(session chat.Session) *entry {
	return &entry{
		gate:    make(chan struct{}, 1),
		session: session,
		turns:   make([]chat.Turn, 0, 16),
	}
}

// Handle is a resolved session. It stays usable for reads after the session
// is dropped from the registry, but store writes go through the registry and
// fail once it is gone.
type Handle struct {
	id string
	e  *entry
}

// ID returns the session identifier.
func (h *Handle) ID() string {
	return h.id
}

// Session returns a snapshot of the session metadata.
func (h *Handle) Session() chat.Session {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	return h.e.session
}

// History returns a copy of the retained turns, oldest first.
func (h *Handle) History() []chat.Turn {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()

	copied := make([]chat.Turn, len(h.e.turns))
	copy(copied, h.e.turns)
	return copied
}

// Snapshot returns session metadata and history read under one lock.
func (h *Handle) Snapshot() (chat.Session, []chat.Turn) {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()

	copied := make([]chat.Turn, len(h.e.turns))
	copy(copied, h.e.turns)
	return h.e.session, copied
}

// acquire takes the exchange gate of the session, waiting at most until ctx
// is done. The returned func releases it.
func (h *Handle) acquire(ctx context.Context) (func(), error) {
	select {
	case h.e.gate <- struct{}{}:
		return func() { <-h.e.gate }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Registry maps session ids to live session state. Its own lock only guards
// the map; per-session work happens under the entry locks.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool

	now   Clock
	newID IDSource
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClock replaces the wall clock used for session and turn timestamps.
func WithClock(clock Clock) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithIDSource replaces the session id generator.
func WithIDSource(source IDSource) RegistryOption {
	return func(r *Registry) {
		if source != nil {
			r.newID = source
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		now:     systemClock,
		newID:   newSessionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create allocates a fresh session with an empty history.
func (r *Registry) Create(_ context.Context) (chat.Session, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return chat.Session{}, ErrRegistryClosed
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := r.newID()
		if err != nil {
			return chat.Session{}, fmt.Errorf("generate session id: %w", err)
		}
		if id == "" {
			continue
		}
		if _, taken := r.entries[id]; taken {
			continue
		}

		session := chat.Session{ID: id, CreatedAt: now, LastActiveAt: now}
		r.entries[id] = newEntry(session)
		return session, nil
	}

	return chat.Session{}, ErrIDExhausted
}

// Resolve returns the live session for id.
func (r *Registry) Resolve(_ context.Context, id string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &Handle{id: id, e: e}, nil
}

// ResolveOrCreate creates a session when id is empty and resolves it
// otherwise. An unknown non-empty id is reported as ErrSessionNotFound; it
// never creates a session in its place.
func (r *Registry) ResolveOrCreate(ctx context.Context, id string) (string, *Handle, error) {
	if id != "" {
		h, err := r.Resolve(ctx, id)
		if err != nil {
			return "", nil, err
		}
		return id, h, nil
	}

	session, err := r.Create(ctx)
	if err != nil {
		return "", nil, err
	}
	h, err := r.Resolve(ctx, session.ID)
	if err != nil {
		return "", nil, err
	}
	return session.ID, h, nil
}

// Touch marks the session active now. LastActiveAt never moves backwards.
func (r *Registry) Touch(ctx context.Context, id string) error {
	h, err := r.Resolve(ctx, id)
	if err != nil {
		return err
	}

	now := r.now()
	h.e.mu.Lock()
	if now.After(h.e.session.LastActiveAt) {
		h.e.session.LastActiveAt = now
	}
	h.e.mu.Unlock()
	return nil
}

// List returns a snapshot of all sessions ordered by creation time.
func (r *Registry) List(_ context.Context) []chat.Session {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sessions := make([]chat.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		sessions = append(sessions, e.session)
		e.mu.Unlock()
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close drops every session. Later operations fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*entry)
	r.closed = true
}
