package session

import (
	"context"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// Options configures an InMemoryStore.
type Options struct {
	// MaxInteractions is the per-session retention cap. Zero or negative
	// values fall back to core.DefaultMaxInteractions.
	MaxInteractions int
}

// InMemoryStore is a volatile SessionStore keeping sessions in a process
// local map. Appends hold the map read lock plus the per-session lock, so
// unrelated sessions never contend and ClearHistory waits for in-flight appends.
type InMemoryStore struct {
	mu              sync.RWMutex
	sessions        map[string]*core.Session
	maxInteractions int
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{MaxInteractions: core.DefaultMaxInteractions}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxInteractions <= 0 {
		opts.MaxInteractions = core.DefaultMaxInteractions
	}
	return &InMemoryStore{sessions: make(map[string]*core.Session), maxInteractions: opts.MaxInteractions}
}

// StoreInteraction appends to the session, creating it on first use, and
// evicts the oldest entries beyond the retention cap. The append happens
// while the session is still mapped, so a concurrent ClearHistory either
// removes it afterwards or the append lands in a fresh session.
func (s *InMemoryStore) StoreInteraction(_ context.Context, sessionID string, in core.Interaction) error {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	if ok {
		sess.Append(in, s.maxInteractions)
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[sessionID]; !ok {
		sess = core.NewSession(sessionID)
		s.sessions[sessionID] = sess
	}
	sess.Append(in, s.maxInteractions)
	return nil
}

// GetHistory returns up to limit most recent interactions, oldest first.
// Unknown sessions yield an empty slice.
func (s *InMemoryStore) GetHistory(_ context.Context, sessionID string, limit int) ([]core.Interaction, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return []core.Interaction{}, nil
	}
	return sess.Recent(limit), nil
}

// ClearHistory removes the session entirely and reports whether it existed.
func (s *InMemoryStore) ClearHistory(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

// Session returns a snapshot of the session, if present.
func (s *InMemoryStore) Session(sessionID string) (*core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// Health reports the number of active sessions.
func (s *InMemoryStore) Health(_ context.Context) (core.HealthStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Healthy(map[string]any{"backend": "memory", "active_sessions": len(s.sessions)}), nil
}
