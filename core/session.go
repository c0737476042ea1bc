package core

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxInteractions is the per-session retention cap used when a store is
// constructed without an explicit limit.
const DefaultMaxInteractions = 50

// Interaction is one processed query together with its provenance. Stores
// treat interactions as immutable values and hand out copies.
type Interaction struct {
	Query            string             `json:"query"`
	Response         string             `json:"response"`
	Sources          []string           `json:"sources"`
	ToolsUsed        []string           `json:"tools_used"`
	EvaluationScores map[string]float64 `json:"evaluation_scores"`
	Timestamp        time.Time          `json:"timestamp"`
	Metadata         map[string]any     `json:"metadata"`
}

// Clone returns a copy of the interaction whose slices and maps are not
// shared with the receiver. Metadata values are copied shallowly.
func (in Interaction) Clone() Interaction {
	out := in
	out.Sources = append([]string{}, in.Sources...)
	out.ToolsUsed = append([]string{}, in.ToolsUsed...)
	out.EvaluationScores = make(map[string]float64, len(in.EvaluationScores))
	for k, v := range in.EvaluationScores {
		out.EvaluationScores[k] = v
	}
	out.Metadata = make(map[string]any, len(in.Metadata))
	for k, v := range in.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// Session is a conversation thread holding an ordered, retention bounded
// interaction log. It is safe for concurrent access; appends to the same
// session are serialized by the session's own lock.
//
// Contract:
//   - Append evicts the oldest entries (FIFO by insertion) beyond the cap
//   - Recent returns a chronological copy
//   - Clone performs deep copies for safe divergence
type Session struct {
	ID           string        `json:"id"`
	Interactions []Interaction `json:"interactions"`
	Created      time.Time     `json:"created"`
	Updated      time.Time     `json:"updated"`
	mu           sync.RWMutex
}

// NewSession creates a new empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Interactions: []Interaction{}, Created: now, Updated: now}
}

// Append adds an interaction and trims the log to at most maxInteractions
// entries. A non-positive cap disables eviction. It returns the number of
// evicted interactions.
func (s *Session) Append(in Interaction, maxInteractions int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Interactions = append(s.Interactions, in.Clone())
	s.Updated = time.Now()
	if maxInteractions <= 0 || len(s.Interactions) <= maxInteractions {
		return 0
	}
	evicted := len(s.Interactions) - maxInteractions
	kept := make([]Interaction, maxInteractions)
	copy(kept, s.Interactions[evicted:])
	s.Interactions = kept
	return evicted
}

// Recent returns up to limit most recent interactions, oldest first. A
// non-positive limit returns the whole retained log.
func (s *Session) Recent(limit int) []Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.Interactions) > limit {
		start = len(s.Interactions) - limit
	}
	out := make([]Interaction, 0, len(s.Interactions)-start)
	for _, in := range s.Interactions[start:] {
		out = append(out, in.Clone())
	}
	return out
}

// Len returns the number of retained interactions.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Interactions)
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, Interactions: make([]Interaction, 0, len(s.Interactions)), Created: s.Created, Updated: s.Updated}
	for _, in := range s.Interactions {
		clone.Interactions = append(clone.Interactions, in.Clone())
	}
	return clone
}

// SessionStore persists per-session interaction history.
//
// Implementations must isolate sessions from each other and serialize appends
// for the same session. Unknown sessions are never an error: GetHistory
// returns an empty slice and ClearHistory returns false.
type SessionStore interface {
	StoreInteraction(ctx context.Context, sessionID string, in Interaction) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]Interaction, error)
	ClearHistory(ctx context.Context, sessionID string) (bool, error)
	HealthChecker
}
