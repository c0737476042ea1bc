package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/evaluation"
)

// RecordingGenerator returns a fixed response (or error) and records every
// prompt it receives.
type RecordingGenerator struct {
	Response string
	Err      error
	// HealthErr makes Health fail with this error.
	HealthErr error

	mu        sync.Mutex
	prompts   []string
	maxTokens []int
}

// Generate implements core.Generator.
func (g *RecordingGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.maxTokens = append(g.maxTokens, maxTokens)
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Err != nil {
		return "", g.Err
	}
	return g.Response, nil
}

// Health implements core.HealthChecker.
func (g *RecordingGenerator) Health(context.Context) (core.HealthStatus, error) {
	if g.HealthErr != nil {
		return core.HealthStatus{}, g.HealthErr
	}
	return core.HealthStatus{Status: core.StatusMock}, nil
}

// Prompts returns the recorded prompts in call order.
func (g *RecordingGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// LastPrompt returns the most recent prompt or "".
func (g *RecordingGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// LastMaxTokens returns the most recent token budget or 0.
func (g *RecordingGenerator) LastMaxTokens() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.maxTokens) == 0 {
		return 0
	}
	return g.maxTokens[len(g.maxTokens)-1]
}

// StubRetriever returns fixed documents, or Err, from Retrieve.
type StubRetriever struct {
	Docs []core.RetrievedDocument
	Err  error

	mu    sync.Mutex
	added []core.Document
}

// Retrieve implements core.Retriever.
func (r *StubRetriever) Retrieve(_ context.Context, _ string, k int) ([]core.RetrievedDocument, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	docs := r.Docs
	if k > 0 && len(docs) > k {
		docs = docs[:k]
	}
	return append([]core.RetrievedDocument{}, docs...), nil
}

// AddDocuments records docs.
func (r *StubRetriever) AddDocuments(_ context.Context, docs []core.Document) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, docs...)
	return true, nil
}

// Added returns every ingested document.
func (r *StubRetriever) Added() []core.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Document(nil), r.added...)
}

// Health implements core.HealthChecker.
func (r *StubRetriever) Health(context.Context) (core.HealthStatus, error) {
	return core.Healthy(map[string]any{"backend": "stub"}), nil
}

// FailingStore wraps a SessionStore and fails selected operations.
type FailingStore struct {
	core.SessionStore
	StoreErr   error
	HistoryErr error
}

// StoreInteraction fails with StoreErr when set.
func (s *FailingStore) StoreInteraction(ctx context.Context, id string, in core.Interaction) error {
	if s.StoreErr != nil {
		return s.StoreErr
	}
	return s.SessionStore.StoreInteraction(ctx, id, in)
}

// GetHistory fails with HistoryErr when set.
func (s *FailingStore) GetHistory(ctx context.Context, id string, limit int) ([]core.Interaction, error) {
	if s.HistoryErr != nil {
		return nil, s.HistoryErr
	}
	return s.SessionStore.GetHistory(ctx, id, limit)
}

// FailingScorer fails every evaluation with Err.
type FailingScorer struct {
	Err error
}

// Evaluate implements evaluation.Scorer.
func (s *FailingScorer) Evaluate(context.Context, evaluation.Input) (map[string]float64, error) {
	return nil, s.Err
}

// Health reports healthy.
func (s *FailingScorer) Health(context.Context) (core.HealthStatus, error) {
	return core.Healthy(nil), nil
}
