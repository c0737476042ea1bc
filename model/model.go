package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentflow/core"
)

// Info contains metadata about a generator implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock"
}

// Describer is implemented by generators that can report their Info.
type Describer interface {
	Info() Info
}

// Describe returns g's Info, or a generic one when g does not implement Describer.
func Describe(g core.Generator) Info {
	if d, ok := g.(Describer); ok {
		return d.Info()
	}
	return Info{Name: fmt.Sprintf("%T", g), Provider: "custom"}
}

type cannedResponse struct {
	trigger  string
	response string
}

// MockGenerator is a deterministic in-memory Generator useful for tests,
// demos and deployments without model credentials.
//
// Registered responses are matched by case-insensitive substring against the
// prompt, in registration order. The built-in fallbacks answer greetings,
// machine learning and calculation prompts; anything else echoes the first
// 100 characters of the prompt.
type MockGenerator struct {
	info  Info
	delay time.Duration

	mu        sync.RWMutex
	responses []cannedResponse
}

// NewMockGenerator constructs a MockGenerator. A positive delay simulates
// backend latency and honours context cancellation.
func NewMockGenerator(name string, delay time.Duration) *MockGenerator {
	if name == "" {
		name = "mock-model"
	}
	return &MockGenerator{info: Info{Name: name, Provider: "mock"}, delay: delay}
}

// AddResponse registers a canned completion for prompts containing trigger.
func (m *MockGenerator) AddResponse(trigger, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, cannedResponse{trigger: strings.ToLower(trigger), response: response})
}

// Generate implements core.Generator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, _ int) (string, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	lower := strings.ToLower(prompt)

	m.mu.RLock()
	for _, c := range m.responses {
		if strings.Contains(lower, c.trigger) {
			m.mu.RUnlock()
			return c.response, nil
		}
	}
	m.mu.RUnlock()

	switch {
	case strings.Contains(lower, "hello"):
		return "Hello! I'm an AI agent ready to help you with various tasks. I can process documents, use tools, and provide evaluated responses.", nil
	case strings.Contains(lower, "machine learning"):
		return "Machine learning is a subset of AI that enables systems to learn and improve from data without explicit programming. It includes supervised, unsupervised, and reinforcement learning approaches.", nil
	case strings.Contains(lower, "calculate") || strings.Contains(lower, "compute"):
		return "I can help with calculations using my built-in calculator tool. What would you like me to compute?", nil
	default:
		head := []rune(prompt)
		if len(head) > 100 {
			head = head[:100]
		}
		return fmt.Sprintf("I understand you're asking about: %s... Let me help you with that.", string(head)), nil
	}
}

// Health reports the mock status.
func (m *MockGenerator) Health(_ context.Context) (core.HealthStatus, error) {
	return core.HealthStatus{Status: core.StatusMock, Details: map[string]any{"model": m.info.Name, "type": "mock"}}, nil
}

// Info implements Describer.
func (m *MockGenerator) Info() Info { return m.info }

// RateLimitedGenerator throttles an inner Generator with a token bucket.
// Callers wait for a token (or context cancellation) before each call.
type RateLimitedGenerator struct {
	inner   core.Generator
	limiter *rate.Limiter
}

// NewRateLimitedGenerator allows rps calls per second with the given burst.
// A non-positive rps disables limiting.
func NewRateLimitedGenerator(inner core.Generator, rps float64, burst int) *RateLimitedGenerator {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedGenerator{inner: inner, limiter: rate.NewLimiter(limit, burst)}
}

// Generate waits for the limiter then delegates.
func (r *RateLimitedGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.Generate(ctx, prompt, maxTokens)
}

// Health delegates to the inner generator.
func (r *RateLimitedGenerator) Health(ctx context.Context) (core.HealthStatus, error) {
	return r.inner.Health(ctx)
}

// Info reports the inner generator's Info.
func (r *RateLimitedGenerator) Info() Info { return Describe(r.inner) }
