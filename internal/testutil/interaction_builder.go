package testutil

import (
	"time"

	"github.com/hupe1980/agentflow/core"
)

// InteractionBuilder provides a fluent helper for constructing interactions.
// Example:
//
//	in := NewInteractionBuilder("hi").Response("hello").Sources("a.md").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type InteractionBuilder struct {
	in core.Interaction
}

// NewInteractionBuilder starts an interaction for query.
func NewInteractionBuilder(query string) *InteractionBuilder {
	return &InteractionBuilder{in: core.Interaction{
		Query:            query,
		Sources:          []string{},
		ToolsUsed:        []string{},
		EvaluationScores: map[string]float64{},
		Timestamp:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Metadata:         map[string]any{},
	}}
}

// Response sets the response text (chainable).
func (b *InteractionBuilder) Response(r string) *InteractionBuilder {
	b.in.Response = r
	return b
}

// Sources appends source identifiers (chainable).
func (b *InteractionBuilder) Sources(s ...string) *InteractionBuilder {
	b.in.Sources = append(b.in.Sources, s...)
	return b
}

// Tools appends tool names (chainable).
func (b *InteractionBuilder) Tools(t ...string) *InteractionBuilder {
	b.in.ToolsUsed = append(b.in.ToolsUsed, t...)
	return b
}

// Score sets a metric value (chainable).
func (b *InteractionBuilder) Score(metric string, v float64) *InteractionBuilder {
	b.in.EvaluationScores[metric] = v
	return b
}

// At sets the timestamp (chainable).
func (b *InteractionBuilder) At(ts time.Time) *InteractionBuilder {
	b.in.Timestamp = ts
	return b
}

// Meta sets a metadata key (chainable).
func (b *InteractionBuilder) Meta(key string, val any) *InteractionBuilder {
	b.in.Metadata[key] = val
	return b
}

// Build returns a copy of the accumulated interaction.
func (b *InteractionBuilder) Build() core.Interaction {
	return b.in.Clone()
}
