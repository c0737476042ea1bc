package core

import (
	"context"
	"time"
)

// Metadata keys set on every AgentResponse.
const (
	MetaProcessingTime    = "processing_time"
	MetaRAGEnabled        = "rag_enabled"
	MetaToolsEnabled      = "tools_enabled"
	MetaEvaluationEnabled = "evaluation_enabled"
)

// AgentResponse is the outcome of one processed query.
type AgentResponse struct {
	Message          string             `json:"message"`
	Confidence       float64            `json:"confidence"`
	Sources          []string           `json:"sources"`
	ToolsUsed        []string           `json:"tools_used"`
	EvaluationScores map[string]float64 `json:"evaluation_scores"`
	SessionID        string             `json:"session_id"`
	Timestamp        time.Time          `json:"timestamp"`
	Metadata         map[string]any     `json:"metadata"`
}

// Interaction converts the response into the record persisted for its session.
func (r *AgentResponse) Interaction(query string) Interaction {
	return Interaction{
		Query:            query,
		Response:         r.Message,
		Sources:          r.Sources,
		ToolsUsed:        r.ToolsUsed,
		EvaluationScores: r.EvaluationScores,
		Timestamp:        r.Timestamp,
		Metadata:         r.Metadata,
	}
}

// Generator is an opaque text completion backend.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	HealthChecker
}
