package agent

import (
	"errors"
	"fmt"
)

// Pipeline stage names reported by ProcessingError and metrics.
const (
	StageHistory    = "history"
	StageRetrieval  = "retrieval"
	StageTools      = "tools"
	StageGeneration = "generation"
	StageEvaluation = "evaluation"
	StagePersist    = "persist"
)

// ErrEmptyQuery is returned when ProcessQuery receives a blank query.
var ErrEmptyQuery = errors.New("query must not be empty")

// ProcessingError reports which pipeline stage aborted a query.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// StageOf returns the failing stage of err, or "" when err is not a ProcessingError.
func StageOf(err error) string {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}
