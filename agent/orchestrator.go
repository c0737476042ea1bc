package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/evaluation"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/metrics"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/retrieval"
	"github.com/hupe1980/agentflow/session"
	"github.com/hupe1980/agentflow/tool"
	"github.com/hupe1980/agentflow/tool/builtin"
)

// Defaults applied by New.
const (
	DefaultTopK              = 3
	DefaultHistoryWindow     = 10
	DefaultPromptHistory     = 5
	DefaultMaxResponseTokens = 1000
)

// ToolExecutor is the dispatcher surface the orchestrator depends on.
// *tool.Dispatcher implements it.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, params map[string]any) core.ToolResult
	ListTools() []core.ToolInfo
	core.HealthChecker
}

// Options configures an Orchestrator. Nil components are replaced by the
// in-process reference implementations.
type Options struct {
	SessionStore core.SessionStore
	Retriever    core.Retriever
	Tools        ToolExecutor
	Classifier   tool.IntentClassifier
	Scorer       evaluation.Scorer
	Logger       logging.Logger
	Metrics      metrics.Recorder

	// StageTimeout bounds every backend call; zero disables it.
	StageTimeout time.Duration
	// TopK is the number of documents retrieved per query.
	TopK int
	// HistoryWindow is the number of interactions loaded per query.
	HistoryWindow int
	// PromptHistory is how many of the loaded interactions enter the prompt.
	PromptHistory int
	// MaxResponseTokens is the generation budget when a query sets none.
	MaxResponseTokens int
	// EvaluationEnabled is the default for QueryOptions.Evaluate.
	EvaluationEnabled bool

	// NewSessionID generates ids for queries without one (defaults to uuid.NewString).
	NewSessionID func() string
	// Now supplies the wall clock (defaults to time.Now).
	Now func() time.Time
}

// QueryOptions toggles pipeline stages for a single query.
type QueryOptions struct {
	SessionID    string
	UseRetrieval bool
	UseTools     bool
	Evaluate     bool
	// MaxTokens overrides Options.MaxResponseTokens when positive.
	MaxTokens int
}

// Orchestrator runs the query pipeline. It is safe for concurrent use.
type Orchestrator struct {
	generator core.Generator
	opts      Options
	logger    logging.Logger
	metrics   metrics.Recorder
}

// New creates an orchestrator around gen.
func New(gen core.Generator, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		TopK:              DefaultTopK,
		HistoryWindow:     DefaultHistoryWindow,
		PromptHistory:     DefaultPromptHistory,
		MaxResponseTokens: DefaultMaxResponseTokens,
		EvaluationEnabled: true,
		NewSessionID:      uuid.NewString,
		Now:               time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.Retriever == nil {
		opts.Retriever = retrieval.NewKeywordRetriever()
	}
	if opts.Tools == nil {
		opts.Tools = defaultTools(logger)
	}
	if opts.Classifier == nil {
		opts.Classifier = tool.DefaultKeywordClassifier()
	}
	if opts.Scorer == nil {
		opts.Scorer = evaluation.NewHeuristicScorer()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if opts.PromptHistory <= 0 {
		opts.PromptHistory = DefaultPromptHistory
	}
	if opts.MaxResponseTokens <= 0 {
		opts.MaxResponseTokens = DefaultMaxResponseTokens
	}
	if opts.NewSessionID == nil {
		opts.NewSessionID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Orchestrator{
		generator: gen,
		opts:      opts,
		logger:    logger,
		metrics:   metrics.OrNoop(opts.Metrics),
	}
}

func defaultTools(logger logging.Logger) *tool.Dispatcher {
	d := tool.NewDispatcher(func(o *tool.DispatcherOptions) { o.Logger = logger })
	// registration into a fresh dispatcher only fails on duplicate built-in names
	if err := builtin.RegisterDefaults(d); err != nil {
		panic(err)
	}
	return d
}

// ProcessQuery runs the full pipeline for query. On any stage failure it
// returns a *ProcessingError and leaves the session history untouched.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string, optFns ...func(q *QueryOptions)) (resp *core.AgentResponse, err error) {
	start := o.opts.Now()

	qo := QueryOptions{
		UseRetrieval: true,
		UseTools:     true,
		Evaluate:     o.opts.EvaluationEnabled,
	}
	for _, fn := range optFns {
		fn(&qo)
	}
	maxTokens := qo.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.opts.MaxResponseTokens
	}

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	sessionID := qo.SessionID
	if sessionID == "" {
		sessionID = o.opts.NewSessionID()
	}

	logger := logging.ForSession(o.logger, sessionID)

	stages := make([]string, 0, 6)
	defer func() {
		elapsed := o.opts.Now().Sub(start)
		o.metrics.ObserveQuery(elapsed, err == nil)
		if err != nil {
			logging.LogPipeline(logger, stages, elapsed, err, "stage", StageOf(err))
			return
		}
		logging.LogPipeline(logger, stages, elapsed, nil, "confidence", resp.Confidence)
	}()

	logger.Debug("agent.query.start", "retrieval", qo.UseRetrieval, "tools", qo.UseTools, "evaluate", qo.Evaluate)

	var history []core.Interaction
	stages = append(stages, StageHistory)
	if err := o.runStage(ctx, StageHistory, func(ctx context.Context) error {
		h, err := o.opts.SessionStore.GetHistory(ctx, sessionID, o.opts.HistoryWindow)
		history = h
		return err
	}); err != nil {
		return nil, err
	}

	sources := []string{}
	var retrievalContext string
	if qo.UseRetrieval {
		stages = append(stages, StageRetrieval)
		if err := o.runStage(ctx, StageRetrieval, func(ctx context.Context) error {
			docs, err := o.opts.Retriever.Retrieve(ctx, query, o.opts.TopK)
			if err != nil {
				return err
			}
			contents := make([]string, 0, len(docs))
			for _, d := range docs {
				sources = append(sources, d.Source)
				contents = append(contents, d.Content)
			}
			retrievalContext = strings.Join(contents, "\n")
			return nil
		}); err != nil {
			return nil, err
		}
	}

	toolsUsed := []string{}
	var toolResults []string
	if qo.UseTools {
		stages = append(stages, StageTools)
		if err := o.runStage(ctx, StageTools, func(ctx context.Context) error {
			for _, call := range o.opts.Classifier.Identify(query) {
				callStart := time.Now()
				res := o.opts.Tools.Execute(ctx, call.Name, call.Parameters)
				o.metrics.ObserveTool(call.Name, time.Since(callStart), res.Success)
				if err := tool.ResultError(call.Name, res); err != nil {
					return err
				}
				toolsUsed = append(toolsUsed, call.Name)
				toolResults = append(toolResults, fmt.Sprintf("Tool %s: %s", call.Name, tool.FormatResult(res.Data)))
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	prompt := BuildPrompt(PromptInput{
		History:     lastN(history, o.opts.PromptHistory),
		Context:     retrievalContext,
		ToolResults: toolResults,
		Query:       query,
	})

	var message string
	stages = append(stages, StageGeneration)
	if err := o.runStage(ctx, StageGeneration, func(ctx context.Context) error {
		genStart := time.Now()
		out, err := o.generator.Generate(ctx, prompt, maxTokens)
		logging.LogLLMCall(logger, model.Describe(o.generator).Name, time.Since(genStart), err, "prompt_chars", len(prompt))
		message = out
		return err
	}); err != nil {
		return nil, err
	}

	scores := map[string]float64{}
	if qo.Evaluate {
		stages = append(stages, StageEvaluation)
		if err := o.runStage(ctx, StageEvaluation, func(ctx context.Context) error {
			s, err := o.opts.Scorer.Evaluate(ctx, evaluation.Input{
				Query:     query,
				Response:  message,
				Context:   retrievalContext,
				Sources:   sources,
				StartTime: start,
			})
			if err != nil {
				return err
			}
			for k, v := range s {
				scores[k] = v
				o.metrics.ObserveScore(k, v)
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	confidence := CalculateConfidence(scores, len(sources), len(toolsUsed))
	o.metrics.ObserveScore("confidence", confidence)

	now := o.opts.Now()
	response := &core.AgentResponse{
		Message:          message,
		Confidence:       confidence,
		Sources:          sources,
		ToolsUsed:        toolsUsed,
		EvaluationScores: scores,
		SessionID:        sessionID,
		Timestamp:        now,
		Metadata: map[string]any{
			core.MetaProcessingTime:    now.Sub(start).Seconds(),
			core.MetaRAGEnabled:        qo.UseRetrieval,
			core.MetaToolsEnabled:      qo.UseTools,
			core.MetaEvaluationEnabled: qo.Evaluate,
		},
	}

	stages = append(stages, StagePersist)
	if err := o.runStage(ctx, StagePersist, func(ctx context.Context) error {
		return o.opts.SessionStore.StoreInteraction(ctx, sessionID, response.Interaction(query))
	}); err != nil {
		return nil, err
	}

	return response, nil
}

// runStage applies the stage timeout, records metrics and wraps failures.
func (o *Orchestrator) runStage(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	if o.opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.StageTimeout)
		defer cancel()
	}

	t := time.Now()
	err := fn(ctx)
	o.metrics.ObserveStage(stage, time.Since(t), err == nil)
	if err != nil {
		o.logger.Warn("agent.stage.failed", "stage", stage, "error", err.Error())
		return &ProcessingError{Stage: stage, Err: err}
	}
	return nil
}

// AddDocuments ingests documents into the retriever.
func (o *Orchestrator) AddDocuments(ctx context.Context, docs []core.Document) (bool, error) {
	ok, err := o.opts.Retriever.AddDocuments(ctx, docs)
	if err != nil {
		return false, fmt.Errorf("add documents: %w", err)
	}
	o.logger.Info("agent.documents.added", "count", len(docs))
	return ok, nil
}

// GetHistory returns up to limit most recent interactions of a session.
func (o *Orchestrator) GetHistory(ctx context.Context, sessionID string, limit int) ([]core.Interaction, error) {
	return o.opts.SessionStore.GetHistory(ctx, sessionID, limit)
}

// ClearHistory removes a session and reports whether it existed.
func (o *Orchestrator) ClearHistory(ctx context.Context, sessionID string) (bool, error) {
	return o.opts.SessionStore.ClearHistory(ctx, sessionID)
}

// ListTools describes the registered tools.
func (o *Orchestrator) ListTools() []core.ToolInfo {
	return o.opts.Tools.ListTools()
}

// HealthCheck probes every component. The agent is reported unhealthy only
// when a probe itself fails; degraded component statuses are passed through.
func (o *Orchestrator) HealthCheck(ctx context.Context) core.HealthReport {
	report := core.HealthReport{
		Agent:      core.StatusHealthy,
		Timestamp:  o.opts.Now(),
		Components: make(map[string]core.HealthStatus, 5),
	}

	probes := []struct {
		name    string
		checker core.HealthChecker
	}{
		{"generator", o.generator},
		{"retriever", o.opts.Retriever},
		{"session_store", o.opts.SessionStore},
		{"tools", o.opts.Tools},
		{"evaluator", o.opts.Scorer},
	}

	for _, p := range probes {
		status, err := p.checker.Health(ctx)
		if err != nil {
			o.logger.Error("agent.health.probe_failed", "component", p.name, "error", err.Error())
			report.Components[p.name] = core.HealthStatus{Status: core.StatusUnhealthy, Error: err.Error()}
			if report.Error == "" {
				report.Agent = core.StatusUnhealthy
				report.Error = fmt.Sprintf("%s: %v", p.name, err)
			}
			continue
		}
		report.Components[p.name] = status
	}

	return report
}
