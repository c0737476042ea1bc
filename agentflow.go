// Package agentflow wires a configured query orchestrator from a
// config.Config. Most applications interact with this package by:
//  1. Loading a configuration via config.Load
//  2. Creating an Agent via New (optionally overriding components)
//  3. Calling ProcessQuery, or serving the HTTP API from the server package
//
// Backends are chosen by configuration: the generator by llm.provider, the
// session store by session.backend. Every default is in-process and safe for
// local development; providers without credentials fall back to the mock
// generator with a warning.
package agentflow

import (
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/config"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/evaluation"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/metrics"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/model/anthropic"
	"github.com/hupe1980/agentflow/model/openai"
	"github.com/hupe1980/agentflow/retrieval"
	"github.com/hupe1980/agentflow/session"
	"github.com/hupe1980/agentflow/session/redis"
	"github.com/hupe1980/agentflow/tool"
	"github.com/hupe1980/agentflow/tool/builtin"
)

// Options overrides components that New would otherwise build from config.
type Options struct {
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
	// Metrics (defaults to a NoopRecorder if nil)
	Metrics metrics.Recorder
	// Generator replaces the configured provider.
	Generator core.Generator
	// RedisClient is used instead of dialing session.redis_url.
	RedisClient goredis.UniversalClient
	// Tools are registered after the built-in tools.
	Tools []tool.Tool
	// Classifier replaces the keyword intent classifier.
	Classifier tool.IntentClassifier
}

// Agent is the configured orchestrator plus the resources it owns.
type Agent struct {
	*agent.Orchestrator

	generator core.Generator
	closers   []func() error
}

// New builds an Agent from cfg.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Agent, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)

	a := &Agent{}

	gen := opts.Generator
	if gen == nil {
		gen = NewGenerator(cfg.LLM, logger)
	}
	if cfg.LLM.RateLimit > 0 {
		gen = model.NewRateLimitedGenerator(gen, cfg.LLM.RateLimit, cfg.LLM.RateBurst)
	}
	a.generator = gen

	store, err := a.newSessionStore(cfg.Session, opts.RedisClient)
	if err != nil {
		return nil, err
	}

	var retriever core.Retriever = retrieval.NewKeywordRetriever()
	if cfg.Retrieval.CacheTTL > 0 {
		retriever = retrieval.NewCachedRetriever(retriever, cfg.Retrieval.CacheTTL)
	}

	dispatcher := tool.NewDispatcher(func(o *tool.DispatcherOptions) { o.Logger = logger })
	if err := builtin.RegisterDefaults(dispatcher, func(o *builtin.Options) { o.SearchRoot = cfg.Tools.SearchRoot }); err != nil {
		return nil, errors.Join(fmt.Errorf("register built-in tools: %w", err), a.Close())
	}
	for _, t := range opts.Tools {
		if err := dispatcher.Register(t); err != nil {
			return nil, errors.Join(fmt.Errorf("register tool: %w", err), a.Close())
		}
	}

	scorer := evaluation.NewHeuristicScorer(func(o *evaluation.Options) { o.Metrics = cfg.Evaluation.Metrics })

	a.Orchestrator = agent.New(gen, func(o *agent.Options) {
		o.SessionStore = store
		o.Retriever = retriever
		o.Tools = dispatcher
		o.Classifier = opts.Classifier
		o.Scorer = scorer
		o.Logger = logger
		o.Metrics = opts.Metrics
		o.StageTimeout = cfg.Agent.StageTimeout
		o.TopK = cfg.Retrieval.TopK
		o.HistoryWindow = cfg.Agent.HistoryWindow
		o.PromptHistory = cfg.Agent.PromptHistory
		o.MaxResponseTokens = cfg.LLM.MaxResponseTokens
		o.EvaluationEnabled = cfg.Evaluation.Enabled
	})

	logger.Info("agentflow.ready",
		"provider", model.Describe(gen).Provider,
		"model", model.Describe(gen).Name,
		"session_backend", cfg.Session.Backend,
		"tools", len(dispatcher.ListTools()),
	)

	return a, nil
}

// Generator returns the generator the agent was built with.
func (a *Agent) Generator() core.Generator { return a.generator }

// Close releases owned resources such as the Redis connection.
func (a *Agent) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Agent) newSessionStore(cfg config.SessionConfig, client goredis.UniversalClient) (core.SessionStore, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		rcfg, err := redis.ConfigFromURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if cfg.Namespace != "" {
			rcfg.Namespace = cfg.Namespace
		}
		rcfg.TTL = cfg.TTL
		rcfg.MaxInteractions = cfg.MaxInteractions
		if client != nil {
			return redis.NewFromClient(client, rcfg), nil
		}
		store, err := redis.New(rcfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return session.NewInMemoryStore(func(o *session.Options) { o.MaxInteractions = cfg.MaxInteractions }), nil
	}
}

// NewGenerator builds the generator selected by cfg.Provider. OpenAI and
// Anthropic require an API key; without one the mock generator is used and a
// warning is logged.
func NewGenerator(cfg config.LLMConfig, logger logging.Logger) core.Generator {
	logger = logging.OrNoOp(logger)

	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("agentflow.generator.fallback", "provider", cfg.Provider, "reason", "missing OPENAI_API_KEY")
			break
		}
		return openai.NewGenerator(func(o *openai.Options) {
			o.APIKey = cfg.OpenAIAPIKey
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		})
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			logger.Warn("agentflow.generator.fallback", "provider", cfg.Provider, "reason", "missing ANTHROPIC_API_KEY")
			break
		}
		return anthropic.NewGenerator(func(o *anthropic.Options) {
			o.APIKey = cfg.AnthropicAPIKey
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
		})
	}

	return model.NewMockGenerator(cfg.Model, cfg.MockDelay)
}
