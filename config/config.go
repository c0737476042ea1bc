// Package config loads agent configuration from an optional YAML file and
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Generator providers.
const (
	ProviderMock      = "mock"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config represents the complete agent configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Session    SessionConfig    `yaml:"session"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Agent      AgentConfig      `yaml:"agent"`
	Tools      ToolsConfig      `yaml:"tools"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LLMConfig selects and tunes the generator backend.
type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	OpenAIAPIKey      string        `yaml:"openai_api_key"`
	AnthropicAPIKey   string        `yaml:"anthropic_api_key"`
	BaseURL           string        `yaml:"base_url"`
	MaxResponseTokens int           `yaml:"max_response_tokens"`
	Temperature       float64       `yaml:"temperature"`
	RateLimit         float64       `yaml:"rate_limit"` // requests per second, 0 disables
	RateBurst         int           `yaml:"rate_burst"`
	MockDelay         time.Duration `yaml:"mock_delay"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Backend         string        `yaml:"backend"`
	RedisURL        string        `yaml:"redis_url"`
	Namespace       string        `yaml:"namespace"`
	TTL             time.Duration `yaml:"ttl"`
	MaxInteractions int           `yaml:"max_interactions"`
}

// RetrievalConfig tunes context retrieval.
type RetrievalConfig struct {
	TopK     int           `yaml:"top_k"`
	CacheTTL time.Duration `yaml:"cache_ttl"` // 0 disables the result cache
}

// EvaluationConfig tunes response scoring.
type EvaluationConfig struct {
	Enabled bool     `yaml:"enabled"`
	Metrics []string `yaml:"metrics"`
}

// AgentConfig tunes the orchestrator.
type AgentConfig struct {
	StageTimeout  time.Duration `yaml:"stage_timeout"`
	HistoryWindow int           `yaml:"history_window"`
	PromptHistory int           `yaml:"prompt_history"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	SearchRoot string `yaml:"search_root"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Debug           bool          `yaml:"debug"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          ProviderMock,
			MaxResponseTokens: 1000,
			Temperature:       0.7,
			RateBurst:         1,
		},
		Session: SessionConfig{
			Backend:         BackendMemory,
			RedisURL:        "redis://localhost:6379/0",
			Namespace:       "agentflow",
			MaxInteractions: 50,
		},
		Retrieval: RetrievalConfig{
			TopK:     3,
			CacheTTL: 5 * time.Minute,
		},
		Evaluation: EvaluationConfig{
			Enabled: true,
			Metrics: []string{"relevance", "completeness", "accuracy", "latency"},
		},
		Agent: AgentConfig{
			HistoryWindow: 10,
			PromptHistory: 5,
		},
		Tools: ToolsConfig{
			SearchRoot: ".",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  10 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a configuration from defaults, the YAML file at path (skipped
// when path is empty) and the process environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("apply env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile reads and parses a YAML configuration file without
// environment overrides. ${VAR} references in the file are expanded.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from environment variables resolved by lookup.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_MODEL", &c.LLM.Model)
	str("OPENAI_API_KEY", &c.LLM.OpenAIAPIKey)
	str("ANTHROPIC_API_KEY", &c.LLM.AnthropicAPIKey)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("REDIS_URL", &c.Session.RedisURL)
	str("SESSION_BACKEND", &c.Session.Backend)
	str("API_HOST", &c.Server.Host)
	str("TOOLS_SEARCH_ROOT", &c.Tools.SearchRoot)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_RESPONSE_TOKENS", &c.LLM.MaxResponseTokens},
		{"API_PORT", &c.Server.Port},
		{"RETRIEVAL_TOP_K", &c.Retrieval.TopK},
		{"MAX_INTERACTIONS", &c.Session.MaxInteractions},
	}
	for _, e := range ints {
		if v, ok := lookup(e.key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = n
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"DEBUG", &c.Server.Debug},
		{"EVAL_ENABLED", &c.Evaluation.Enabled},
	}
	for _, e := range bools {
		if v, ok := lookup(e.key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = b
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"RETRIEVAL_CACHE_TTL", &c.Retrieval.CacheTTL},
		{"STAGE_TIMEOUT", &c.Agent.StageTimeout},
		{"SESSION_TTL", &c.Session.TTL},
	}
	for _, e := range durations {
		if v, ok := lookup(e.key); ok && v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = d
		}
	}

	if v, ok := lookup("LLM_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("LLM_RATE_LIMIT: %w", err)
		}
		c.LLM.RateLimit = f
	}

	if v, ok := lookup("EVAL_METRICS"); ok && v != "" {
		var metrics []string
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				metrics = append(metrics, m)
			}
		}
		c.Evaluation.Metrics = metrics
	}

	if c.Server.Debug {
		c.Logging.Level = "debug"
	}

	return nil
}

var knownMetrics = map[string]bool{"relevance": true, "completeness": true, "accuracy": true, "latency": true}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderMock, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.MaxResponseTokens <= 0 {
		return fmt.Errorf("llm.max_response_tokens must be positive")
	}
	if c.LLM.RateLimit < 0 {
		return fmt.Errorf("llm.rate_limit cannot be negative")
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("session.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	if c.Session.MaxInteractions <= 0 {
		return fmt.Errorf("session.max_interactions must be positive")
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("session.ttl cannot be negative")
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	if c.Retrieval.CacheTTL < 0 {
		return fmt.Errorf("retrieval.cache_ttl cannot be negative")
	}

	for _, m := range c.Evaluation.Metrics {
		if !knownMetrics[m] {
			return fmt.Errorf("unknown evaluation metric %q", m)
		}
	}

	if c.Agent.StageTimeout < 0 {
		return fmt.Errorf("agent.stage_timeout cannot be negative")
	}
	if c.Agent.HistoryWindow <= 0 || c.Agent.PromptHistory <= 0 {
		return fmt.Errorf("agent.history_window and agent.prompt_history must be positive")
	}
	if c.Agent.PromptHistory > c.Agent.HistoryWindow {
		return fmt.Errorf("agent.prompt_history (%d) exceeds agent.history_window (%d)", c.Agent.PromptHistory, c.Agent.HistoryWindow)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}
