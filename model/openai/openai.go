// Package openai provides a core.Generator backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

// DefaultSystemPrompt is sent as the system message of every completion.
const DefaultSystemPrompt = "You are a helpful AI assistant."

// Options configure the OpenAI generator.
type Options struct {
	Model        string
	Temperature  float64
	SystemPrompt string
	APIKey       string
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string
	// MaxRetries is handed to the SDK; negative keeps the SDK default.
	MaxRetries int
}

// Generator wraps the OpenAI Chat Completions API behind core.Generator.
type Generator struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:        openai.ChatModelGPT4oMini,
		Temperature:  0.7,
		SystemPrompt: DefaultSystemPrompt,
		MaxRetries:   -1,
	}
}

// NewGenerator creates a generator using the official client. Without an
// explicit APIKey the SDK reads OPENAI_API_KEY from the environment.
func NewGenerator(optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.MaxRetries >= 0 {
		clientOpts = append(clientOpts, option.WithMaxRetries(opts.MaxRetries))
	}

	client := openai.NewClient(clientOpts...)
	return &Generator{client: &client, opts: opts}
}

// NewGeneratorFromClient creates a generator from an existing client.
func NewGeneratorFromClient(client *openai.Client, optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

// Generate sends prompt as a single user turn and returns the first choice.
func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(g.opts.SystemPrompt),
			openai.UserMessage(prompt),
		},
		Model:       g.opts.Model,
		Temperature: openai.Float(g.opts.Temperature),
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Health issues a minimal completion. API failures are reported as an
// unhealthy status rather than an error.
func (g *Generator) Health(ctx context.Context) (core.HealthStatus, error) {
	details := map[string]any{"model": g.opts.Model, "provider": "openai"}
	if _, err := g.Generate(ctx, "Hello", 5); err != nil {
		return core.HealthStatus{Status: core.StatusUnhealthy, Details: details, Error: err.Error()}, nil
	}
	return core.Healthy(details), nil
}

// Info implements model.Describer.
func (g *Generator) Info() model.Info {
	return model.Info{Name: g.opts.Model, Provider: "openai"}
}
