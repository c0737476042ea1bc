// Package anthropic provides a core.Generator backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

// DefaultSystemPrompt is sent as the system block of every request.
const DefaultSystemPrompt = "You are a helpful AI assistant."

// Options configures the Anthropic generator.
type Options struct {
	Model        anthropic.Model
	Temperature  float64
	SystemPrompt string
	APIKey       string
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string
	// MaxRetries is handed to the SDK; negative keeps the SDK default.
	MaxRetries int
	// DefaultMaxTokens applies when Generate is called without a budget;
	// the Messages API requires one.
	DefaultMaxTokens int64
}

// Generator wraps the Anthropic Messages API behind core.Generator.
type Generator struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:            anthropic.ModelClaude3_5Sonnet20241022,
		Temperature:      0.7,
		SystemPrompt:     DefaultSystemPrompt,
		MaxRetries:       -1,
		DefaultMaxTokens: 1000,
	}
}

// NewGenerator creates a generator using the official client. Without an
// explicit APIKey the SDK reads ANTHROPIC_API_KEY from the environment.
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

	client := anthropic.NewClient(clientOpts...)
	return &Generator{client: &client, opts: opts}
}

// NewGeneratorFromClient creates a generator from an existing client.
func NewGeneratorFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

// Generate sends prompt as a single user message and concatenates the text
// blocks of the reply.
func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	budget := int64(maxTokens)
	if budget <= 0 {
		budget = g.opts.DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       g.opts.Model,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		MaxTokens:   budget,
		Temperature: anthropic.Float(g.opts.Temperature),
	}
	if g.opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: g.opts.SystemPrompt}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content returned")
	}
	return sb.String(), nil
}

// Health issues a minimal request. API failures are reported as an
// unhealthy status rather than an error.
func (g *Generator) Health(ctx context.Context) (core.HealthStatus, error) {
	details := map[string]any{"model": string(g.opts.Model), "provider": "anthropic"}
	if _, err := g.Generate(ctx, "Hello", 5); err != nil {
		return core.HealthStatus{Status: core.StatusUnhealthy, Details: details, Error: err.Error()}, nil
	}
	return core.Healthy(details), nil
}

// Info implements model.Describer.
func (g *Generator) Info() model.Info {
	return model.Info{Name: string(g.opts.Model), Provider: "anthropic"}
}
