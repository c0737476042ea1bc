// Package model holds the text generation backends used by the agent.
//
// Every backend implements core.Generator: given a fully rendered prompt and
// a token budget it returns the completion text. Concrete providers live in
// sub-packages (openai, anthropic) so callers only pull in the SDKs they use.
//
// MockGenerator is deterministic and needs no credentials; it is the default
// backend when no provider is configured. RateLimitedGenerator wraps any
// backend with a token bucket:
//
//	gen := model.NewRateLimitedGenerator(openai.NewGenerator(), 5, 1)
//	text, err := gen.Generate(ctx, prompt, 1000)
package model
