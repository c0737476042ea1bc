package tool

import (
	"strings"

	"github.com/hupe1980/agentflow/core"
)

// IntentClassifier decides which tool calls a raw query triggers. It must be
// deterministic for a given query.
type IntentClassifier interface {
	Identify(query string) []core.ToolCall
}

// IntentClassifierFunc adapts a function to IntentClassifier.
type IntentClassifierFunc func(query string) []core.ToolCall

// Identify calls f(query).
func (f IntentClassifierFunc) Identify(query string) []core.ToolCall { return f(query) }

// KeywordRule triggers one tool call when any keyword occurs in the
// lower-cased query. Params builds the call parameters from the raw query.
type KeywordRule struct {
	Tool     string
	Keywords []string
	Params   func(query string) map[string]any
}

// KeywordClassifier is the reference intent policy: an ordered list of
// keyword rules evaluated by substring match. Calls are emitted in rule order.
type KeywordClassifier struct {
	rules []KeywordRule
}

// NewKeywordClassifier builds a classifier from explicit rules.
func NewKeywordClassifier(rules ...KeywordRule) *KeywordClassifier {
	return &KeywordClassifier{rules: rules}
}

// DefaultKeywordClassifier wires "search"/"find" to file_search and
// "calculate"/"compute" to calculator with the raw query as expression.
func DefaultKeywordClassifier() *KeywordClassifier {
	return NewKeywordClassifier(
		KeywordRule{
			Tool:     "file_search",
			Keywords: []string{"search", "find"},
			Params: func(string) map[string]any {
				return map[string]any{"pattern": "*.go", "directory": "."}
			},
		},
		KeywordRule{
			Tool:     "calculator",
			Keywords: []string{"calculate", "compute"},
			Params: func(q string) map[string]any {
				return map[string]any{"expression": q}
			},
		},
	)
}

// Rules returns a copy of the classifier's rules, for extending the default set.
func (c *KeywordClassifier) Rules() []KeywordRule {
	return append([]KeywordRule(nil), c.rules...)
}

// Identify returns the tool calls triggered by query.
func (c *KeywordClassifier) Identify(query string) []core.ToolCall {
	lower := strings.ToLower(query)
	calls := []core.ToolCall{}
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				continue
			}
			params := map[string]any{}
			if rule.Params != nil {
				params = rule.Params(query)
			}
			calls = append(calls, core.ToolCall{Name: rule.Tool, Parameters: params})
			break
		}
	}
	return calls
}
