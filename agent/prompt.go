package agent

import (
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/agentflow/core"
)

// Prompt section labels.
const (
	historyLabel = "Conversation History:"
	contextLabel = "Relevant Information:"
	toolsLabel   = "Tool Results:"
	queryLabel   = "Current Query:"
)

// PromptInput carries the material BuildPrompt assembles.
type PromptInput struct {
	History     []core.Interaction
	Context     string
	ToolResults []string
	Query       string
}

// BuildPrompt renders the non-empty sections in fixed order (history,
// retrieved context, tool results, current query) separated by blank lines.
// The current query section is always present.
func BuildPrompt(in PromptInput) string {
	sections := make([]string, 0, 4)

	if len(in.History) > 0 {
		lines := make([]string, 0, len(in.History))
		for _, h := range in.History {
			lines = append(lines, fmt.Sprintf("User: %s\nAssistant: %s", h.Query, h.Response))
		}
		sections = append(sections, historyLabel+"\n"+strings.Join(lines, "\n"))
	}

	if in.Context != "" {
		sections = append(sections, contextLabel+"\n"+in.Context)
	}

	if len(in.ToolResults) > 0 {
		sections = append(sections, toolsLabel+"\n"+strings.Join(in.ToolResults, "\n"))
	}

	sections = append(sections, queryLabel+" "+in.Query)

	return strings.Join(sections, "\n\n")
}

// CalculateConfidence combines evaluation quality, grounding and tool usage
// into a value in [0,1]:
//
//	0.5 + 0.3*mean(scores) + min(0.2, 0.05*sources) + min(0.1, 0.05*tools)
//
// NaN and infinite scores are left out of the mean.
func CalculateConfidence(scores map[string]float64, sources, tools int) float64 {
	c := 0.5
	sum, n := 0.0, 0
	for _, v := range scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n > 0 {
		c += 0.3 * (sum / float64(n))
	}
	c += min(0.2, 0.05*float64(sources))
	c += min(0.1, 0.05*float64(tools))
	return max(0.0, min(1.0, c))
}

func lastN(history []core.Interaction, n int) []core.Interaction {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
