// Package evaluation scores generated responses against reproducible quality
// heuristics. Scores are in [0,1] and keyed by metric name.
package evaluation

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/agentflow/core"
)

// Metric names produced by HeuristicScorer.
const (
	MetricRelevance    = "relevance"
	MetricCompleteness = "completeness"
	MetricAccuracy     = "accuracy"
	MetricLatency      = "latency"
)

// AllMetrics lists every metric HeuristicScorer can report.
var AllMetrics = []string{MetricRelevance, MetricCompleteness, MetricAccuracy, MetricLatency}

// Input bundles everything a Scorer may look at for one query.
type Input struct {
	Query    string
	Response string
	Context  string
	Sources  []string
	// StartTime is the request start; the zero value omits latency.
	StartTime time.Time
}

// Scorer computes named quality metrics for a response.
type Scorer interface {
	Evaluate(ctx context.Context, in Input) (map[string]float64, error)
	core.HealthChecker
}

// Options configures a HeuristicScorer.
type Options struct {
	// Metrics restricts which metrics are reported (defaults to AllMetrics).
	Metrics []string
	// Now supplies the wall clock (defaults to time.Now).
	Now func() time.Time
}

// HeuristicScorer is the reference Scorer. It holds no mutable state and its
// output depends only on the input and the elapsed wall-clock time.
type HeuristicScorer struct {
	enabled map[string]bool
	now     func() time.Time
}

// NewHeuristicScorer creates a scorer.
func NewHeuristicScorer(optFns ...func(o *Options)) *HeuristicScorer {
	opts := Options{Metrics: AllMetrics, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if len(opts.Metrics) == 0 {
		opts.Metrics = AllMetrics
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	enabled := make(map[string]bool, len(opts.Metrics))
	for _, m := range opts.Metrics {
		enabled[strings.TrimSpace(m)] = true
	}
	return &HeuristicScorer{enabled: enabled, now: opts.Now}
}

// Evaluate computes the enabled metrics. It never fails for well-formed input.
func (s *HeuristicScorer) Evaluate(_ context.Context, in Input) (map[string]float64, error) {
	scores := make(map[string]float64, len(s.enabled))
	if s.enabled[MetricRelevance] {
		scores[MetricRelevance] = Relevance(in.Query, in.Response)
	}
	if s.enabled[MetricCompleteness] {
		scores[MetricCompleteness] = Completeness(in.Response)
	}
	if s.enabled[MetricAccuracy] {
		scores[MetricAccuracy] = Accuracy(in.Sources)
	}
	if s.enabled[MetricLatency] && !in.StartTime.IsZero() {
		scores[MetricLatency] = Latency(s.now().Sub(in.StartTime))
	}
	return scores, nil
}

// Health always reports healthy.
func (s *HeuristicScorer) Health(_ context.Context) (core.HealthStatus, error) {
	metrics := make([]string, 0, len(s.enabled))
	for _, m := range AllMetrics {
		if s.enabled[m] {
			metrics = append(metrics, m)
		}
	}
	return core.Healthy(map[string]any{"metrics": metrics}), nil
}

// Relevance is min(1, 2*|Q∩R| / max(1,|Q|)) over lower-cased whitespace token sets.
func Relevance(query, response string) float64 {
	q := tokenSet(query)
	r := tokenSet(response)
	overlap := 0
	for t := range q {
		if _, ok := r[t]; ok {
			overlap++
		}
	}
	return min(1.0, 2*float64(overlap)/float64(max(1, len(q))))
}

// Completeness steps on response length in characters: <50 → 0.3, <200 → 0.7, else 1.0.
func Completeness(response string) float64 {
	n := utf8.RuneCountInString(response)
	switch {
	case n < 50:
		return 0.3
	case n < 200:
		return 0.7
	default:
		return 1.0
	}
}

// Accuracy is 0.8 when any source grounded the response, else 0.5.
func Accuracy(sources []string) float64 {
	if len(sources) > 0 {
		return 0.8
	}
	return 0.5
}

// Latency steps on elapsed time: <2s → 1.0, <5s → 0.7, else 0.4.
func Latency(elapsed time.Duration) float64 {
	switch {
	case elapsed < 2*time.Second:
		return 1.0
	case elapsed < 5*time.Second:
		return 0.7
	default:
		return 0.4
	}
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
