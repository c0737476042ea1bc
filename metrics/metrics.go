// Package metrics records pipeline telemetry for the agent.
//
// Recorder is the narrow interface the orchestrator and the HTTP layer talk
// to. NoopRecorder discards everything; PrometheusRecorder exports counters
// and histograms on its own registry so several agents can coexist in one
// process.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives pipeline observations.
type Recorder interface {
	// ObserveQuery records one ProcessQuery call end to end.
	ObserveQuery(duration time.Duration, success bool)
	// ObserveStage records one pipeline stage (retrieval, tools, generation, evaluation, persist).
	ObserveStage(stage string, duration time.Duration, success bool)
	// ObserveTool records one tool execution.
	ObserveTool(name string, duration time.Duration, success bool)
	// ObserveScore records one evaluation metric value.
	ObserveScore(metric string, value float64)
	// ObserveHTTP records one served API request.
	ObserveHTTP(method, route string, status int, duration time.Duration)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

func (NoopRecorder) ObserveQuery(time.Duration, bool)               {}
func (NoopRecorder) ObserveStage(string, time.Duration, bool)       {}
func (NoopRecorder) ObserveTool(string, time.Duration, bool)        {}
func (NoopRecorder) ObserveScore(string, float64)                   {}
func (NoopRecorder) ObserveHTTP(string, string, int, time.Duration) {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}

// LatencyBuckets are histogram buckets in seconds.
var LatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// Options configures a PrometheusRecorder.
type Options struct {
	Namespace string
	// Registry receives the collectors (defaults to a fresh registry).
	Registry *prometheus.Registry
	// RuntimeCollectors adds the Go runtime and process collectors.
	RuntimeCollectors bool
}

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	queries       *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec
	stageLatency  *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	toolLatency   *prometheus.HistogramVec
	scores        *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the agent collectors.
func NewPrometheusRecorder(optFns ...func(o *Options)) *PrometheusRecorder {
	opts := Options{Namespace: "agentflow"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.RuntimeCollectors {
		opts.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	factory := promauto.With(opts.Registry)
	ns := opts.Namespace

	return &PrometheusRecorder{
		registry: opts.Registry,
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "queries_total",
			Help:      "Total number of processed queries",
		}, []string{"status"}),
		queryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency in seconds",
			Buckets:   LatencyBuckets,
		}, []string{"status"}),
		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency in seconds",
			Buckets:   LatencyBuckets,
		}, []string{"stage"}),
		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "stage_failures_total",
			Help:      "Total number of failed pipeline stages",
		}, []string{"stage"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tool_calls_total",
			Help:      "Total number of tool executions",
		}, []string{"tool", "status"}),
		toolLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution latency in seconds",
			Buckets:   LatencyBuckets,
		}, []string{"tool"}),
		scores: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "evaluation_score",
			Help:      "Distribution of evaluation scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"metric"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "route", "status_code"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency in seconds",
			Buckets:   LatencyBuckets,
		}, []string{"method", "route"}),
	}
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (p *PrometheusRecorder) ObserveQuery(d time.Duration, success bool) {
	p.queries.WithLabelValues(status(success)).Inc()
	p.queryLatency.WithLabelValues(status(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStage(stage string, d time.Duration, success bool) {
	p.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
	if !success {
		p.stageFailures.WithLabelValues(stage).Inc()
	}
}

func (p *PrometheusRecorder) ObserveTool(name string, d time.Duration, success bool) {
	p.toolCalls.WithLabelValues(name, status(success)).Inc()
	p.toolLatency.WithLabelValues(name).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveScore(metric string, v float64) {
	p.scores.WithLabelValues(metric).Observe(v)
}

func (p *PrometheusRecorder) ObserveHTTP(method, route string, code int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	p.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
