package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/testutil"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/session"
	"github.com/hupe1980/agentflow/tool"
)

func noTools(q *QueryOptions)     { q.UseTools = false }
func noRetrieval(q *QueryOptions) { q.UseRetrieval = false }
func noEval(q *QueryOptions)      { q.Evaluate = false }

func withSession(id string) func(q *QueryOptions) {
	return func(q *QueryOptions) { q.SessionID = id }
}

func TestProcessQuery_Calculator(t *testing.T) {
	gen := &testutil.RecordingGenerator{Response: "The answer is 4"}
	o := New(gen)

	resp, err := o.ProcessQuery(context.Background(), "Calculate 2 + 2")
	require.NoError(t, err)

	assert.Equal(t, "The answer is 4", resp.Message)
	assert.Equal(t, []string{"calculator"}, resp.ToolsUsed)
	assert.Empty(t, resp.Sources)
	assert.NotEmpty(t, resp.SessionID)
	assert.Contains(t, gen.LastPrompt(), "Tool Results:\nTool calculator: 2 + 2 = 4")
	assert.True(t, strings.HasSuffix(gen.LastPrompt(), "Current Query: Calculate 2 + 2"))

	assert.Len(t, resp.EvaluationScores, 4)
	// 0.5 + 0.3*mean(0, 0.3, 0.5, 1.0) + 0.05
	assert.InDelta(t, 0.685, resp.Confidence, 1e-9)

	history, err := o.GetHistory(context.Background(), resp.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Calculate 2 + 2", history[0].Query)
	assert.Equal(t, []string{"calculator"}, history[0].ToolsUsed)
}

func TestProcessQuery_UnknownToolAborts(t *testing.T) {
	gen := &testutil.RecordingGenerator{Response: "never"}
	o := New(gen, func(o *Options) {
		o.Classifier = tool.IntentClassifierFunc(func(string) []core.ToolCall {
			return []core.ToolCall{{Name: "nonexistent", Parameters: map[string]any{}}}
		})
	})

	_, err := o.ProcessQuery(context.Background(), "anything", withSession("s1"))
	require.Error(t, err)

	var pe *ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageTools, pe.Stage)
	assert.ErrorIs(t, err, tool.ErrToolNotFound)
	assert.Contains(t, err.Error(), "tool 'nonexistent' not found")

	assert.Empty(t, gen.Prompts())
	history, err := o.GetHistory(context.Background(), "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestProcessQuery_FirstFailingToolStopsLaterTools(t *testing.T) {
	d := tool.NewDispatcher()
	var calls []string
	require.NoError(t, d.RegisterFunc("ok", "", nil, func(context.Context, map[string]any) (any, error) {
		calls = append(calls, "ok")
		return "fine", nil
	}))
	require.NoError(t, d.RegisterFunc("bad", "", nil, func(context.Context, map[string]any) (any, error) {
		calls = append(calls, "bad")
		return nil, errors.New("kaputt")
	}))
	require.NoError(t, d.RegisterFunc("late", "", nil, func(context.Context, map[string]any) (any, error) {
		calls = append(calls, "late")
		return nil, nil
	}))

	o := New(&testutil.RecordingGenerator{}, func(o *Options) {
		o.Tools = d
		o.Classifier = tool.IntentClassifierFunc(func(string) []core.ToolCall {
			return []core.ToolCall{{Name: "ok"}, {Name: "bad"}, {Name: "late"}}
		})
	})

	_, err := o.ProcessQuery(context.Background(), "go")
	require.Error(t, err)
	assert.Equal(t, StageTools, StageOf(err))
	assert.Contains(t, err.Error(), "kaputt")
	assert.Equal(t, []string{"ok", "bad"}, calls)
}

func TestProcessQuery_HistoryInPrompt(t *testing.T) {
	gen := &testutil.RecordingGenerator{Response: "resp"}
	o := New(gen)
	ctx := context.Background()

	_, err := o.ProcessQuery(ctx, "first", withSession("s"), noTools, noRetrieval, noEval)
	require.NoError(t, err)
	assert.Equal(t, "Current Query: first", gen.LastPrompt())

	_, err = o.ProcessQuery(ctx, "second", withSession("s"), noTools, noRetrieval, noEval)
	require.NoError(t, err)
	assert.Equal(t, "Conversation History:\nUser: first\nAssistant: resp\n\nCurrent Query: second", gen.LastPrompt())
}

func TestProcessQuery_PromptUsesLastFiveOfWindow(t *testing.T) {
	store := session.NewInMemoryStore()
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		in := testutil.NewInteractionBuilder(fmt.Sprintf("q%d", i)).Response(fmt.Sprintf("r%d", i)).Build()
		require.NoError(t, store.StoreInteraction(ctx, "s", in))
	}

	gen := &testutil.RecordingGenerator{Response: "ok"}
	o := New(gen, func(o *Options) { o.SessionStore = store })

	_, err := o.ProcessQuery(ctx, "now", withSession("s"), noTools, noRetrieval, noEval)
	require.NoError(t, err)

	prompt := gen.LastPrompt()
	for i := 2; i < 7; i++ {
		assert.Contains(t, prompt, fmt.Sprintf("User: q%d\nAssistant: r%d", i, i))
	}
	assert.NotContains(t, prompt, "User: q0")
	assert.NotContains(t, prompt, "User: q1\n")
	assert.Less(t, strings.Index(prompt, "User: q2"), strings.Index(prompt, "User: q6"))
}

func TestProcessQuery_Retrieval(t *testing.T) {
	gen := &testutil.RecordingGenerator{Response: "ok"}
	retriever := &testutil.StubRetriever{Docs: []core.RetrievedDocument{
		{Content: "alpha", Source: "a.md", Score: 0.9},
		{Content: "beta", Source: "b.md", Score: 0.5},
	}}
	o := New(gen, func(o *Options) { o.Retriever = retriever })

	resp, err := o.ProcessQuery(context.Background(), "tell me", noTools, noEval)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.md", "b.md"}, resp.Sources)
	assert.Equal(t, "Relevant Information:\nalpha\nbeta\n\nCurrent Query: tell me", gen.LastPrompt())
	assert.InDelta(t, 0.6, resp.Confidence, 1e-9)
	assert.Empty(t, resp.EvaluationScores)
}

func TestProcessQuery_WithKeywordRetriever(t *testing.T) {
	o := New(&testutil.RecordingGenerator{Response: "Go is great"})
	ctx := context.Background()

	ok, err := o.AddDocuments(ctx, []core.Document{
		{Content: "Go is a programming language", Source: "go.md"},
		{Content: "Bananas are yellow", Source: "fruit.md"},
	})
	require.NoError(t, err)
	require.True(t, ok)

	resp, err := o.ProcessQuery(ctx, "what is go programming", noTools)
	require.NoError(t, err)
	assert.Equal(t, []string{"go.md"}, resp.Sources)
	assert.Equal(t, 0.8, resp.EvaluationScores["accuracy"])
}

func TestProcessQuery_Metadata(t *testing.T) {
	gen := &testutil.RecordingGenerator{Response: "ok"}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{start, start.Add(1500 * time.Millisecond)}
	var mu sync.Mutex
	o := New(gen, func(o *Options) {
		o.NewSessionID = func() string { return "generated" }
		o.Now = func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			ts := clock[0]
			if len(clock) > 1 {
				clock = clock[1:]
			}
			return ts
		}
	})

	resp, err := o.ProcessQuery(context.Background(), "hi", noTools, noEval)
	require.NoError(t, err)

	assert.Equal(t, "generated", resp.SessionID)
	assert.Equal(t, DefaultMaxResponseTokens, gen.LastMaxTokens())
	assert.Equal(t, start.Add(1500*time.Millisecond), resp.Timestamp)
	assert.Equal(t, map[string]any{
		core.MetaProcessingTime:    1.5,
		core.MetaRAGEnabled:        true,
		core.MetaToolsEnabled:      false,
		core.MetaEvaluationEnabled: false,
	}, resp.Metadata)

	_, err = o.ProcessQuery(context.Background(), "hi", noTools, func(q *QueryOptions) { q.MaxTokens = 50 })
	require.NoError(t, err)
	assert.Equal(t, 50, gen.LastMaxTokens())
}

func TestProcessQuery_EmptyQuery(t *testing.T) {
	_, err := New(&testutil.RecordingGenerator{}).ProcessQuery(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestProcessQuery_StageFailures(t *testing.T) {
	boom := errors.New("boom")

	cases := []struct {
		name  string
		stage string
		setup func(o *Options, gen *testutil.RecordingGenerator, store core.SessionStore)
	}{
		{"history", StageHistory, func(o *Options, _ *testutil.RecordingGenerator, store core.SessionStore) {
			o.SessionStore = &testutil.FailingStore{SessionStore: store, HistoryErr: boom}
		}},
		{"retrieval", StageRetrieval, func(o *Options, _ *testutil.RecordingGenerator, _ core.SessionStore) {
			o.Retriever = &testutil.StubRetriever{Err: boom}
		}},
		{"generation", StageGeneration, func(_ *Options, gen *testutil.RecordingGenerator, _ core.SessionStore) {
			gen.Err = boom
		}},
		{"evaluation", StageEvaluation, func(o *Options, _ *testutil.RecordingGenerator, _ core.SessionStore) {
			o.Scorer = &testutil.FailingScorer{Err: boom}
		}},
		{"persist", StagePersist, func(o *Options, _ *testutil.RecordingGenerator, store core.SessionStore) {
			o.SessionStore = &testutil.FailingStore{SessionStore: store, StoreErr: boom}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &testutil.RecordingGenerator{Response: "ok"}
			store := session.NewInMemoryStore()
			o := New(gen, func(o *Options) {
				o.SessionStore = store
				tc.setup(o, gen, store)
			})

			resp, err := o.ProcessQuery(context.Background(), "hello", withSession("s"))
			assert.Nil(t, resp)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, tc.stage, StageOf(err))

			history, err := store.GetHistory(context.Background(), "s", 0)
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}

func TestProcessQuery_LogsPipelineEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})
	o := New(&testutil.RecordingGenerator{Response: "ok"}, func(o *Options) { o.Logger = logger })

	_, err := o.ProcessQuery(context.Background(), "hello", withSession("s1"), noTools)
	require.NoError(t, err)

	events := map[string]map[string]any{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		events[entry["msg"].(string)] = entry
	}

	require.Contains(t, events, "llm.call.done")
	assert.Equal(t, "s1", events["llm.call.done"]["session_id"])
	require.Contains(t, events, "pipeline.done")
	assert.Equal(t, "s1", events["pipeline.done"]["session_id"])
	assert.Equal(t, []any{StageHistory, StageRetrieval, StageGeneration, StageEvaluation, StagePersist}, events["pipeline.done"]["stages"])
}

func TestProcessQuery_StageTimeout(t *testing.T) {
	o := New(model.NewMockGenerator("slow", time.Hour), func(o *Options) {
		o.StageTimeout = 20 * time.Millisecond
	})

	_, err := o.ProcessQuery(context.Background(), "hello", noTools)
	require.Error(t, err)
	assert.Equal(t, StageGeneration, StageOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessQuery_ConcurrentSessionsIsolated(t *testing.T) {
	o := New(model.NewMockGenerator("m", 0))
	ctx := context.Background()

	const sessions, perSession = 8, 5
	var wg sync.WaitGroup
	errs := make(chan error, sessions*perSession)
	for s := 0; s < sessions; s++ {
		for i := 0; i < perSession; i++ {
			wg.Add(1)
			go func(s, i int) {
				defer wg.Done()
				_, err := o.ProcessQuery(ctx, fmt.Sprintf("session %d query %d", s, i), withSession(fmt.Sprintf("s%d", s)))
				errs <- err
			}(s, i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for s := 0; s < sessions; s++ {
		history, err := o.GetHistory(ctx, fmt.Sprintf("s%d", s), 0)
		require.NoError(t, err)
		require.Len(t, history, perSession)
		for _, in := range history {
			assert.True(t, strings.HasPrefix(in.Query, fmt.Sprintf("session %d ", s)), in.Query)
		}
	}
}

func TestClearHistory(t *testing.T) {
	o := New(&testutil.RecordingGenerator{Response: "ok"})
	ctx := context.Background()

	_, err := o.ProcessQuery(ctx, "hi", withSession("x"))
	require.NoError(t, err)

	cleared, err := o.ClearHistory(ctx, "x")
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = o.ClearHistory(ctx, "x")
	require.NoError(t, err)
	assert.False(t, cleared)
}

func TestListTools_Defaults(t *testing.T) {
	tools := New(&testutil.RecordingGenerator{}).ListTools()
	names := make([]string, 0, len(tools))
	for _, ti := range tools {
		names = append(names, ti.Name)
	}
	assert.Equal(t, []string{"calculator", "file_search"}, names)
}

func TestHealthCheck(t *testing.T) {
	o := New(&testutil.RecordingGenerator{})
	report := o.HealthCheck(context.Background())
	assert.Equal(t, core.StatusHealthy, report.Agent)
	assert.Empty(t, report.Error)
	assert.Len(t, report.Components, 5)
	assert.Equal(t, core.StatusMock, report.Components["generator"].Status)
	assert.Equal(t, core.StatusHealthy, report.Components["session_store"].Status)

	failing := New(&testutil.RecordingGenerator{HealthErr: errors.New("unreachable")})
	report = failing.HealthCheck(context.Background())
	assert.Equal(t, core.StatusUnhealthy, report.Agent)
	assert.Contains(t, report.Error, "generator")
	assert.Contains(t, report.Error, "unreachable")
	assert.Equal(t, core.StatusHealthy, report.Components["retriever"].Status)
}
