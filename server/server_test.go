package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/testutil"
	"github.com/hupe1980/agentflow/metrics"
)

var _ Service = (*agent.Orchestrator)(nil)

type fixture struct {
	gen       *testutil.RecordingGenerator
	retriever *testutil.StubRetriever
	handler   http.Handler
}

func newFixture(t *testing.T, optFns ...func(o *Options)) *fixture {
	t.Helper()
	return newAgentFixture(t, nil, optFns...)
}

func newAgentFixture(t *testing.T, agentOpts func(o *agent.Options), optFns ...func(o *Options)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		gen:       &testutil.RecordingGenerator{Response: "The answer is 4"},
		retriever: &testutil.StubRetriever{},
	}
	orch := agent.New(f.gen, func(o *agent.Options) {
		o.Retriever = f.retriever
		if agentOpts != nil {
			agentOpts(o)
		}
	})
	f.handler = New(orch, optFns...).Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestChat(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"message":    "Calculate 2 + 2",
		"session_id": "s1",
		"use_rag":    false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "The answer is 4", body["message"])
	assert.Equal(t, "s1", body["session_id"])
	assert.Equal(t, []any{"calculator"}, body["tools_used"])
	meta := body["metadata"].(map[string]any)
	assert.Equal(t, false, meta["rag_enabled"])
	assert.Equal(t, true, meta["tools_enabled"])
	assert.Contains(t, f.gen.LastPrompt(), "Tool calculator: 2 + 2 = 4")

	rec, body = f.do(t, http.MethodGet, "/api/v1/sessions/s1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", body["session_id"])
	assert.Len(t, body["history"], 1)
}

func TestChat_Validation(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	raw := httptest.NewRecorder()
	f.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestChat_BodyTooLarge(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.MaxChatBytes = 64 })

	rec, body := f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"message": "calculate " + strings.Repeat("(", 200) + "1",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, body["error"], "64 bytes")
	assert.Empty(t, f.gen.Prompts())
}

func TestChat_DeeplyNestedCalculation(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"message":    "calculate " + strings.Repeat("(", 100_000) + "1",
		"session_id": "deep",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, agent.StageTools, body["stage"])
	assert.Contains(t, body["error"], "invalid expression")
}

func TestChat_EvaluationDefaultsToConfig(t *testing.T) {
	f := newAgentFixture(t, func(o *agent.Options) { o.EvaluationEnabled = false })

	rec, body := f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, body["metadata"].(map[string]any)["evaluation_enabled"])
	assert.Empty(t, body["evaluation_scores"])

	rec, body = f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{"message": "hello", "evaluate": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["metadata"].(map[string]any)["evaluation_enabled"])
	assert.NotEmpty(t, body["evaluation_scores"])
}

func TestChat_ProcessingFailure(t *testing.T) {
	f := newFixture(t)
	f.gen.Err = errors.New("backend down")

	rec, body := f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{"message": "hi", "session_id": "s"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "backend down")
	assert.Equal(t, agent.StageGeneration, body["stage"])

	_, body = f.do(t, http.MethodGet, "/api/v1/sessions/s/history", nil)
	assert.Empty(t, body["history"])
}

func TestDocuments(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/v1/documents", map[string]any{
		"documents": []map[string]any{
			{"content": "Go is fun", "source": "go.md"},
			{"content": "Redis is fast", "source": "redis.md", "metadata": map[string]any{"lang": "en"}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 2.0, body["document_count"])
	assert.Equal(t, "Added 2 documents", body["message"])

	added := f.retriever.Added()
	require.Len(t, added, 2)
	assert.Equal(t, "redis.md", added[1].Source)
	assert.Equal(t, "en", added[1].Metadata["lang"])

	rec, _ = f.do(t, http.MethodPost, "/api/v1/documents", map[string]any{"documents": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/documents", map[string]any{
		"documents": []map[string]any{{"content": "", "source": "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadDocuments(t *testing.T) {
	f := newFixture(t)

	buf, contentType := multipartBody(t, map[string][]byte{"notes.txt": []byte("hello upload")})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	added := f.retriever.Added()
	require.Len(t, added, 1)
	assert.Equal(t, "hello upload", added[0].Content)
	assert.Equal(t, "notes.txt", added[0].Source)
	assert.EqualValues(t, len("hello upload"), added[0].Metadata["size"])
	assert.Equal(t, "application/octet-stream", added[0].Metadata["content_type"])
}

func TestUploadDocuments_Rejects(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.MaxUploadBytes = 8 })

	send := func(files map[string][]byte) int {
		buf, contentType := multipartBody(t, files)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", buf)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, send(map[string][]byte{"bin.dat": {0xff, 0xfe}}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, send(map[string][]byte{"big.txt": []byte("way too large")}))
	assert.Equal(t, http.StatusBadRequest, send(map[string][]byte{}))
	assert.Empty(t, f.retriever.Added())
}

func TestSessions(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		rec, _ := f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{"message": "hi", "session_id": "abc"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	_, body := f.do(t, http.MethodGet, "/api/v1/sessions/abc/history?limit=2", nil)
	assert.Len(t, body["history"], 2)

	rec, _ := f.do(t, http.MethodGet, "/api/v1/sessions/abc/history?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, body = f.do(t, http.MethodGet, "/api/v1/sessions/unknown/history", nil)
	assert.Equal(t, []any{}, body["history"])

	_, body = f.do(t, http.MethodDelete, "/api/v1/sessions/abc", nil)
	assert.Equal(t, true, body["cleared"])
	_, body = f.do(t, http.MethodDelete, "/api/v1/sessions/abc", nil)
	assert.Equal(t, false, body["cleared"])
}

func TestToolsAndHealth(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/v1/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tools := body["tools"].([]any)
	require.Len(t, tools, 2)
	assert.Equal(t, "calculator", tools[0].(map[string]any)["name"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.StatusHealthy, body["agent"])
}

func TestHealth_NeverFailsOnProbeError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gen := &testutil.RecordingGenerator{HealthErr: errors.New("no route")}
	h := New(agent.New(gen)).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report core.HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, core.StatusUnhealthy, report.Agent)
	assert.Contains(t, report.Error, "no route")
}

func TestMetricsEndpoint(t *testing.T) {
	rec := metrics.NewPrometheusRecorder()
	f := newFixture(t, func(o *Options) {
		o.Metrics = rec
		o.MetricsHandler = rec.Handler()
	})

	r, _ := f.do(t, http.MethodGet, "/api/v1/tools", nil)
	require.Equal(t, http.StatusOK, r.Code)

	out := httptest.NewRecorder()
	f.handler.ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, out.Code)
	assert.Contains(t, out.Body.String(), `agentflow_http_requests_total{method="GET",route="/api/v1/tools",status_code="200"} 1`)
}

func TestServiceInterface(t *testing.T) {
	var svc Service = agent.New(&testutil.RecordingGenerator{})
	_, err := svc.ProcessQuery(context.Background(), "")
	assert.ErrorIs(t, err, agent.ErrEmptyQuery)
}
