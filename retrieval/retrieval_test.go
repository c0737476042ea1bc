package retrieval

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
)

// Interface compliance (compile-time assertions)
var (
	_ core.Retriever = (*KeywordRetriever)(nil)
	_ core.Retriever = (*CachedRetriever)(nil)
)

func seed(t *testing.T, r core.Retriever) {
	t.Helper()
	ok, err := r.AddDocuments(context.Background(), []core.Document{
		{Content: "machine learning is a subset of ai", Source: "ml.md"},
		{Content: "go is a programming language", Source: "go.md"},
		{Content: "deep learning uses neural networks for machine perception", Source: "dl.md"},
		{Content: "completely unrelated text", Source: "misc.md"},
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestKeywordRetriever_RanksByOverlap(t *testing.T) {
	r := NewKeywordRetriever()
	seed(t, r)

	docs, err := r.Retrieve(context.Background(), "what is machine learning", 3)
	require.NoError(t, err)
	require.NotEmpty(t, docs)

	assert.Equal(t, "ml.md", docs[0].Source)
	for i := 1; i < len(docs); i++ {
		assert.GreaterOrEqual(t, docs[i-1].Score, docs[i].Score)
	}
	for _, d := range docs {
		assert.NotEqual(t, "misc.md", d.Source)
		assert.True(t, d.Score > 0 && d.Score <= 1)
	}
}

func TestKeywordRetriever_CapsAtK(t *testing.T) {
	r := NewKeywordRetriever()
	var docs []core.Document
	for i := 0; i < 10; i++ {
		docs = append(docs, core.Document{Content: "shared token", Source: string(rune('a' + i))})
	}
	_, err := r.AddDocuments(context.Background(), docs)
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), "shared", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// equal scores keep insertion order
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].Source, got[1].Source, got[2].Source})
}

func TestKeywordRetriever_EmptyCorpusAndQuery(t *testing.T) {
	r := NewKeywordRetriever()
	got, err := r.Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	seed(t, r)
	got, err = r.Retrieve(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeywordRetriever_TruncatesAndDefaultsSource(t *testing.T) {
	r := NewKeywordRetriever()
	_, err := r.AddDocuments(context.Background(), []core.Document{{Content: "needle " + strings.Repeat("x", 2000)}})
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), "needle", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "unknown", got[0].Source)
	assert.Len(t, []rune(got[0].Content), core.MaxSnippetLength)
}

func TestKeywordRetriever_ConcurrentAccess(t *testing.T) {
	r := NewKeywordRetriever()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.AddDocuments(context.Background(), []core.Document{{Content: "token", Source: "s"}})
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Retrieve(context.Background(), "token", 3)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, r.Len())
}

func TestJaccard(t *testing.T) {
	assert.Zero(t, Jaccard(Tokenize(""), Tokenize("")))
	assert.InDelta(t, 1.0/3.0, Jaccard(Tokenize("a b"), Tokenize("b c")), 1e-9)
	assert.InDelta(t, 1.0, Jaccard(Tokenize("A b"), Tokenize("a B")), 1e-9)
}

func TestCachedRetriever_HitsAndFlush(t *testing.T) {
	ctx := context.Background()
	c := NewCachedRetriever(NewKeywordRetriever(), time.Minute)
	seed(t, c)

	first, err := c.Retrieve(ctx, "machine learning", 3)
	require.NoError(t, err)
	second, err := c.Retrieve(ctx, "machine learning", 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	_, err = c.AddDocuments(ctx, []core.Document{{Content: "machine learning machine learning", Source: "new.md"}})
	require.NoError(t, err)

	third, err := c.Retrieve(ctx, "machine learning", 3)
	require.NoError(t, err)
	assert.Equal(t, "new.md", third[0].Source)
	_, misses = c.Stats()
	assert.Equal(t, int64(2), misses)

	status, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, status.Details["document_count"])
	assert.Equal(t, 1, status.Details["cache_entries"])
}
