package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// storedDocument is the internal representation kept by KeywordRetriever with
// its token set precomputed at ingestion.
type storedDocument struct {
	content  string
	source   string
	metadata map[string]any
	tokens   map[string]struct{}
}

// KeywordRetriever ranks documents by Jaccard similarity between the
// lower-cased whitespace token sets of query and document. Only documents
// sharing at least one token are returned. Ties keep insertion order.
//
// Concurrency: protected by RWMutex.
type KeywordRetriever struct {
	mu   sync.RWMutex
	docs []storedDocument
}

// NewKeywordRetriever creates an empty keyword retriever.
func NewKeywordRetriever() *KeywordRetriever {
	return &KeywordRetriever{}
}

// AddDocuments ingests documents. A missing source becomes "unknown".
func (r *KeywordRetriever) AddDocuments(_ context.Context, docs []core.Document) (bool, error) {
	stored := make([]storedDocument, 0, len(docs))
	for _, d := range docs {
		source := d.Source
		if source == "" {
			source = "unknown"
		}
		md := make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			md[k] = v
		}
		stored = append(stored, storedDocument{content: d.Content, source: source, metadata: md, tokens: Tokenize(d.Content)})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, stored...)
	return true, nil
}

// Retrieve returns the top k documents by similarity, highest first.
func (r *KeywordRetriever) Retrieve(_ context.Context, query string, k int) ([]core.RetrievedDocument, error) {
	queryTokens := Tokenize(query)
	results := []core.RetrievedDocument{}
	if len(queryTokens) == 0 || k <= 0 {
		return results, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, doc := range r.docs {
		score := Jaccard(queryTokens, doc.tokens)
		if score <= 0 {
			continue
		}
		md := make(map[string]any, len(doc.metadata))
		for key, v := range doc.metadata {
			md[key] = v
		}
		results = append(results, core.RetrievedDocument{
			Content:  core.TruncateSnippet(doc.content),
			Source:   doc.source,
			Score:    score,
			Metadata: md,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of ingested documents.
func (r *KeywordRetriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Health reports the corpus size.
func (r *KeywordRetriever) Health(_ context.Context) (core.HealthStatus, error) {
	return core.Healthy(map[string]any{"backend": "keyword", "document_count": r.Len()}), nil
}

// Tokenize splits text on whitespace into a lower-cased token set.
func Tokenize(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b|, or 0 when both sets are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
