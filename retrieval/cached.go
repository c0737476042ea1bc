package retrieval

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/hupe1980/agentflow/core"
)

// CachedRetriever memoizes Retrieve results of an inner Retriever keyed by
// (k, query). Ingesting documents flushes the cache so rankings never go
// stale relative to the corpus.
type CachedRetriever struct {
	inner  core.Retriever
	cache  *cache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedRetriever wraps inner with a TTL cache. A non-positive ttl
// defaults to five minutes.
func NewCachedRetriever(inner core.Retriever, ttl time.Duration) *CachedRetriever {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedRetriever{inner: inner, cache: cache.New(ttl, 2*ttl)}
}

// Retrieve serves from cache or delegates to the inner retriever.
func (c *CachedRetriever) Retrieve(ctx context.Context, query string, k int) ([]core.RetrievedDocument, error) {
	key := strconv.Itoa(k) + ":" + query
	if v, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return append([]core.RetrievedDocument{}, v.([]core.RetrievedDocument)...), nil
	}
	c.misses.Add(1)

	docs, err := c.inner.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, append([]core.RetrievedDocument{}, docs...), cache.DefaultExpiration)
	return docs, nil
}

// AddDocuments forwards to the inner retriever and flushes cached rankings.
func (c *CachedRetriever) AddDocuments(ctx context.Context, docs []core.Document) (bool, error) {
	ok, err := c.inner.AddDocuments(ctx, docs)
	c.cache.Flush()
	return ok, err
}

// Stats returns cache hit and miss counts.
func (c *CachedRetriever) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Health reports the inner status enriched with cache statistics.
func (c *CachedRetriever) Health(ctx context.Context) (core.HealthStatus, error) {
	status, err := c.inner.Health(ctx)
	if err != nil {
		return status, err
	}
	details := make(map[string]any, len(status.Details)+3)
	for k, v := range status.Details {
		details[k] = v
	}
	details["cache_entries"] = c.cache.ItemCount()
	details["cache_hits"] = c.hits.Load()
	details["cache_misses"] = c.misses.Load()
	status.Details = details
	return status, nil
}
