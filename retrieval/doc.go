// Package retrieval provides core.Retriever implementations.
//
// KeywordRetriever is the reference backend: token-overlap (Jaccard) ranking
// over an in-memory corpus, good enough for tests and demos and deterministic
// by construction. CachedRetriever memoizes ranked results in front of any
// Retriever. Swap in a vector index for production retrieval; the orchestrator
// only depends on the core.Retriever contract.
package retrieval
