package core

import "context"

// MaxSnippetLength bounds the content carried by a RetrievedDocument (in runes).
const MaxSnippetLength = 500

// Document is an ingestion unit handed to a Retriever.
type Document struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RetrievedDocument represents a ranked snippet with a similarity score in
// [0,1]. It only lives for the duration of a query; interactions persist the
// Source identifier, never the document itself.
type RetrievedDocument struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Retriever provides ranked lookup of relevant content.
//
// Retrieve returns at most k documents ordered by descending score; ties keep
// the provider's order. An empty corpus yields an empty slice, not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]RetrievedDocument, error)
	AddDocuments(ctx context.Context, docs []Document) (bool, error)
	HealthChecker
}

// TruncateSnippet shortens content to MaxSnippetLength runes.
func TruncateSnippet(content string) string {
	r := []rune(content)
	if len(r) <= MaxSnippetLength {
		return content
	}
	return string(r[:MaxSnippetLength])
}
