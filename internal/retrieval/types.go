// Package retrieval defines the ranked-result shapes produced by retrieval
// strategies and the interface the evaluation runner consumes them through.
package retrieval

import "context"

// RankedResult is a single entry in a ranked result list. Identity is
// DocumentID; Score is strategy-specific and not comparable across
// strategies before fusion.
type RankedResult struct {
	// DocumentID uniquely identifies the retrieved document or chunk.
	DocumentID string `json:"document_id"`

	// Score is the strategy's own relevance score for this entry.
	Score float64 `json:"score"`
}

// Retriever produces a ranked result list for a query, best-first.
// The position in the returned slice encodes the 1-indexed rank.
type Retriever interface {
	// Name identifies the retrieval strategy (e.g. "keyword", "vector").
	Name() string

	// Retrieve returns up to topK results ordered best-first.
	Retrieve(ctx context.Context, query string, topK int) ([]RankedResult, error)
}
