package runner

import (
	"context"

	"github.com/ragbench/rag-bench/internal/dataset"
	"github.com/ragbench/rag-bench/internal/retrieval"
)

// StaticRetriever serves precomputed ranked lists keyed by query text. It is
// used to score retrieval output captured outside the benchmark process.
type StaticRetriever struct {
	byQuery map[string][]retrieval.RankedResult
}

// NewStaticRetriever builds a retriever from per-sample results keyed by
// sample ID.
func NewStaticRetriever(ds *dataset.Dataset, bySample map[string][]retrieval.RankedResult) *StaticRetriever {
	byQuery := make(map[string][]retrieval.RankedResult, len(bySample))
	for i := range ds.Samples {
		s := &ds.Samples[i]
		if results, ok := bySample[s.ID]; ok {
			byQuery[s.Query] = results
		}
	}
	return &StaticRetriever{byQuery: byQuery}
}

// Name implements retrieval.Retriever.
func (s *StaticRetriever) Name() string { return "static" }

// Retrieve implements retrieval.Retriever. Samples without captured results
// yield an empty list.
func (s *StaticRetriever) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.RankedResult, error) {
	results := s.byQuery[query]
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// StaticResponder serves precomputed responses keyed by query text.
type StaticResponder struct {
	byQuery map[string]string
}

// NewStaticResponder builds a responder from per-sample responses keyed by
// sample ID.
func NewStaticResponder(ds *dataset.Dataset, bySample map[string]string) *StaticResponder {
	byQuery := make(map[string]string, len(bySample))
	for i := range ds.Samples {
		s := &ds.Samples[i]
		if resp, ok := bySample[s.ID]; ok {
			byQuery[s.Query] = resp
		}
	}
	return &StaticResponder{byQuery: byQuery}
}

// Respond implements Responder.
func (s *StaticResponder) Respond(ctx context.Context, query string, docs []retrieval.RankedResult) (string, error) {
	return s.byQuery[query], nil
}
