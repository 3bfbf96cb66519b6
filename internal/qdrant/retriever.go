package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/ragbench/rag-bench/internal/pkg/errors"
	"github.com/ragbench/rag-bench/internal/retrieval"
)

// Embedder turns query text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DenseSearch performs a dense vector search over a collection.
func (c *Client) DenseSearch(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName(collection),
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dense search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		var id string
		switch v := p.Id.PointIdOptions.(type) {
		case *qdrant.PointId_Uuid:
			id = v.Uuid
		case *qdrant.PointId_Num:
			id = fmt.Sprintf("%d", v.Num)
		}

		results = append(results, SearchResult{
			ID:      id,
			Score:   p.Score,
			Payload: extractPayload(p.Payload),
		})
	}

	return results, nil
}

// VectorRetriever retrieves documents by dense vector similarity. It
// deduplicates chunk hits down to document IDs, keeping each document's
// best-scoring position.
type VectorRetriever struct {
	client     *Client
	embedder   Embedder
	collection string
	name       string
}

// NewVectorRetriever creates a retriever over a Qdrant collection.
func NewVectorRetriever(client *Client, embedder Embedder, collection string) (*VectorRetriever, error) {
	if client == nil {
		return nil, errors.ValidationError("client is required")
	}
	if embedder == nil {
		return nil, errors.ValidationError("embedder is required")
	}
	if collection == "" {
		return nil, errors.ValidationError("collection cannot be empty")
	}

	return &VectorRetriever{
		client:     client,
		embedder:   embedder,
		collection: collection,
		name:       "qdrant-dense",
	}, nil
}

// Name implements retrieval.Retriever.
func (r *VectorRetriever) Name() string { return r.name }

// Retrieve implements retrieval.Retriever.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.RankedResult, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.RetrieverError("embedding query", err)
	}

	// Over-fetch chunks so that topK distinct documents survive dedup
	hits, err := r.client.DenseSearch(ctx, r.collection, vector, topK*4)
	if err != nil {
		return nil, errors.RetrieverError("searching collection", err)
	}

	seen := make(map[string]bool, len(hits))
	results := make([]retrieval.RankedResult, 0, topK)
	for _, hit := range hits {
		docID := hit.Payload.DocumentID
		if docID == "" {
			docID = hit.ID
		}
		if seen[docID] {
			continue
		}
		seen[docID] = true

		results = append(results, retrieval.RankedResult{
			DocumentID: docID,
			Score:      float64(hit.Score),
		})
		if len(results) == topK {
			break
		}
	}

	return results, nil
}
