package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/ragbench/rag-bench/internal/chunk"
	"github.com/ragbench/rag-bench/internal/pkg/hash"
)

// ChunkPayload is the stored payload for an indexed document chunk.
type ChunkPayload struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// SearchResult is a scored point with its extracted payload.
type SearchResult struct {
	ID      string       `json:"id"`
	Score   float32      `json:"score"`
	Payload ChunkPayload `json:"payload"`
}

// UpsertChunks stores document chunks with their embedding vectors.
// vectors must be parallel to chunks.
func (c *Client) UpsertChunks(ctx context.Context, collection string, chunks []chunk.DocumentChunk, vectors [][]float32) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, ch := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID(ch.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id":    ch.ID,
				"document_id": ch.DocumentID,
				"chunk_index": ch.ChunkIndex,
				"text":        ch.Text,
				"start_index": ch.StartIndex,
				"end_index":   ch.EndIndex,
			}),
		})
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName(collection),
		Points:         points,
		Wait:           qdrant.PtrOf(true), // Wait for indexing
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}

	return nil
}

// UpsertChunksBatch upserts chunks in batches to bound request size.
func (c *Client) UpsertChunksBatch(ctx context.Context, collection string, chunks []chunk.DocumentChunk, vectors [][]float32, batchSize int) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		if err := c.UpsertChunks(ctx, collection, chunks[i:end], vectors[i:end]); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeleteDocument removes every chunk belonging to a document.
func (c *Client) DeleteDocument(ctx context.Context, collection, documentID string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName(collection),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("document_id", documentID),
					},
				},
			},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}

	return nil
}

// pointUUID derives a deterministic UUID-shaped identifier from a chunk ID.
func pointUUID(chunkID string) string {
	h := hash.SHA256String(chunkID)
	return fmt.Sprintf("%s-%s-%s-%s-%s", h[0:8], h[8:12], h[12:16], h[16:20], h[20:32])
}

// extractPayload extracts ChunkPayload from a Qdrant payload map.
func extractPayload(payload map[string]*qdrant.Value) ChunkPayload {
	result := ChunkPayload{}

	if v := getStringValue(payload, "chunk_id"); v != "" {
		result.ChunkID = v
	}
	if v := getStringValue(payload, "document_id"); v != "" {
		result.DocumentID = v
	}
	if v := getStringValue(payload, "text"); v != "" {
		result.Text = v
	}
	result.ChunkIndex = getIntValue(payload, "chunk_index")
	result.StartIndex = getIntValue(payload, "start_index")
	result.EndIndex = getIntValue(payload, "end_index")

	return result
}

func getStringValue(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}

func getIntValue(payload map[string]*qdrant.Value, key string) int {
	if v, ok := payload[key]; ok {
		if iv, ok := v.Kind.(*qdrant.Value_IntegerValue); ok {
			return int(iv.IntegerValue)
		}
	}
	return 0
}
