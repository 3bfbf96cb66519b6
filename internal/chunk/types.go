package chunk

// Metadata keys attached to every chunk.
const (
	// MetaStrategy tags which chunking strategy produced the chunk.
	MetaStrategy = "strategy"

	// MetaEstimatedTokens holds the chunk's estimated token count.
	MetaEstimatedTokens = "estimated_tokens"

	// StrategyTokenWindow is the sliding token-window strategy tag.
	StrategyTokenWindow = "token_window"
)

// DocumentChunk is a bounded, contiguous span of a document's text, the
// indexing unit handed to an external indexer.
//
// Invariant: 0 <= StartIndex <= EndIndex <= len(original text), and
// ChunkIndex is strictly increasing from 0 within one chunking call.
type DocumentChunk struct {
	// ID is a deterministic identifier derived from the document ID and span.
	ID string `json:"id"`

	// DocumentID identifies the source document.
	DocumentID string `json:"document_id"`

	// Text is the chunk content, a verbatim slice of the original text.
	Text string `json:"text"`

	// StartIndex is the byte offset of the chunk start in the original text.
	StartIndex int `json:"start_index"`

	// EndIndex is the byte offset just past the chunk end.
	EndIndex int `json:"end_index"`

	// ChunkIndex is the chunk's position within the chunking call.
	ChunkIndex int `json:"chunk_index"`

	// Metadata carries the strategy tag and estimated token count.
	Metadata map[string]string `json:"metadata,omitempty"`
}
