// Package chunk splits raw document text into overlapping, token-budgeted
// spans ready for indexing.
package chunk

import (
	"math"
	"strconv"
	"unicode"

	"github.com/ragbench/rag-bench/internal/pkg/errors"
	"github.com/ragbench/rag-bench/internal/pkg/hash"
)

// ChunkerConfig holds configuration for the chunker. Budgets are expressed
// in approximate tokens; WordRatio converts them to word counts.
type ChunkerConfig struct {
	// ChunkTokens is the target chunk size in tokens (approximate).
	ChunkTokens int

	// OverlapTokens is the number of tokens to overlap between chunks.
	OverlapTokens int

	// WordRatio is the estimated tokens-per-word constant. It is an
	// estimate, not an exact tokenizer. Must be greater than 1.
	WordRatio float64
}

// DefaultChunkerConfig returns sensible defaults.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkTokens:   512,
		OverlapTokens: 64,
		WordRatio:     1.3,
	}
}

// Chunker splits documents into retrieval-ready chunks. A Chunker is
// immutable after construction and safe for concurrent use.
type Chunker struct {
	config       ChunkerConfig
	chunkWords   int
	overlapWords int
}

// NewChunker creates a chunker, validating the configuration once so a
// non-advancing window can never occur per call.
func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.ChunkTokens <= 0 {
		return nil, errors.ValidationErrorf("chunk size must be positive, got %d", cfg.ChunkTokens)
	}
	if cfg.OverlapTokens < 0 {
		return nil, errors.ValidationErrorf("overlap must not be negative, got %d", cfg.OverlapTokens)
	}
	if cfg.OverlapTokens >= cfg.ChunkTokens {
		return nil, errors.ValidationErrorf(
			"overlap (%d) must be smaller than chunk size (%d)", cfg.OverlapTokens, cfg.ChunkTokens)
	}
	if cfg.WordRatio <= 1 {
		return nil, errors.ValidationErrorf("word ratio must be greater than 1, got %g", cfg.WordRatio)
	}

	chunkWords := int(float64(cfg.ChunkTokens) / cfg.WordRatio)
	if chunkWords < 1 {
		chunkWords = 1
	}
	overlapWords := int(float64(cfg.OverlapTokens) / cfg.WordRatio)
	if overlapWords >= chunkWords {
		overlapWords = chunkWords - 1
	}

	return &Chunker{
		config:       cfg,
		chunkWords:   chunkWords,
		overlapWords: overlapWords,
	}, nil
}

// Config returns the chunker configuration.
func (c *Chunker) Config() ChunkerConfig {
	return c.config
}

// wordSpan is the byte range of one whitespace-delimited word.
type wordSpan struct {
	start int
	end   int
}

// Chunk splits text into chunks for documentID. Blank text yields an empty
// list; an empty documentID is a caller error. Identical inputs always
// produce identical chunk boundaries.
func (c *Chunker) Chunk(text, documentID string) ([]DocumentChunk, error) {
	if documentID == "" {
		return nil, errors.ValidationError("documentId must not be empty")
	}

	spans := wordSpans(text)
	if len(spans) == 0 {
		return []DocumentChunk{}, nil
	}

	// Small inputs become a single chunk spanning the entire text.
	if len(spans) <= c.chunkWords {
		return []DocumentChunk{c.newChunk(text, documentID, 0, 0, len(text), len(spans))}, nil
	}

	step := c.chunkWords - c.overlapWords
	chunks := make([]DocumentChunk, 0, (len(spans)+step-1)/step)

	for start := 0; ; start += step {
		end := start + c.chunkWords
		if end > len(spans) {
			end = len(spans)
		}

		startChar := spans[start].start
		endChar := spans[end-1].end
		chunks = append(chunks, c.newChunk(text, documentID, len(chunks), startChar, endChar, end-start))

		if end == len(spans) {
			break
		}
	}

	return chunks, nil
}

func (c *Chunker) newChunk(text, documentID string, index, startChar, endChar, wordCount int) DocumentChunk {
	estTokens := int(math.Round(float64(wordCount) * c.config.WordRatio))
	return DocumentChunk{
		ID:         hash.ChunkID(documentID, startChar, endChar),
		DocumentID: documentID,
		Text:       text[startChar:endChar],
		StartIndex: startChar,
		EndIndex:   endChar,
		ChunkIndex: index,
		Metadata: map[string]string{
			MetaStrategy:        StrategyTokenWindow,
			MetaEstimatedTokens: strconv.Itoa(estTokens),
		},
	}
}

// wordSpans scans text and returns the byte range of every
// whitespace-delimited word, in order. Splitting is whitespace-only; no
// punctuation handling.
func wordSpans(text string) []wordSpan {
	var spans []wordSpan
	start := -1

	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, wordSpan{start: start, end: i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, wordSpan{start: start, end: len(text)})
	}

	return spans
}
