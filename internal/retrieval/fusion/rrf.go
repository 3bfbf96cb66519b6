// Package fusion merges ranked result lists from independent retrieval
// strategies into a single ranking via Reciprocal Rank Fusion.
package fusion

import (
	"sort"

	"github.com/ragbench/rag-bench/internal/pkg/errors"
	"github.com/ragbench/rag-bench/internal/retrieval"
)

const (
	// DefaultK is the RRF smoothing constant.
	// Higher values reduce the impact of rank position differences.
	DefaultK = 60
)

// Fuser combines ranked lists using Reciprocal Rank Fusion with a fixed
// smoothing constant. A Fuser is immutable and safe for concurrent use.
type Fuser struct {
	k int
}

// NewFuser creates a Fuser with the given smoothing constant.
// k must be positive; the reference value is DefaultK.
func NewFuser(k int) (*Fuser, error) {
	if k <= 0 {
		return nil, errors.ValidationErrorf("rrf constant must be positive, got %d", k)
	}
	return &Fuser{k: k}, nil
}

// K returns the smoothing constant.
func (f *Fuser) K() int {
	return f.k
}

// fusedEntry accumulates a document's contributions during a fusion pass.
type fusedEntry struct {
	// template is the first-encountered payload for this document, scanning
	// lists left to right. Only its score is overwritten on output.
	template retrieval.RankedResult

	// score is the accumulated RRF score.
	score float64

	// order is the discovery index, used to break score ties.
	order int
}

// Fuse merges resultSets into a single ranking of at most topK entries.
//
// Each element at 1-indexed rank r contributes 1/(k + r) to its document's
// fused score; contributions for the same DocumentID are summed across all
// lists. A document repeated within one list contributes once per
// occurrence. Output is sorted by fused score descending; equal scores
// retain first-discovery order.
//
// Empty input yields an empty (non-nil) result. topK must be positive.
func (f *Fuser) Fuse(resultSets [][]retrieval.RankedResult, topK int) ([]retrieval.RankedResult, error) {
	if topK <= 0 {
		return nil, errors.ValidationErrorf("topK must be positive, got %d", topK)
	}

	entries := make(map[string]*fusedEntry)
	var discovered []*fusedEntry

	for _, set := range resultSets {
		for idx, r := range set {
			rank := idx + 1
			contribution := 1.0 / float64(f.k+rank)

			entry, ok := entries[r.DocumentID]
			if !ok {
				entry = &fusedEntry{
					template: r,
					order:    len(discovered),
				}
				entries[r.DocumentID] = entry
				discovered = append(discovered, entry)
			}
			entry.score += contribution
		}
	}

	sort.SliceStable(discovered, func(i, j int) bool {
		if discovered[i].score == discovered[j].score {
			return discovered[i].order < discovered[j].order
		}
		return discovered[i].score > discovered[j].score
	})

	if topK > len(discovered) {
		topK = len(discovered)
	}

	fused := make([]retrieval.RankedResult, 0, topK)
	for _, entry := range discovered[:topK] {
		out := entry.template
		out.Score = entry.score
		fused = append(fused, out)
	}

	return fused, nil
}
