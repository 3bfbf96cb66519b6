// Package evaluation computes and aggregates the quality metrics used to
// compare retrieval and generation configurations offline.
package evaluation

import (
	"math"

	"github.com/ragbench/rag-bench/internal/retrieval"
)

// EvaluationContext is the read-only input every metric consumes. It is
// assembled once per sample by the caller and never mutated by metrics.
type EvaluationContext struct {
	// Query is the evaluated query text.
	Query string `json:"query"`

	// Response is the generated answer under evaluation.
	Response string `json:"response"`

	// GroundTruth is the expected answer. Empty means absent.
	GroundTruth string `json:"ground_truth,omitempty"`

	// RelevantDocumentIDs is the set of documents judged relevant.
	RelevantDocumentIDs map[string]bool `json:"relevant_document_ids,omitempty"`

	// RetrievedDocuments is the ranked retrieval output, best-first.
	RetrievedDocuments []retrieval.RankedResult `json:"retrieved_documents,omitempty"`

	// SampleID identifies the sample within a dataset.
	SampleID string `json:"sample_id,omitempty"`
}

// MetricResult is the outcome of one metric computation. Value is a finite
// number in the metric's documented range, or NaN when Success is false;
// failed results are excluded from macro averaging, never counted as zero.
type MetricResult struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Success      bool    `json:"success"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// NewResult creates a successful metric result.
func NewResult(name string, value float64) MetricResult {
	return MetricResult{
		Name:    name,
		Value:   value,
		Success: true,
	}
}

// NewFailedResult creates a failed metric result carrying a NaN value.
func NewFailedResult(name, message string) MetricResult {
	return MetricResult{
		Name:         name,
		Value:        math.NaN(),
		Success:      false,
		ErrorMessage: message,
	}
}
