package evaluation

import "math"

// Strategy selects how per-query values combine into dataset-level numbers.
type Strategy string

const (
	// StrategyMacro averages per-query metric values.
	StrategyMacro Strategy = "macro"

	// StrategyMicro computes precision/recall from global counts.
	StrategyMicro Strategy = "micro"
)

// QueryScores carries one query's metric values plus the raw counts micro
// averaging needs. Metric values may be NaN for failed computations.
type QueryScores struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	MRR       float64 `json:"mrr"`

	// RelevantRetrieved is |relevant ∩ retrieved| for this query.
	RelevantRetrieved int `json:"relevant_retrieved"`

	// RetrievedCount is the number of retrieved documents considered.
	RetrievedCount int `json:"retrieved_count"`

	// RelevantCount is the total number of relevant documents.
	RelevantCount int `json:"relevant_count"`
}

// AggregateResult is the dataset-level rollup of retrieval metrics.
type AggregateResult struct {
	Precision  float64 `json:"precision"`
	Recall     float64 `json:"recall"`
	F1         float64 `json:"f1"`
	MRR        float64 `json:"mrr"`
	QueryCount int     `json:"query_count"`
}

// MacroAverage is the arithmetic mean of values, excluding NaN entries
// rather than treating them as zero. Returns 0 when nothing is countable.
func MacroAverage(values []float64) float64 {
	sum := 0.0
	count := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// Aggregate rolls per-query scores up to a dataset-level result.
//
// Macro averages each metric's per-query values; micro computes precision
// and recall from global counts and derives F1 from that pair. MRR has no
// meaningful global-count form, so it is macro-averaged under both
// strategies. Empty input yields a zero result with QueryCount 0.
func Aggregate(samples []QueryScores, strategy Strategy) AggregateResult {
	result := AggregateResult{QueryCount: len(samples)}
	if len(samples) == 0 {
		return result
	}

	mrrs := make([]float64, len(samples))
	for i, s := range samples {
		mrrs[i] = s.MRR
	}
	result.MRR = MacroAverage(mrrs)

	if strategy == StrategyMicro {
		var relevantRetrieved, retrieved, relevant int
		for _, s := range samples {
			relevantRetrieved += s.RelevantRetrieved
			retrieved += s.RetrievedCount
			relevant += s.RelevantCount
		}

		if retrieved > 0 {
			result.Precision = float64(relevantRetrieved) / float64(retrieved)
		}
		if relevant > 0 {
			result.Recall = float64(relevantRetrieved) / float64(relevant)
		}
		result.F1 = fBeta(result.Precision, result.Recall, 1)
		return result
	}

	precisions := make([]float64, len(samples))
	recalls := make([]float64, len(samples))
	f1s := make([]float64, len(samples))
	for i, s := range samples {
		precisions[i] = s.Precision
		recalls[i] = s.Recall
		f1s[i] = s.F1
	}

	result.Precision = MacroAverage(precisions)
	result.Recall = MacroAverage(recalls)
	result.F1 = MacroAverage(f1s)
	return result
}
