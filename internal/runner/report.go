package runner

import (
	"math"
	"time"

	"github.com/ragbench/rag-bench/internal/evaluation"
)

// SampleResult holds one sample's metric values, or the error that kept it
// from being scored.
type SampleResult struct {
	SampleID string                    `json:"sample_id"`
	Metrics  []evaluation.MetricResult `json:"metrics"`
	Error    string                    `json:"error,omitempty"`
}

// Report is the full outcome of one evaluation run.
type Report struct {
	RunID       string    `json:"run_id"`
	Dataset     string    `json:"dataset"`
	Variant     string    `json:"variant"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Strategy is the aggregation strategy applied to Aggregate.
	Strategy evaluation.Strategy `json:"strategy"`

	// Aggregate is the dataset-level retrieval rollup.
	Aggregate evaluation.AggregateResult `json:"aggregate"`

	// Metrics maps each registered metric name to its macro average over
	// samples that produced a value.
	Metrics map[string]float64 `json:"metrics"`

	// Samples holds the per-sample results in dataset order.
	Samples []SampleResult `json:"samples"`

	// FailedCount is the number of samples that could not be scored.
	FailedCount int `json:"failed_count"`
}

// MetricValues extracts one metric's per-sample values in dataset order.
// Samples that failed or lack the metric contribute NaN.
func (r *Report) MetricValues(name string) []float64 {
	values := make([]float64, len(r.Samples))
	for i := range values {
		values[i] = math.NaN()
	}
	for i, sample := range r.Samples {
		for _, m := range sample.Metrics {
			if m.Name == name && m.Success {
				values[i] = m.Value
				break
			}
		}
	}
	return values
}

func buildReport(runID, datasetName, variantName string, startedAt time.Time, samples []SampleResult, scores []evaluation.QueryScores, strategy evaluation.Strategy, metricNames []string) *Report {
	report := &Report{
		RunID:       runID,
		Dataset:     datasetName,
		Variant:     variantName,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		Strategy:    strategy,
		Samples:     samples,
		Metrics:     make(map[string]float64, len(metricNames)),
	}

	// Failed samples carry NaN scores; drop them from the retrieval rollup
	// but keep the failure visible in FailedCount.
	valid := make([]evaluation.QueryScores, 0, len(scores))
	for i, s := range scores {
		if samples[i].Error != "" {
			report.FailedCount++
			continue
		}
		valid = append(valid, s)
	}
	report.Aggregate = evaluation.Aggregate(valid, strategy)

	for _, name := range metricNames {
		values := make([]float64, 0, len(samples))
		for _, sample := range samples {
			for _, m := range sample.Metrics {
				if m.Name == name {
					values = append(values, m.Value)
					break
				}
			}
		}
		report.Metrics[name] = evaluation.MacroAverage(values)
	}

	return report
}

// failedScores marks a sample as uncountable for macro averaging.
func failedScores() evaluation.QueryScores {
	nan := math.NaN()
	return evaluation.QueryScores{Precision: nan, Recall: nan, F1: nan, MRR: nan}
}
