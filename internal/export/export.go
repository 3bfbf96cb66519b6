// Package export renders evaluation reports and comparisons to JSON and CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/ragbench/rag-bench/internal/pkg/errors"
	"github.com/ragbench/rag-bench/internal/runner"
	"github.com/ragbench/rag-bench/internal/stats"
)

// WriteReportJSON writes a run report as indented JSON.
func WriteReportJSON(w io.Writer, report *runner.Report) error {
	if report == nil {
		return errors.ValidationError("report is nil")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return errors.Wrap(errors.CodeExportError, "encoding report", err)
	}
	return nil
}

// WriteReportCSV writes one row per sample with a column per metric.
// Failed metric values render as empty cells.
func WriteReportCSV(w io.Writer, report *runner.Report) error {
	if report == nil {
		return errors.ValidationError("report is nil")
	}

	names := metricNames(report)

	cw := csv.NewWriter(w)
	header := append([]string{"sample_id"}, names...)
	header = append(header, "error")
	if err := cw.Write(header); err != nil {
		return errors.Wrap(errors.CodeExportError, "writing header", err)
	}

	for _, sample := range report.Samples {
		values := make(map[string]float64, len(sample.Metrics))
		for _, m := range sample.Metrics {
			if m.Success {
				values[m.Name] = m.Value
			}
		}

		row := make([]string, 0, len(names)+2)
		row = append(row, sample.SampleID)
		for _, name := range names {
			v, ok := values[name]
			if !ok || math.IsNaN(v) {
				row = append(row, "")
				continue
			}
			row = append(row, formatValue(v))
		}
		row = append(row, sample.Error)

		if err := cw.Write(row); err != nil {
			return errors.Wrap(errors.CodeExportError, "writing row", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(errors.CodeExportError, "flushing csv", err)
	}
	return nil
}

// WriteSummaryCSV writes the dataset-level rollup as a two-row CSV.
func WriteSummaryCSV(w io.Writer, report *runner.Report) error {
	if report == nil {
		return errors.ValidationError("report is nil")
	}

	names := make([]string, 0, len(report.Metrics))
	for name := range report.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	header := []string{"run_id", "dataset", "variant", "strategy", "query_count", "failed_count", "precision", "recall", "f1", "mrr"}
	header = append(header, names...)

	row := []string{
		report.RunID,
		report.Dataset,
		report.Variant,
		string(report.Strategy),
		strconv.Itoa(report.Aggregate.QueryCount),
		strconv.Itoa(report.FailedCount),
		formatValue(report.Aggregate.Precision),
		formatValue(report.Aggregate.Recall),
		formatValue(report.Aggregate.F1),
		formatValue(report.Aggregate.MRR),
	}
	for _, name := range names {
		row = append(row, formatValue(report.Metrics[name]))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(errors.CodeExportError, "writing header", err)
	}
	if err := cw.Write(row); err != nil {
		return errors.Wrap(errors.CodeExportError, "writing row", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(errors.CodeExportError, "flushing csv", err)
	}
	return nil
}

// WriteComparisonsJSON writes variant comparisons as indented JSON.
func WriteComparisonsJSON(w io.Writer, comparisons []*stats.ComparisonResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(comparisons); err != nil {
		return errors.Wrap(errors.CodeExportError, "encoding comparisons", err)
	}
	return nil
}

// WriteComparisonsCSV writes one row per variant comparison.
func WriteComparisonsCSV(w io.Writer, comparisons []*stats.ComparisonResult) error {
	cw := csv.NewWriter(w)

	header := []string{"variant_a", "variant_b", "metric", "t_statistic", "p_value", "significant", "effect_size"}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(errors.CodeExportError, "writing header", err)
	}

	for _, cmp := range comparisons {
		row := []string{
			cmp.VariantA,
			cmp.VariantB,
			cmp.Metric,
			formatValue(cmp.TStatistic),
			formatValue(cmp.PValue),
			strconv.FormatBool(cmp.IsSignificant),
			formatValue(cmp.EffectSize),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(errors.CodeExportError, "writing row", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(errors.CodeExportError, "flushing csv", err)
	}
	return nil
}

// metricNames returns the report's metric names in stable order.
func metricNames(report *runner.Report) []string {
	seen := make(map[string]bool)
	var names []string
	for _, sample := range report.Samples {
		for _, m := range sample.Metrics {
			if !seen[m.Name] {
				seen[m.Name] = true
				names = append(names, m.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	if math.IsInf(v, 0) {
		return fmt.Sprintf("%v", v)
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}
