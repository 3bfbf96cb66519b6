// Package main provides the rag-bench CLI for offline evaluation runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragbench/rag-bench/internal/chunk"
	"github.com/ragbench/rag-bench/internal/config"
	"github.com/ragbench/rag-bench/internal/dataset"
	"github.com/ragbench/rag-bench/internal/evaluation"
	"github.com/ragbench/rag-bench/internal/export"
	"github.com/ragbench/rag-bench/internal/pkg/logger"
	"github.com/ragbench/rag-bench/internal/retrieval"
	"github.com/ragbench/rag-bench/internal/retrieval/fusion"
	"github.com/ragbench/rag-bench/internal/runner"
	"github.com/ragbench/rag-bench/internal/stats"
	"github.com/ragbench/rag-bench/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rag-bench",
		Short: "rag-bench - RAG retrieval and generation evaluation toolkit",
		Long: `rag-bench scores retrieval and generation output against ground-truth
datasets: rank fusion, precision/recall/MRR, answer-quality metrics, and
paired significance testing between variants.

Run 'rag-bench evaluate' to score a captured run.
Run 'rag-bench --help' for available commands.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		evaluateCmd(),
		compareCmd(),
		chunkCmd(),
		fuseCmd(),
		runsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadAppConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return cfg, logger.New(level, cfg.Log.Format), nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// openOutput returns stdout when path is empty.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score captured retrieval results against a ground-truth dataset",
		Long: `Evaluate scores a captured run: a dataset of queries with relevance
judgments, a JSON file of ranked results per sample, and optionally a JSON
file of generated responses per sample.

Examples:
  rag-bench evaluate --dataset qa.yaml --results run.json --variant dense
  rag-bench evaluate --dataset qa.yaml --results run.json --responses answers.json \
    --variant hybrid --format csv --output hybrid.csv`,
		RunE: runEvaluate,
	}

	cmd.Flags().String("dataset", "", "dataset file (YAML or JSON)")
	cmd.Flags().String("results", "", "JSON file mapping sample ID to ranked results")
	cmd.Flags().String("responses", "", "JSON file mapping sample ID to generated answers")
	cmd.Flags().String("variant", "", "variant name for the run")
	cmd.Flags().String("strategy", "macro", "aggregation strategy (macro, micro)")
	cmd.Flags().String("format", "json", "output format (json, csv, summary)")
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	cmd.Flags().Bool("save", false, "persist the report to the run history store")
	cmd.MarkFlagRequired("dataset")
	cmd.MarkFlagRequired("results")
	cmd.MarkFlagRequired("variant")

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadAppConfig(cmd)
	if err != nil {
		return err
	}

	datasetPath, _ := cmd.Flags().GetString("dataset")
	resultsPath, _ := cmd.Flags().GetString("results")
	responsesPath, _ := cmd.Flags().GetString("responses")
	variantName, _ := cmd.Flags().GetString("variant")
	strategy, _ := cmd.Flags().GetString("strategy")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")

	if strategy != string(evaluation.StrategyMacro) && strategy != string(evaluation.StrategyMicro) {
		return fmt.Errorf("unknown strategy: %s", strategy)
	}

	ds, err := dataset.NewLoader().Load(datasetPath)
	if err != nil {
		return err
	}

	var results map[string][]retrieval.RankedResult
	if err := readJSONFile(resultsPath, &results); err != nil {
		return err
	}

	variant := runner.Variant{
		Name:       variantName,
		Retrievers: []retrieval.Retriever{runner.NewStaticRetriever(ds, results)},
	}
	if responsesPath != "" {
		var responses map[string]string
		if err := readJSONFile(responsesPath, &responses); err != nil {
			return err
		}
		variant.Responder = runner.NewStaticResponder(ds, responses)
	}

	registry := evaluation.NewRegistry(evaluation.RegistryConfig{
		Ks:    cfg.Eval.Ks,
		BleuN: cfg.Eval.BleuN,
	})
	fuser, err := fusion.NewFuser(cfg.Eval.RRFK)
	if err != nil {
		return err
	}

	run, err := runner.New(runner.Config{
		TopK:     cfg.Eval.TopK,
		Workers:  cfg.Eval.Workers,
		Strategy: evaluation.Strategy(strategy),
	}, registry, fuser, nil, log)
	if err != nil {
		return err
	}

	report, err := run.Run(context.Background(), ds, variant)
	if err != nil {
		return err
	}

	if save {
		ttl := time.Duration(cfg.Redis.HistoryTTL) * time.Hour
		runStore, err := store.NewRunStore(cfg.Redis.URL, ttl)
		if err != nil {
			return fmt.Errorf("connecting to run store: %w", err)
		}
		defer runStore.Close()

		if err := runStore.SaveReport(context.Background(), report); err != nil {
			return err
		}
		log.Info("report saved", "run_id", report.RunID)
	}

	out, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	if out != os.Stdout {
		defer out.Close()
	}

	switch format {
	case "json":
		return export.WriteReportJSON(out, report)
	case "csv":
		return export.WriteReportCSV(out, report)
	case "summary":
		return export.WriteSummaryCSV(out, report)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <report-a.json> <report-b.json>",
		Short: "Run a paired significance test between two evaluation reports",
		Long: `Compare runs a paired t-test on matched per-sample metric values from
two reports produced by 'rag-bench evaluate'. Samples that failed in either
run are excluded from the pairing.

Example:
  rag-bench compare baseline.json hybrid.json --metric mrr`,
		Args: cobra.ExactArgs(2),
		RunE: runCompare,
	}

	cmd.Flags().String("metric", "mrr", "metric to compare")
	cmd.Flags().String("format", "text", "output format (text, json, csv)")
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	metric, _ := cmd.Flags().GetString("metric")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	var reportA, reportB runner.Report
	if err := readJSONFile(args[0], &reportA); err != nil {
		return err
	}
	if err := readJSONFile(args[1], &reportB); err != nil {
		return err
	}

	valuesA := reportA.MetricValues(metric)
	valuesB := reportB.MetricValues(metric)
	if len(valuesA) != len(valuesB) {
		return fmt.Errorf("reports cover different sample counts: %d vs %d", len(valuesA), len(valuesB))
	}

	// Keep only pairs where both runs produced a value.
	var pairedA, pairedB []float64
	for i := range valuesA {
		if math.IsNaN(valuesA[i]) || math.IsNaN(valuesB[i]) {
			continue
		}
		pairedA = append(pairedA, valuesA[i])
		pairedB = append(pairedB, valuesB[i])
	}

	result, err := stats.Compare(reportA.Variant, reportB.Variant, metric, pairedA, pairedB)
	if err != nil {
		return err
	}

	out, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	if out != os.Stdout {
		defer out.Close()
	}

	switch format {
	case "json":
		return export.WriteComparisonsJSON(out, []*stats.ComparisonResult{result})
	case "csv":
		return export.WriteComparisonsCSV(out, []*stats.ComparisonResult{result})
	case "text":
		meanA := mean(pairedA)
		meanB := mean(pairedB)
		fmt.Fprintf(out, "%s: %s=%.4f  %s=%.4f  (%+.2f%%)\n",
			metric, result.VariantA, meanA, result.VariantB, meanB,
			stats.ImprovementPercentage(meanA, meanB))
		fmt.Fprintf(out, "paired t-test: t=%.4f  p=%.4f %s  d=%.3f  n=%d\n",
			result.TStatistic, result.PValue,
			stats.SignificanceIndicator(result.PValue), result.EffectSize, len(pairedA))
		if result.IsSignificant {
			fmt.Fprintln(out, "difference is significant at the 0.05 level")
		} else {
			fmt.Fprintln(out, "difference is not significant at the 0.05 level")
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func chunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Split a document into token-budget chunks",
		Long: `Chunk splits a text file into overlapping chunks using the configured
token budgets and prints them as JSON.

Example:
  rag-bench chunk corpus/doc1.txt --doc-id doc1 --chunk-tokens 256`,
		Args: cobra.ExactArgs(1),
		RunE: runChunk,
	}

	cmd.Flags().String("doc-id", "", "document identifier (default: file path)")
	cmd.Flags().Int("chunk-tokens", 0, "chunk token budget (default from config)")
	cmd.Flags().Int("overlap-tokens", -1, "overlap token budget (default from config)")
	cmd.Flags().Float64("word-ratio", 0, "token-to-word ratio (default from config)")

	return cmd
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadAppConfig(cmd)
	if err != nil {
		return err
	}

	docID, _ := cmd.Flags().GetString("doc-id")
	chunkTokens, _ := cmd.Flags().GetInt("chunk-tokens")
	overlapTokens, _ := cmd.Flags().GetInt("overlap-tokens")
	wordRatio, _ := cmd.Flags().GetFloat64("word-ratio")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if docID == "" {
		docID = args[0]
	}

	chunkerCfg := chunk.ChunkerConfig{
		ChunkTokens:   cfg.Eval.ChunkTokens,
		OverlapTokens: cfg.Eval.OverlapTokens,
		WordRatio:     cfg.Eval.WordRatio,
	}
	if chunkTokens > 0 {
		chunkerCfg.ChunkTokens = chunkTokens
	}
	if overlapTokens >= 0 {
		chunkerCfg.OverlapTokens = overlapTokens
	}
	if wordRatio > 0 {
		chunkerCfg.WordRatio = wordRatio
	}

	chunker, err := chunk.NewChunker(chunkerCfg)
	if err != nil {
		return err
	}

	chunks, err := chunker.Chunk(string(data), docID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(chunks)
}

func fuseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuse <result-sets.json>",
		Short: "Fuse ranked result lists with reciprocal rank fusion",
		Long: `Fuse reads a JSON array of ranked result lists and prints the fused
ranking.

Example:
  rag-bench fuse candidates.json --top-k 10`,
		Args: cobra.ExactArgs(1),
		RunE: runFuse,
	}

	cmd.Flags().Int("top-k", 0, "number of fused results to keep (default from config)")
	cmd.Flags().Int("k", 0, "RRF rank constant (default from config)")

	return cmd
}

func runFuse(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadAppConfig(cmd)
	if err != nil {
		return err
	}

	topK, _ := cmd.Flags().GetInt("top-k")
	k, _ := cmd.Flags().GetInt("k")
	if topK == 0 {
		topK = cfg.Eval.TopK
	}
	if k == 0 {
		k = cfg.Eval.RRFK
	}

	var resultSets [][]retrieval.RankedResult
	if err := readJSONFile(args[0], &resultSets); err != nil {
		return err
	}

	fuser, err := fusion.NewFuser(k)
	if err != nil {
		return err
	}

	fused, err := fuser.Fuse(resultSets, topK)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(fused)
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored evaluation runs",
		RunE:  runRuns,
	}

	cmd.Flags().Int("limit", 20, "maximum number of runs to list")

	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadAppConfig(cmd)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")

	ttl := time.Duration(cfg.Redis.HistoryTTL) * time.Hour
	runStore, err := store.NewRunStore(cfg.Redis.URL, ttl)
	if err != nil {
		return fmt.Errorf("connecting to run store: %w", err)
	}
	defer runStore.Close()

	runs, err := runStore.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no stored runs")
		return nil
	}

	fmt.Printf("%-18s %-16s %-16s %-20s %7s %7s %7s\n",
		"RUN", "DATASET", "VARIANT", "STARTED", "P", "R", "MRR")
	for _, r := range runs {
		fmt.Printf("%-18s %-16s %-16s %-20s %7.4f %7.4f %7.4f\n",
			r.RunID, r.Dataset, r.Variant,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Precision, r.Recall, r.MRR)
	}

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rag-bench %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
