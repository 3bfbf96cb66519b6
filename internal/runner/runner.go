// Package runner drives batch evaluation of retrieval variants over a dataset.
package runner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ragbench/rag-bench/internal/bus"
	"github.com/ragbench/rag-bench/internal/dataset"
	"github.com/ragbench/rag-bench/internal/evaluation"
	"github.com/ragbench/rag-bench/internal/pkg/errors"
	"github.com/ragbench/rag-bench/internal/pkg/hash"
	"github.com/ragbench/rag-bench/internal/pkg/logger"
	"github.com/ragbench/rag-bench/internal/retrieval"
	"github.com/ragbench/rag-bench/internal/retrieval/fusion"
)

// Responder produces an answer for a query given the fused retrieval results.
// Implementations call the generation side of the system under test; a nil
// responder skips generation metrics.
type Responder interface {
	Respond(ctx context.Context, query string, docs []retrieval.RankedResult) (string, error)
}

// Variant is a named retrieval configuration under evaluation. Results from
// all retrievers are fused with reciprocal rank fusion before scoring.
type Variant struct {
	Name       string
	Retrievers []retrieval.Retriever
	Responder  Responder
}

// Config holds runner settings.
type Config struct {
	// TopK is the number of fused results kept per query.
	TopK int

	// Workers bounds concurrent sample evaluation.
	Workers int

	// RetrieveRate caps retriever calls per second across all workers.
	// Zero means unlimited.
	RetrieveRate float64

	// Strategy selects the aggregation strategy for retrieval metrics.
	Strategy evaluation.Strategy
}

// Runner evaluates variants against datasets.
type Runner struct {
	cfg      Config
	registry *evaluation.Registry
	fuser    *fusion.Fuser
	bus      bus.Bus
	limiter  *rate.Limiter
	log      *logger.Logger
}

// New creates a runner. The bus may be nil when lifecycle events are not
// needed (e.g. one-shot CLI runs).
func New(cfg Config, registry *evaluation.Registry, fuser *fusion.Fuser, eventBus bus.Bus, log *logger.Logger) (*Runner, error) {
	if cfg.TopK < 1 {
		return nil, errors.ValidationErrorf("top k must be positive, got %d", cfg.TopK)
	}
	if cfg.Workers < 1 {
		return nil, errors.ValidationErrorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if registry == nil {
		return nil, errors.ValidationError("registry is required")
	}
	if fuser == nil {
		return nil, errors.ValidationError("fuser is required")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = evaluation.StrategyMacro
	}
	if log == nil {
		log = logger.Default()
	}

	limit := rate.Inf
	if cfg.RetrieveRate > 0 {
		limit = rate.Limit(cfg.RetrieveRate)
	}

	return &Runner{
		cfg:      cfg,
		registry: registry,
		fuser:    fuser,
		bus:      eventBus,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
	}, nil
}

// Run evaluates a variant over every sample in the dataset and returns the
// completed report. Individual sample failures are recorded in the report
// rather than aborting the run; only context cancellation stops it early.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset, variant Variant) (*Report, error) {
	if ds == nil || len(ds.Samples) == 0 {
		return nil, errors.ValidationError("dataset has no samples")
	}
	if variant.Name == "" {
		return nil, errors.ValidationError("variant name cannot be empty")
	}
	if len(variant.Retrievers) == 0 {
		return nil, errors.ValidationError("variant has no retrievers")
	}

	startedAt := time.Now()
	runID := hash.RunID(ds.Name, variant.Name, startedAt.UnixMilli())
	log := r.log.WithRun(runID).WithVariant(variant.Name)

	log.Info("run started", "dataset", ds.Name, "samples", len(ds.Samples))
	r.publish(ctx, bus.TopicRunStarted, runID, map[string]any{
		"dataset": ds.Name,
		"variant": variant.Name,
		"samples": len(ds.Samples),
	})

	samples := make([]SampleResult, len(ds.Samples))
	scores := make([]evaluation.QueryScores, len(ds.Samples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i := range ds.Samples {
		g.Go(func() error {
			result, qs := r.evaluateSample(gctx, &ds.Samples[i], variant)
			samples[i] = result
			scores[i] = qs

			r.publish(gctx, bus.TopicSampleScored, runID, result)
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		r.publish(ctx, bus.TopicRunFailed, runID, map[string]any{"error": err.Error()})
		return nil, errors.Wrap(errors.CodeInternal, "run aborted", err)
	}

	report := buildReport(runID, ds.Name, variant.Name, startedAt, samples, scores, r.cfg.Strategy, r.registry.Names())

	log.Info("run completed",
		"duration_ms", report.CompletedAt.Sub(report.StartedAt).Milliseconds(),
		"failed", report.FailedCount)
	r.publish(ctx, bus.TopicRunCompleted, runID, report)

	return report, nil
}

// evaluateSample retrieves, fuses, and scores a single sample. Failures are
// folded into the result; they never abort the run.
func (r *Runner) evaluateSample(ctx context.Context, sample *dataset.Sample, variant Variant) (SampleResult, evaluation.QueryScores) {
	result := SampleResult{SampleID: sample.ID}

	fused, err := r.retrieve(ctx, sample.Query, variant.Retrievers)
	if err != nil {
		return r.failSample(result, fmt.Sprintf("retrieve: %v", err))
	}

	response := ""
	if variant.Responder != nil {
		response, err = variant.Responder.Respond(ctx, sample.Query, fused)
		if err != nil {
			return r.failSample(result, fmt.Sprintf("respond: %v", err))
		}
	}

	evalCtx := &evaluation.EvaluationContext{
		SampleID:            sample.ID,
		Query:               sample.Query,
		Response:            response,
		GroundTruth:         sample.ExpectedAnswer,
		RelevantDocumentIDs: sample.RelevantSet(),
		RetrievedDocuments:  fused,
	}

	result.Metrics = r.registry.CalculateAll(evalCtx)
	return result, queryScores(evalCtx, r.cfg.TopK)
}

// retrieve runs every retriever for the query and fuses the ranked lists.
func (r *Runner) retrieve(ctx context.Context, query string, retrievers []retrieval.Retriever) ([]retrieval.RankedResult, error) {
	resultSets := make([][]retrieval.RankedResult, len(retrievers))

	for i, ret := range retrievers {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		results, err := ret.Retrieve(ctx, query, r.cfg.TopK)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ret.Name(), err)
		}
		resultSets[i] = results
	}

	return r.fuser.Fuse(resultSets, r.cfg.TopK)
}

// failSample records a per-sample failure with NaN metric values so it is
// excluded from macro averages.
func (r *Runner) failSample(result SampleResult, message string) (SampleResult, evaluation.QueryScores) {
	result.Error = message
	result.Metrics = make([]evaluation.MetricResult, 0, len(r.registry.Names()))
	for _, name := range r.registry.Names() {
		result.Metrics = append(result.Metrics, evaluation.NewFailedResult(name, message))
	}
	return result, failedScores()
}

func (r *Runner) publish(ctx context.Context, topic, runID string, payload any) {
	if r.bus == nil {
		return
	}
	event := bus.NewEvent(hash.SHA256Short([]byte(fmt.Sprintf("%s:%s:%d", topic, runID, time.Now().UnixNano())), 16), topic, "runner", runID, payload)
	if err := r.bus.Publish(ctx, topic, event); err != nil {
		r.log.Warn("publish failed", "topic", topic, "error", err)
	}
}

// queryScores derives the counts and values micro/macro aggregation needs
// from a scored evaluation context.
func queryScores(evalCtx *evaluation.EvaluationContext, k int) evaluation.QueryScores {
	retrieved := evalCtx.RetrievedDocuments
	if len(retrieved) > k {
		retrieved = retrieved[:k]
	}

	hits := 0
	mrr := 0.0
	for i, doc := range evalCtx.RetrievedDocuments {
		if evalCtx.RelevantDocumentIDs[doc.DocumentID] {
			if i < k {
				hits++
			}
			if mrr == 0 {
				mrr = 1 / float64(i+1)
			}
		}
	}

	qs := evaluation.QueryScores{
		MRR:               mrr,
		RelevantRetrieved: hits,
		RetrievedCount:    len(retrieved),
		RelevantCount:     len(evalCtx.RelevantDocumentIDs),
	}
	if qs.RetrievedCount > 0 {
		qs.Precision = float64(hits) / float64(qs.RetrievedCount)
	}
	if qs.RelevantCount > 0 {
		qs.Recall = float64(hits) / float64(qs.RelevantCount)
	}
	qs.F1 = f1(qs.Precision, qs.Recall)
	return qs
}

func f1(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
