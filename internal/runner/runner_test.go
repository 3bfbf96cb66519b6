package runner

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ragbench/rag-bench/internal/bus"
	"github.com/ragbench/rag-bench/internal/dataset"
	"github.com/ragbench/rag-bench/internal/evaluation"
	"github.com/ragbench/rag-bench/internal/retrieval"
	"github.com/ragbench/rag-bench/internal/retrieval/fusion"
)

type fakeRetriever struct {
	name    string
	results map[string][]retrieval.RankedResult
	failOn  string
}

func (f *fakeRetriever) Name() string { return f.name }

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.RankedResult, error) {
	if query == f.failOn {
		return nil, fmt.Errorf("backend down")
	}
	return f.results[query], nil
}

type echoResponder struct {
	answers map[string]string
}

func (e *echoResponder) Respond(ctx context.Context, query string, docs []retrieval.RankedResult) (string, error) {
	return e.answers[query], nil
}

func newTestRunner(t *testing.T, cfg Config, eventBus bus.Bus) *Runner {
	t.Helper()

	registry := evaluation.NewRegistry(evaluation.RegistryConfig{Ks: []int{3}, BleuN: 2})
	fuser, err := fusion.NewFuser(fusion.DefaultK)
	if err != nil {
		t.Fatal(err)
	}

	r, err := New(cfg, registry, fuser, eventBus, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func testDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Name: "mini",
		Samples: []dataset.Sample{
			{ID: "s1", Query: "first question", ExpectedAnswer: "paris", RelevantDocumentIDs: []string{"d1"}},
			{ID: "s2", Query: "second question", ExpectedAnswer: "london", RelevantDocumentIDs: []string{"d9"}},
		},
	}
}

func TestRunner_Run(t *testing.T) {
	ret := &fakeRetriever{
		name: "dense",
		results: map[string][]retrieval.RankedResult{
			"first question":  {{DocumentID: "d1", Score: 0.9}, {DocumentID: "d2", Score: 0.8}},
			"second question": {{DocumentID: "d2", Score: 0.7}},
		},
	}
	variant := Variant{
		Name:       "dense-only",
		Retrievers: []retrieval.Retriever{ret},
		Responder:  &echoResponder{answers: map[string]string{"first question": "Paris", "second question": "berlin"}},
	}

	r := newTestRunner(t, Config{TopK: 3, Workers: 2}, nil)

	report, err := r.Run(context.Background(), testDataset(), variant)
	if err != nil {
		t.Fatal(err)
	}

	if report.Dataset != "mini" || report.Variant != "dense-only" {
		t.Errorf("report identity = %s/%s", report.Dataset, report.Variant)
	}
	if report.RunID == "" {
		t.Error("report has no run ID")
	}
	if report.FailedCount != 0 {
		t.Errorf("FailedCount = %d, want 0", report.FailedCount)
	}
	if len(report.Samples) != 2 || report.Samples[0].SampleID != "s1" || report.Samples[1].SampleID != "s2" {
		t.Errorf("samples out of order: %+v", report.Samples)
	}

	// s1: d1 relevant at rank 1 of 2 retrieved; s2: nothing relevant.
	agg := report.Aggregate
	if math.Abs(agg.Precision-0.25) > 1e-9 {
		t.Errorf("Precision = %v, want 0.25", agg.Precision)
	}
	if math.Abs(agg.Recall-0.5) > 1e-9 {
		t.Errorf("Recall = %v, want 0.5", agg.Recall)
	}
	if math.Abs(agg.MRR-0.5) > 1e-9 {
		t.Errorf("MRR = %v, want 0.5", agg.MRR)
	}
	if agg.QueryCount != 2 {
		t.Errorf("QueryCount = %d, want 2", agg.QueryCount)
	}

	// "Paris" matches "paris" after normalization; "berlin" never matches.
	if got := report.Metrics["exact_match"]; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("exact_match = %v, want 0.5", got)
	}
	if got := report.Metrics["mrr"]; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("mrr = %v, want 0.5", got)
	}
}

func TestRunner_Run_SampleFailure(t *testing.T) {
	ret := &fakeRetriever{
		name: "flaky",
		results: map[string][]retrieval.RankedResult{
			"first question": {{DocumentID: "d1", Score: 0.9}},
		},
		failOn: "second question",
	}
	variant := Variant{Name: "flaky-only", Retrievers: []retrieval.Retriever{ret}}

	r := newTestRunner(t, Config{TopK: 3, Workers: 1}, nil)

	report, err := r.Run(context.Background(), testDataset(), variant)
	if err != nil {
		t.Fatal(err)
	}

	if report.FailedCount != 1 {
		t.Fatalf("FailedCount = %d, want 1", report.FailedCount)
	}
	if report.Samples[1].Error == "" {
		t.Error("failed sample should carry an error message")
	}
	for _, m := range report.Samples[1].Metrics {
		if m.Success || !math.IsNaN(m.Value) {
			t.Errorf("failed sample metric %s = %+v, want NaN failure", m.Name, m)
		}
	}

	// The failed sample is excluded from the rollup, not counted as zero.
	if report.Aggregate.QueryCount != 1 {
		t.Errorf("QueryCount = %d, want 1", report.Aggregate.QueryCount)
	}
	if math.Abs(report.Aggregate.Recall-1.0) > 1e-9 {
		t.Errorf("Recall = %v, want 1.0", report.Aggregate.Recall)
	}
}

func TestRunner_Run_PublishesEvents(t *testing.T) {
	eventBus := bus.NewMemoryBus()
	defer eventBus.Close()

	var started, scored, completed atomic.Int64
	ctx := context.Background()

	count := func(counter *atomic.Int64) bus.Handler {
		return func(ctx context.Context, event bus.Event) error {
			counter.Add(1)
			return nil
		}
	}
	if err := eventBus.Subscribe(ctx, bus.TopicRunStarted, count(&started)); err != nil {
		t.Fatal(err)
	}
	if err := eventBus.Subscribe(ctx, bus.TopicSampleScored, count(&scored)); err != nil {
		t.Fatal(err)
	}
	if err := eventBus.Subscribe(ctx, bus.TopicRunCompleted, count(&completed)); err != nil {
		t.Fatal(err)
	}

	ret := &fakeRetriever{
		name: "dense",
		results: map[string][]retrieval.RankedResult{
			"first question":  {{DocumentID: "d1", Score: 0.9}},
			"second question": {{DocumentID: "d9", Score: 0.8}},
		},
	}

	r := newTestRunner(t, Config{TopK: 3, Workers: 2}, eventBus)
	if _, err := r.Run(ctx, testDataset(), Variant{Name: "dense", Retrievers: []retrieval.Retriever{ret}}); err != nil {
		t.Fatal(err)
	}

	if !eventBus.DrainTimeout(time.Second) {
		t.Fatal("bus did not drain")
	}
	if started.Load() != 1 || scored.Load() != 2 || completed.Load() != 1 {
		t.Errorf("events started=%d scored=%d completed=%d, want 1/2/1",
			started.Load(), scored.Load(), completed.Load())
	}
}

func TestRunner_Run_Validation(t *testing.T) {
	r := newTestRunner(t, Config{TopK: 3, Workers: 1}, nil)
	ret := &fakeRetriever{name: "dense"}
	ctx := context.Background()

	if _, err := r.Run(ctx, &dataset.Dataset{Name: "empty"}, Variant{Name: "v", Retrievers: []retrieval.Retriever{ret}}); err == nil {
		t.Error("empty dataset should fail")
	}
	if _, err := r.Run(ctx, testDataset(), Variant{Retrievers: []retrieval.Retriever{ret}}); err == nil {
		t.Error("unnamed variant should fail")
	}
	if _, err := r.Run(ctx, testDataset(), Variant{Name: "v"}); err == nil {
		t.Error("variant without retrievers should fail")
	}
}

func TestNew_Validation(t *testing.T) {
	registry := evaluation.NewRegistry(evaluation.DefaultRegistryConfig())
	fuser, _ := fusion.NewFuser(fusion.DefaultK)

	if _, err := New(Config{TopK: 0, Workers: 1}, registry, fuser, nil, nil); err == nil {
		t.Error("zero top k should fail")
	}
	if _, err := New(Config{TopK: 5, Workers: 0}, registry, fuser, nil, nil); err == nil {
		t.Error("zero workers should fail")
	}
	if _, err := New(Config{TopK: 5, Workers: 1}, nil, fuser, nil, nil); err == nil {
		t.Error("nil registry should fail")
	}
	if _, err := New(Config{TopK: 5, Workers: 1}, registry, nil, nil, nil); err == nil {
		t.Error("nil fuser should fail")
	}
}

func TestReport_MetricValues(t *testing.T) {
	report := &Report{
		Samples: []SampleResult{
			{SampleID: "s1", Metrics: []evaluation.MetricResult{evaluation.NewResult("mrr", 1.0)}},
			{SampleID: "s2", Error: "retrieve: backend down", Metrics: []evaluation.MetricResult{evaluation.NewFailedResult("mrr", "backend down")}},
			{SampleID: "s3", Metrics: []evaluation.MetricResult{evaluation.NewResult("mrr", 0.5)}},
		},
	}

	values := report.MetricValues("mrr")
	if len(values) != 3 {
		t.Fatalf("len = %d, want 3", len(values))
	}
	if values[0] != 1.0 || !math.IsNaN(values[1]) || values[2] != 0.5 {
		t.Errorf("values = %v, want [1 NaN 0.5]", values)
	}
}
