package evaluation

import (
	"testing"

	"github.com/ragbench/rag-bench/internal/pkg/errors"
)

func TestNewRegistry_DefaultSet(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	wantNames := []string{
		"precision@1", "recall@1", "f1@1",
		"precision@3", "recall@3", "f1@3",
		"precision@5", "recall@5", "f1@5",
		"precision@10", "recall@10", "f1@10",
		"mrr",
		"exact_match", "token_f1", "rouge1", "rougeL", "bleu4",
	}

	names := r.Names()
	if len(names) != len(wantNames) {
		t.Fatalf("registry has %d metrics, want %d: %v", len(names), len(wantNames), names)
	}
	for i, want := range wantNames {
		if names[i] != want {
			t.Errorf("metric %d = %s, want %s", i, names[i], want)
		}
	}
}

func TestRegistry_Calculate(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	ctx := EvaluationContext{
		Response:    "hello world",
		GroundTruth: "hello world",
	}

	res, err := r.Calculate("exact_match", &ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Value != 1 {
		t.Errorf("exact_match = %f, want 1", res.Value)
	}
}

func TestRegistry_CalculateUnknownMetric(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	if _, err := r.Calculate("ndcg@10", &EvaluationContext{}); !errors.IsValidation(err) {
		t.Errorf("unknown metric error = %v, want validation error", err)
	}
}

func TestRegistry_CalculateAll(t *testing.T) {
	r := NewRegistry(RegistryConfig{Ks: []int{5}, BleuN: 2})

	ctx := EvaluationContext{
		Response:    "the cat sat",
		GroundTruth: "the cat sat",
	}

	results := r.CalculateAll(&ctx)
	if len(results) != len(r.Metrics()) {
		t.Fatalf("got %d results, want %d", len(results), len(r.Metrics()))
	}

	byName := make(map[string]MetricResult)
	for _, res := range results {
		byName[res.Name] = res
	}
	if byName["bleu2"].Value != 1 {
		t.Errorf("bleu2 = %f, want 1", byName["bleu2"].Value)
	}
	// No relevance data: retrieval metrics resolve to their sentinels.
	if byName["precision@5"].Value != 0 || !byName["precision@5"].Success {
		t.Errorf("precision@5 = %+v, want successful 0", byName["precision@5"])
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	m, ok := r.Lookup("rougeL")
	if !ok {
		t.Fatal("rougeL not found")
	}
	if m.Description() == "" {
		t.Error("metric description should not be empty")
	}

	if _, ok := r.Lookup("nope"); ok {
		t.Error("Lookup should miss for unregistered names")
	}
}

func TestRegistry_InvalidConfigFallsBack(t *testing.T) {
	r := NewRegistry(RegistryConfig{Ks: nil, BleuN: 9})

	if _, ok := r.Lookup("bleu4"); !ok {
		t.Error("out-of-range BleuN should fall back to bleu4")
	}
	if _, ok := r.Lookup("precision@5"); !ok {
		t.Error("empty Ks should fall back to the default cutoffs")
	}
}
