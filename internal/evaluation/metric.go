package evaluation

import (
	"github.com/ragbench/rag-bench/internal/pkg/errors"
)

// Metric is one scoring capability. Implementations are pure: Calculate
// only reads its argument, so a Metric may be used concurrently.
type Metric interface {
	// Name is the registry lookup key (e.g. "precision@5", "rouge1").
	Name() string

	// Description is a one-line human-readable summary.
	Description() string

	// Calculate scores a single sample. Degenerate inputs resolve to the
	// metric's documented sentinel; Calculate never returns an error.
	Calculate(ctx *EvaluationContext) MetricResult
}

// RegistryConfig controls which parameterized metrics a registry carries.
type RegistryConfig struct {
	// Ks are the cutoffs for precision/recall/F1 @K metrics.
	Ks []int

	// BleuN is the maximum n-gram order for BLEU (1..4).
	BleuN int
}

// DefaultRegistryConfig returns the standard metric set.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Ks:    []int{1, 3, 5, 10},
		BleuN: 4,
	}
}

// Registry holds the metric implementations in a stable order plus a
// name-based lookup.
type Registry struct {
	metrics []Metric
	byName  map[string]Metric
}

// NewRegistry builds a registry with retrieval metrics at each configured
// K cutoff and the full generation metric set.
func NewRegistry(cfg RegistryConfig) *Registry {
	if len(cfg.Ks) == 0 {
		cfg.Ks = DefaultRegistryConfig().Ks
	}
	if cfg.BleuN < 1 || cfg.BleuN > 4 {
		cfg.BleuN = DefaultRegistryConfig().BleuN
	}

	r := &Registry{byName: make(map[string]Metric)}

	for _, k := range cfg.Ks {
		r.register(&PrecisionAtK{K: k})
		r.register(&RecallAtK{K: k})
		r.register(&FBetaAtK{K: k, Beta: 1})
	}
	r.register(&MRR{})

	r.register(&ExactMatch{})
	r.register(&TokenF1{})
	r.register(&Rouge1{})
	r.register(&RougeL{})
	r.register(&Bleu{N: cfg.BleuN})

	return r
}

func (r *Registry) register(m Metric) {
	if _, exists := r.byName[m.Name()]; exists {
		return
	}
	r.metrics = append(r.metrics, m)
	r.byName[m.Name()] = m
}

// Metrics returns the registered metrics in registration order.
func (r *Registry) Metrics() []Metric {
	return r.metrics
}

// Names returns the registered metric names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.metrics))
	for i, m := range r.metrics {
		names[i] = m.Name()
	}
	return names
}

// Lookup returns the metric registered under name.
func (r *Registry) Lookup(name string) (Metric, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Calculate runs the named metric against the context. Unknown names are a
// caller error, not a degenerate computation.
func (r *Registry) Calculate(name string, ctx *EvaluationContext) (MetricResult, error) {
	m, ok := r.byName[name]
	if !ok {
		return MetricResult{}, errors.ValidationErrorf("unknown metric %q", name)
	}
	return m.Calculate(ctx), nil
}

// CalculateAll runs every registered metric against the context.
func (r *Registry) CalculateAll(ctx *EvaluationContext) []MetricResult {
	results := make([]MetricResult, len(r.metrics))
	for i, m := range r.metrics {
		results[i] = m.Calculate(ctx)
	}
	return results
}
