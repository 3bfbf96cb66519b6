package evaluation

import (
	"fmt"
	"math"

	"github.com/ragbench/rag-bench/internal/textutil"
)

// ExactMatch is 1.0 iff the normalized response equals the normalized
// ground truth, 0.0 otherwise, including when the ground truth is absent.
type ExactMatch struct{}

func (m *ExactMatch) Name() string { return "exact_match" }

func (m *ExactMatch) Description() string {
	return "Whether the normalized response exactly matches the ground truth"
}

func (m *ExactMatch) Calculate(ctx *EvaluationContext) MetricResult {
	if ctx.GroundTruth == "" {
		return NewResult(m.Name(), 0)
	}
	if textutil.Normalize(ctx.Response) == textutil.Normalize(ctx.GroundTruth) {
		return NewResult(m.Name(), 1)
	}
	return NewResult(m.Name(), 0)
}

// TokenF1 is the set-overlap F1 of normalized token sets. Two empty sets
// match vacuously (1.0); exactly one empty set scores 0.0.
type TokenF1 struct{}

func (m *TokenF1) Name() string { return "token_f1" }

func (m *TokenF1) Description() string {
	return "F1 overlap of normalized response and ground-truth token sets"
}

func (m *TokenF1) Calculate(ctx *EvaluationContext) MetricResult {
	candidate := tokenSet(textutil.Tokenize(ctx.Response))
	reference := tokenSet(textutil.Tokenize(ctx.GroundTruth))

	if len(candidate) == 0 && len(reference) == 0 {
		return NewResult(m.Name(), 1)
	}
	if len(candidate) == 0 || len(reference) == 0 {
		return NewResult(m.Name(), 0)
	}

	overlap := 0
	for token := range candidate {
		if reference[token] {
			overlap++
		}
	}

	p := float64(overlap) / float64(len(candidate))
	r := float64(overlap) / float64(len(reference))
	return NewResult(m.Name(), fBeta(p, r, 1))
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// Rouge1 is unigram multiset overlap with min-clipped counts: precision
// over the candidate length, recall over the reference length, combined
// as F1. Empty-set rules follow TokenF1.
type Rouge1 struct{}

func (m *Rouge1) Name() string { return "rouge1" }

func (m *Rouge1) Description() string {
	return "ROUGE-1 unigram overlap of response and ground truth"
}

func (m *Rouge1) Calculate(ctx *EvaluationContext) MetricResult {
	candidate := textutil.Tokenize(ctx.Response)
	reference := textutil.Tokenize(ctx.GroundTruth)

	if len(candidate) == 0 && len(reference) == 0 {
		return NewResult(m.Name(), 1)
	}
	if len(candidate) == 0 || len(reference) == 0 {
		return NewResult(m.Name(), 0)
	}

	overlap := textutil.OverlapCount(textutil.NGrams(candidate, 1), textutil.NGrams(reference, 1))
	p := float64(overlap) / float64(len(candidate))
	r := float64(overlap) / float64(len(reference))
	return NewResult(m.Name(), fBeta(p, r, 1))
}

// RougeL scores the longest common subsequence of the normalized token
// sequences: recall is LCS over the reference length, precision LCS over
// the candidate length, combined as F1. Empty-set rules follow TokenF1.
type RougeL struct{}

func (m *RougeL) Name() string { return "rougeL" }

func (m *RougeL) Description() string {
	return "ROUGE-L longest-common-subsequence overlap of response and ground truth"
}

func (m *RougeL) Calculate(ctx *EvaluationContext) MetricResult {
	candidate := textutil.Tokenize(ctx.Response)
	reference := textutil.Tokenize(ctx.GroundTruth)

	if len(candidate) == 0 && len(reference) == 0 {
		return NewResult(m.Name(), 1)
	}
	if len(candidate) == 0 || len(reference) == 0 {
		return NewResult(m.Name(), 0)
	}

	lcs := textutil.LCSLength(candidate, reference)
	p := float64(lcs) / float64(len(candidate))
	r := float64(lcs) / float64(len(reference))
	return NewResult(m.Name(), fBeta(p, r, 1))
}

// Bleu is the geometric mean of modified n-gram precisions for n=1..N,
// multiplied by the brevity penalty. Any zero precision forces the whole
// score to 0.0. Empty candidate or missing reference scores 0.0.
type Bleu struct {
	// N is the maximum n-gram order (1..4).
	N int
}

func (m *Bleu) Name() string { return fmt.Sprintf("bleu%d", m.N) }

func (m *Bleu) Description() string {
	return fmt.Sprintf("BLEU-%d n-gram precision of response against ground truth", m.N)
}

func (m *Bleu) Calculate(ctx *EvaluationContext) MetricResult {
	candidate := textutil.Tokenize(ctx.Response)
	reference := textutil.Tokenize(ctx.GroundTruth)

	if len(candidate) == 0 || len(reference) == 0 {
		return NewResult(m.Name(), 0)
	}

	logSum := 0.0
	for n := 1; n <= m.N; n++ {
		grams := textutil.NGrams(candidate, n)
		total := 0
		for _, count := range grams {
			total += count
		}
		if total == 0 {
			// Candidate shorter than n: no n-grams, precision is zero.
			return NewResult(m.Name(), 0)
		}

		overlap := textutil.OverlapCount(grams, textutil.NGrams(reference, n))
		if overlap == 0 {
			return NewResult(m.Name(), 0)
		}
		logSum += math.Log(float64(overlap) / float64(total))
	}

	score := math.Exp(logSum / float64(m.N))

	// Brevity penalty for candidates shorter than the reference.
	if len(candidate) < len(reference) {
		score *= math.Exp(1 - float64(len(reference))/float64(len(candidate)))
	}

	return NewResult(m.Name(), score)
}
