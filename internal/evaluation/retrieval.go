package evaluation

import "fmt"

// relevantInTopK counts relevant documents among the first k retrieved.
func relevantInTopK(ctx *EvaluationContext, k int) int {
	if k > len(ctx.RetrievedDocuments) {
		k = len(ctx.RetrievedDocuments)
	}

	hits := 0
	for _, r := range ctx.RetrievedDocuments[:k] {
		if ctx.RelevantDocumentIDs[r.DocumentID] {
			hits++
		}
	}
	return hits
}

// PrecisionAtK is the fraction of the top-K retrieved documents that are
// relevant. The denominator is min(K, retrieved count) so short result
// lists are not penalized for positions they never filled.
type PrecisionAtK struct {
	K int
}

func (m *PrecisionAtK) Name() string { return fmt.Sprintf("precision@%d", m.K) }

func (m *PrecisionAtK) Description() string {
	return fmt.Sprintf("Fraction of the top %d retrieved documents that are relevant", m.K)
}

func (m *PrecisionAtK) Calculate(ctx *EvaluationContext) MetricResult {
	if len(ctx.RetrievedDocuments) == 0 || len(ctx.RelevantDocumentIDs) == 0 {
		return NewResult(m.Name(), 0)
	}

	denom := m.K
	if len(ctx.RetrievedDocuments) < denom {
		denom = len(ctx.RetrievedDocuments)
	}

	return NewResult(m.Name(), float64(relevantInTopK(ctx, m.K))/float64(denom))
}

// RecallAtK is the fraction of all relevant documents found in the top K.
type RecallAtK struct {
	K int
}

func (m *RecallAtK) Name() string { return fmt.Sprintf("recall@%d", m.K) }

func (m *RecallAtK) Description() string {
	return fmt.Sprintf("Fraction of relevant documents found in the top %d results", m.K)
}

func (m *RecallAtK) Calculate(ctx *EvaluationContext) MetricResult {
	if len(ctx.RelevantDocumentIDs) == 0 {
		return NewResult(m.Name(), 0)
	}

	return NewResult(m.Name(), float64(relevantInTopK(ctx, m.K))/float64(len(ctx.RelevantDocumentIDs)))
}

// FBetaAtK combines precision@K and recall@K. Beta=1 is the harmonic mean.
type FBetaAtK struct {
	K    int
	Beta float64
}

func (m *FBetaAtK) Name() string {
	if m.Beta == 1 {
		return fmt.Sprintf("f1@%d", m.K)
	}
	return fmt.Sprintf("f%g@%d", m.Beta, m.K)
}

func (m *FBetaAtK) Description() string {
	return fmt.Sprintf("F-beta (beta=%g) of precision and recall at %d", m.Beta, m.K)
}

func (m *FBetaAtK) Calculate(ctx *EvaluationContext) MetricResult {
	p := (&PrecisionAtK{K: m.K}).Calculate(ctx).Value
	r := (&RecallAtK{K: m.K}).Calculate(ctx).Value
	return NewResult(m.Name(), fBeta(p, r, m.Beta))
}

// fBeta combines a precision/recall pair; 0 when both are 0.
func fBeta(p, r, beta float64) float64 {
	if p+r == 0 {
		return 0
	}
	b2 := beta * beta
	denom := b2*p + r
	if denom == 0 {
		return 0
	}
	return (1 + b2) * p * r / denom
}

// MRR is the reciprocal rank of the first relevant document over the full
// retrieved sequence, not capped at any K.
type MRR struct{}

func (m *MRR) Name() string { return "mrr" }

func (m *MRR) Description() string {
	return "Reciprocal rank of the first relevant retrieved document"
}

func (m *MRR) Calculate(ctx *EvaluationContext) MetricResult {
	if len(ctx.RetrievedDocuments) == 0 || len(ctx.RelevantDocumentIDs) == 0 {
		return NewResult(m.Name(), 0)
	}

	for i, r := range ctx.RetrievedDocuments {
		if ctx.RelevantDocumentIDs[r.DocumentID] {
			return NewResult(m.Name(), 1.0/float64(i+1))
		}
	}
	return NewResult(m.Name(), 0)
}
