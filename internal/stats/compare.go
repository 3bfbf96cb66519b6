package stats

// ComparisonResult is the A/B verdict for one metric across two variants.
type ComparisonResult struct {
	VariantA      string  `json:"variant_a"`
	VariantB      string  `json:"variant_b"`
	Metric        string  `json:"metric"`
	TStatistic    float64 `json:"t_statistic"`
	PValue        float64 `json:"p_value"`
	IsSignificant bool    `json:"is_significant"`

	// EffectSize is Cohen's d for paired samples: mean difference over the
	// standard deviation of the differences. 0 when the variance is zero.
	EffectSize float64 `json:"effect_size"`
}

// Compare runs a paired t-test of variantA against variantB on matched
// per-query values of the named metric.
func Compare(variantA, variantB, metric string, samplesA, samplesB []float64) (*ComparisonResult, error) {
	test, err := PairedTTest(samplesA, samplesB)
	if err != nil {
		return nil, err
	}

	effectSize := 0.0
	if test.StdDev > 0 {
		effectSize = test.MeanDiff / test.StdDev
	}

	return &ComparisonResult{
		VariantA:      variantA,
		VariantB:      variantB,
		Metric:        metric,
		TStatistic:    test.TStatistic,
		PValue:        test.PValue,
		IsSignificant: test.IsSignificant,
		EffectSize:    effectSize,
	}, nil
}

// ImprovementPercentage is the relative gain of treatment over baseline,
// in percent. 0 when the baseline is 0.
func ImprovementPercentage(baseline, treatment float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (treatment - baseline) / baseline * 100
}

// SignificanceIndicator maps a p-value to the conventional star notation.
func SignificanceIndicator(pValue float64) string {
	switch {
	case pValue < 0.001:
		return "***"
	case pValue < 0.01:
		return "**"
	case pValue < 0.05:
		return "*"
	default:
		return ""
	}
}
