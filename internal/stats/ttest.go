// Package stats provides the paired significance testing used to compare
// two retrieval or generation configurations.
package stats

import (
	"math"

	"github.com/ragbench/rag-bench/internal/pkg/errors"
)

// SignificanceLevel is the two-tailed alpha for declaring significance.
const SignificanceLevel = 0.05

// normalApproxDF is the degrees-of-freedom threshold above which the
// Student-t CDF is approximated with the standard normal CDF.
const normalApproxDF = 30

// TTestResult holds the outcome of a paired two-sample t-test.
type TTestResult struct {
	TStatistic    float64 `json:"t_statistic"`
	PValue        float64 `json:"p_value"`
	DegreesOfFree int     `json:"degrees_of_freedom"`
	MeanDiff      float64 `json:"mean_diff"`
	StdDev        float64 `json:"std_dev"`
	IsSignificant bool    `json:"is_significant"`
}

// PairedTTest runs a paired two-sample t-test on matched measurement
// sequences. Samples must have equal length and at least two pairs.
//
// Zero variance is a degenerate computation, not an error: identical
// samples yield t=0 and p=1; a constant non-zero difference yields p=0.
func PairedTTest(sampleA, sampleB []float64) (*TTestResult, error) {
	if len(sampleA) != len(sampleB) {
		return nil, errors.ValidationErrorf(
			"paired samples must have equal length, got %d and %d", len(sampleA), len(sampleB))
	}
	if len(sampleA) < 2 {
		return nil, errors.ValidationErrorf(
			"paired t-test requires at least 2 pairs, got %d", len(sampleA))
	}

	n := len(sampleA)
	diffs := make([]float64, n)
	for i := range sampleA {
		diffs[i] = sampleA[i] - sampleB[i]
	}

	mean := 0.0
	for _, d := range diffs {
		mean += d
	}
	mean /= float64(n)

	variance := 0.0
	for _, d := range diffs {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(n - 1) // Sample variance.
	stdDev := math.Sqrt(variance)

	df := n - 1
	result := &TTestResult{
		DegreesOfFree: df,
		MeanDiff:      mean,
		StdDev:        stdDev,
	}

	if stdDev == 0 {
		if mean == 0 {
			result.TStatistic = 0
			result.PValue = 1
			return result, nil
		}
		// Every pair differs by the same non-zero amount.
		result.TStatistic = math.Inf(sign(mean))
		result.PValue = 0
		result.IsSignificant = true
		return result, nil
	}

	result.TStatistic = mean / (stdDev / math.Sqrt(float64(n)))
	result.PValue = twoTailedPValue(math.Abs(result.TStatistic), float64(df))
	result.IsSignificant = result.PValue < SignificanceLevel
	return result, nil
}

func sign(x float64) int {
	if x < 0 {
		return -1
	}
	return 1
}

// twoTailedPValue converts |t| to a two-tailed p-value under the Student-t
// distribution with df degrees of freedom.
func twoTailedPValue(absT, df float64) float64 {
	if df <= normalApproxDF {
		// P(|T| > t) = I_{df/(df+t²)}(df/2, 1/2).
		x := df / (df + absT*absT)
		return regularizedIncompleteBeta(df/2, 0.5, x)
	}
	return 2 * (1 - normalCDF(absT))
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + erf(x/math.Sqrt2))
}

// erf approximates the error function (Abramowitz & Stegun 7.1.26,
// maximum absolute error 1.5e-7).
func erf(x float64) float64 {
	negative := x < 0
	if negative {
		x = -x
	}

	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	t := 1 / (1 + p*x)
	y := 1 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	if negative {
		return -y
	}
	return y
}

// regularizedIncompleteBeta computes I_x(a, b) by the continued-fraction
// expansion (Lentz's method), using the symmetry relation to keep the
// fraction in its fast-converging region.
func regularizedIncompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	// ln of the prefactor x^a (1-x)^b / (a B(a,b)).
	lnPrefix := lgamma(a+b) - lgamma(a) - lgamma(b) +
		a*math.Log(x) + b*math.Log(1-x)

	if x < (a+1)/(a+b+2) {
		return math.Exp(lnPrefix) * betaContinuedFraction(a, b, x) / a
	}
	return 1 - math.Exp(lnPrefix)*betaContinuedFraction(b, a, 1-x)/b
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// betaContinuedFraction evaluates the continued fraction for the
// incomplete beta function by the modified Lentz algorithm.
func betaContinuedFraction(a, b, x float64) float64 {
	const (
		maxIterations = 200
		epsilon       = 1e-14
		tiny          = 1e-30
	)

	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for i := 1; i <= maxIterations; i++ {
		m := float64(i)
		m2 := 2 * m

		// Even step.
		aa := m * (b - m) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		// Odd step.
		aa = -(a + m) * (qab + m) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		delta := d * c
		h *= delta

		if math.Abs(delta-1) < epsilon {
			break
		}
	}

	return h
}
