package evaluation

import (
	"math"
	"testing"
)

func TestMacroAverage(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"simple mean", []float64{0.5, 0.7}, 0.6},
		{"excludes NaN instead of zeroing it", []float64{0.5, 0.7, math.NaN()}, 0.6},
		{"all NaN", []float64{math.NaN(), math.NaN()}, 0},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MacroAverage(tt.values); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MacroAverage(%v) = %f, want %f", tt.values, got, tt.want)
			}
		})
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	for _, strategy := range []Strategy{StrategyMacro, StrategyMicro} {
		got := Aggregate(nil, strategy)
		if got.QueryCount != 0 {
			t.Errorf("%s: QueryCount = %d, want 0", strategy, got.QueryCount)
		}
		if got.Precision != 0 || got.Recall != 0 || got.F1 != 0 || got.MRR != 0 {
			t.Errorf("%s: expected zero-valued result, got %+v", strategy, got)
		}
	}
}

func TestAggregate_Macro(t *testing.T) {
	samples := []QueryScores{
		{Precision: 1.0, Recall: 0.5, F1: 2.0 / 3.0, MRR: 1.0},
		{Precision: 0.5, Recall: 1.0, F1: 2.0 / 3.0, MRR: 0.5},
	}

	got := Aggregate(samples, StrategyMacro)
	if got.QueryCount != 2 {
		t.Errorf("QueryCount = %d, want 2", got.QueryCount)
	}
	if math.Abs(got.Precision-0.75) > 1e-9 {
		t.Errorf("Precision = %f, want 0.75", got.Precision)
	}
	if math.Abs(got.Recall-0.75) > 1e-9 {
		t.Errorf("Recall = %f, want 0.75", got.Recall)
	}
	if math.Abs(got.MRR-0.75) > 1e-9 {
		t.Errorf("MRR = %f, want 0.75", got.MRR)
	}
}

func TestAggregate_MacroSkipsFailedQueries(t *testing.T) {
	samples := []QueryScores{
		{Precision: 0.5, Recall: 0.5, F1: 0.5, MRR: 0.5},
		{Precision: 0.7, Recall: 0.7, F1: 0.7, MRR: 0.7},
		{Precision: math.NaN(), Recall: math.NaN(), F1: math.NaN(), MRR: math.NaN()},
	}

	got := Aggregate(samples, StrategyMacro)
	if got.QueryCount != 3 {
		t.Errorf("QueryCount = %d, want 3", got.QueryCount)
	}
	for name, v := range map[string]float64{
		"precision": got.Precision, "recall": got.Recall, "f1": got.F1, "mrr": got.MRR,
	} {
		if math.Abs(v-0.6) > 1e-9 {
			t.Errorf("%s = %f, want 0.6", name, v)
		}
	}
}

func TestAggregate_Micro(t *testing.T) {
	// Query 1: 1 relevant-retrieved of 10 retrieved, 1 relevant total.
	// Query 2: 4 relevant-retrieved of 10 retrieved, 9 relevant total.
	samples := []QueryScores{
		{RelevantRetrieved: 1, RetrievedCount: 10, RelevantCount: 1, MRR: 1.0},
		{RelevantRetrieved: 4, RetrievedCount: 10, RelevantCount: 9, MRR: 0.5},
	}

	got := Aggregate(samples, StrategyMicro)

	wantP := 5.0 / 20.0
	wantR := 5.0 / 10.0
	wantF1 := 2 * wantP * wantR / (wantP + wantR)

	if math.Abs(got.Precision-wantP) > 1e-9 {
		t.Errorf("Precision = %f, want %f", got.Precision, wantP)
	}
	if math.Abs(got.Recall-wantR) > 1e-9 {
		t.Errorf("Recall = %f, want %f", got.Recall, wantR)
	}
	if math.Abs(got.F1-wantF1) > 1e-9 {
		t.Errorf("F1 = %f, want %f", got.F1, wantF1)
	}

	// MRR stays macro-averaged even under the micro strategy.
	if math.Abs(got.MRR-0.75) > 1e-9 {
		t.Errorf("MRR = %f, want 0.75", got.MRR)
	}
}

func TestAggregate_MicroZeroDenominators(t *testing.T) {
	samples := []QueryScores{
		{RelevantRetrieved: 0, RetrievedCount: 0, RelevantCount: 0, MRR: 0},
	}

	got := Aggregate(samples, StrategyMicro)
	if got.Precision != 0 || got.Recall != 0 || got.F1 != 0 {
		t.Errorf("expected zero-valued micro result, got %+v", got)
	}
}
