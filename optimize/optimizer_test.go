package optimize

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"swingbt/analysis"
)

// quadraticRun scores best at fast=10, slow=30
func quadraticRun(params map[string]float64) (*analysis.Stats, error) {
	fast, slow := params["fast"], params["slow"]
	score := 100 - (fast-10)*(fast-10) - (slow-30)*(slow-30)
	return &analysis.Stats{TotalReturn: score}, nil
}

func TestOptimizerFindsBestCombination(t *testing.T) {
	ranges := map[string][]float64{
		"fast": {5, 10, 15},
		"slow": {20, 30, 40},
	}
	opt, err := NewOptimizer(ranges, MetricTotalReturn, quadraticRun)
	if err != nil {
		t.Fatalf("NewOptimizer failed: %v", err)
	}

	result := opt.Run(context.Background())
	if !result.Success {
		t.Fatalf("optimization failed: %s", result.Error)
	}
	if result.Tested != 9 {
		t.Errorf("tested %d combinations, want 9", result.Tested)
	}
	if result.Best.Params["fast"] != 10 || result.Best.Params["slow"] != 30 {
		t.Errorf("best = %v, want fast=10 slow=30", result.Best.Params)
	}
	if result.Best.Score != 100 {
		t.Errorf("best score = %f, want 100", result.Best.Score)
	}
}

func TestOptimizerEmptyRanges(t *testing.T) {
	opt, err := NewOptimizer(nil, MetricTotalReturn, quadraticRun)
	if err != nil {
		t.Fatalf("NewOptimizer failed: %v", err)
	}

	result := opt.Run(context.Background())
	if !result.Success {
		t.Error("empty ranges must succeed trivially")
	}
	if result.Tested != 0 || result.Best != nil {
		t.Errorf("got tested=%d best=%v, want an empty result", result.Tested, result.Best)
	}
}

func TestOptimizerRejectsUnknownMetric(t *testing.T) {
	if _, err := NewOptimizer(nil, "max_drawdown", quadraticRun); err == nil {
		t.Error("unknown metric must be rejected")
	}
	if _, err := NewOptimizer(nil, MetricSharpeRatio, nil); err == nil {
		t.Error("nil run function must be rejected")
	}
}

func TestOptimizerSkipsFailedRuns(t *testing.T) {
	run := func(params map[string]float64) (*analysis.Stats, error) {
		if params["fast"] == 10 {
			return nil, fmt.Errorf("engine blew up")
		}
		return &analysis.Stats{TotalReturn: params["fast"]}, nil
	}
	opt, err := NewOptimizer(map[string][]float64{"fast": {5, 10, 15}}, MetricTotalReturn, run)
	if err != nil {
		t.Fatalf("NewOptimizer failed: %v", err)
	}

	result := opt.Run(context.Background())
	if !result.Success {
		t.Fatalf("optimization failed: %s", result.Error)
	}
	if result.Tested != 2 {
		t.Errorf("tested = %d, want 2 surviving runs", result.Tested)
	}
	if result.Best.Params["fast"] != 15 {
		t.Errorf("best = %v, want fast=15", result.Best.Params)
	}
}

func TestOptimizerAllRunsFailed(t *testing.T) {
	run := func(params map[string]float64) (*analysis.Stats, error) {
		return nil, fmt.Errorf("no data")
	}
	opt, err := NewOptimizer(map[string][]float64{"fast": {5, 10}}, MetricTotalReturn, run)
	if err != nil {
		t.Fatalf("NewOptimizer failed: %v", err)
	}

	result := opt.Run(context.Background())
	if result.Success {
		t.Error("optimization with zero surviving runs must fail")
	}
}

func TestOptimizerSensitivity(t *testing.T) {
	ranges := map[string][]float64{
		"fast": {5, 10, 15},
		"slow": {20, 30},
	}
	opt, err := NewOptimizer(ranges, MetricTotalReturn, quadraticRun)
	if err != nil {
		t.Fatalf("NewOptimizer failed: %v", err)
	}

	result := opt.Run(context.Background())
	if !result.Success {
		t.Fatalf("optimization failed: %s", result.Error)
	}

	fastCurve := result.Sensitivity["fast"]
	if len(fastCurve) != 3 {
		t.Fatalf("fast sensitivity has %d points, want 3 (slow held at 30)", len(fastCurve))
	}
	// Values come back sorted; the middle one is the optimum
	if fastCurve[0].Value != 5 || fastCurve[1].Value != 10 || fastCurve[2].Value != 15 {
		t.Errorf("fast values = %v", fastCurve)
	}
	if fastCurve[1].Score <= fastCurve[0].Score || fastCurve[1].Score <= fastCurve[2].Score {
		t.Errorf("fast=10 must score above its neighbors: %v", fastCurve)
	}

	slowCurve := result.Sensitivity["slow"]
	if len(slowCurve) != 2 {
		t.Fatalf("slow sensitivity has %d points, want 2 (fast held at 10)", len(slowCurve))
	}
}

func TestOptimizerParallelMatchesSequential(t *testing.T) {
	ranges := map[string][]float64{
		"fast": {1, 2, 3, 4, 5},
		"slow": {10, 20, 30},
	}
	var calls int
	var mu sync.Mutex
	run := func(params map[string]float64) (*analysis.Stats, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return quadraticRun(params)
	}

	seq, err := NewOptimizer(ranges, MetricTotalReturn, run)
	if err != nil {
		t.Fatalf("NewOptimizer failed: %v", err)
	}
	par, err := NewOptimizer(ranges, MetricTotalReturn, run)
	if err != nil {
		t.Fatalf("NewOptimizer failed: %v", err)
	}
	par.Parallel = 4

	a := seq.Run(context.Background())
	b := par.Run(context.Background())
	if !a.Success || !b.Success {
		t.Fatal("both runs must succeed")
	}
	if calls != 30 {
		t.Errorf("run function called %d times, want 30", calls)
	}
	if a.Best.Score != b.Best.Score {
		t.Errorf("parallel best %f differs from sequential %f", b.Best.Score, a.Best.Score)
	}
	for k, v := range a.Best.Params {
		if b.Best.Params[k] != v {
			t.Errorf("parallel best params %v differ from sequential %v", b.Best.Params, a.Best.Params)
			break
		}
	}
}

func TestOptimizerMetricSelection(t *testing.T) {
	stats := &analysis.Stats{TotalReturn: 1, SharpeRatio: 2, ProfitFactor: 3, WinRate: 4}
	tests := []struct {
		metric string
		want   float64
	}{
		{MetricTotalReturn, 1},
		{MetricSharpeRatio, 2},
		{MetricProfitFactor, 3},
		{MetricWinRate, 4},
	}
	for _, tt := range tests {
		if got := metricValue(stats, tt.metric); got != tt.want {
			t.Errorf("metricValue(%s) = %f, want %f", tt.metric, got, tt.want)
		}
	}
	if got := metricValue(nil, MetricTotalReturn); got != 0 {
		t.Errorf("nil stats must score 0, got %f", got)
	}
}
