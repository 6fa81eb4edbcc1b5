// Package optimize drives many backtest runs across parameter grids and
// time windows and aggregates their results. It never runs the engine
// directly; callers supply a run function, so every combination owns its
// own portfolio and shares no state with the others.
package optimize

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"swingbt/analysis"
)

// Optimization metrics. Higher is always better; metrics where lower
// would win (drawdown) are deliberately not offered.
const (
	MetricTotalReturn  = "total_return"
	MetricSharpeRatio  = "sharpe_ratio"
	MetricProfitFactor = "profit_factor"
	MetricWinRate      = "win_rate"
)

// RunFunc executes one backtest with the given parameter values and
// returns its stats
type RunFunc func(params map[string]float64) (*analysis.Stats, error)

// Trial is one tested parameter combination
type Trial struct {
	Params map[string]float64 `json:"params"`
	Stats  *analysis.Stats    `json:"stats"`
	Score  float64            `json:"score"`
}

// SensitivityPoint reports the metric at one value of a single parameter
// while every other parameter is held at its best value
type SensitivityPoint struct {
	Value float64 `json:"value"`
	Score float64 `json:"score"`
}

// Result aggregates a full grid search
type Result struct {
	Success     bool                          `json:"success"`
	Error       string                        `json:"error,omitempty"`
	Metric      string                        `json:"metric"`
	Tested      int                           `json:"tested"`
	Best        *Trial                        `json:"best,omitempty"`
	Trials      []*Trial                      `json:"trials,omitempty"`
	Sensitivity map[string][]SensitivityPoint `json:"sensitivity,omitempty"`
}

// Optimizer enumerates the Cartesian product of parameter ranges and
// ranks each combination by the configured metric
type Optimizer struct {
	Ranges map[string][]float64
	Metric string
	// Parallel caps concurrent runs; 0 or 1 keeps execution sequential
	Parallel int

	run RunFunc
}

// NewOptimizer validates the metric and builds an optimizer around a run
// function
func NewOptimizer(ranges map[string][]float64, metric string, run RunFunc) (*Optimizer, error) {
	switch metric {
	case MetricTotalReturn, MetricSharpeRatio, MetricProfitFactor, MetricWinRate:
	default:
		return nil, fmt.Errorf("unknown optimization metric %q", metric)
	}
	if run == nil {
		return nil, fmt.Errorf("run function is required")
	}
	return &Optimizer{Ranges: ranges, Metric: metric, run: run}, nil
}

// Run tests every combination and returns the best one. Empty ranges are
// a successful empty result, not an error. Combinations whose run fails
// are logged and skipped.
func (o *Optimizer) Run(ctx context.Context) *Result {
	result := &Result{Metric: o.Metric}

	combos := o.combinations()
	if len(combos) == 0 {
		result.Success = true
		return result
	}

	trials := make([]*Trial, len(combos))
	if o.Parallel > 1 {
		o.runParallel(ctx, combos, trials)
	} else {
		o.runSequential(ctx, combos, trials)
	}

	for _, trial := range trials {
		if trial == nil {
			continue
		}
		result.Tested++
		result.Trials = append(result.Trials, trial)
		if result.Best == nil || trial.Score > result.Best.Score {
			result.Best = trial
		}
	}

	if result.Best == nil {
		result.Error = "all parameter combinations failed"
		return result
	}

	result.Sensitivity = o.sensitivity(result.Trials, result.Best)
	result.Success = true
	return result
}

func (o *Optimizer) runSequential(ctx context.Context, combos []map[string]float64, trials []*Trial) {
	for i, params := range combos {
		select {
		case <-ctx.Done():
			return
		default:
		}
		trials[i] = o.runOne(params)
	}
}

func (o *Optimizer) runParallel(ctx context.Context, combos []map[string]float64, trials []*Trial) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Parallel)

	var mu sync.Mutex
	for i, params := range combos {
		i, params := i, params
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			trial := o.runOne(params)
			mu.Lock()
			trials[i] = trial
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

func (o *Optimizer) runOne(params map[string]float64) *Trial {
	stats, err := o.run(params)
	if err != nil {
		log.Printf("Optimization run failed for %v: %v", params, err)
		return nil
	}
	return &Trial{
		Params: params,
		Stats:  stats,
		Score:  metricValue(stats, o.Metric),
	}
}

// combinations builds the Cartesian product in sorted parameter-name
// order so enumeration is deterministic
func (o *Optimizer) combinations() []map[string]float64 {
	names := make([]string, 0, len(o.Ranges))
	for name, values := range o.Ranges {
		if len(values) == 0 {
			return nil
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	combos := []map[string]float64{{}}
	for _, name := range names {
		var next []map[string]float64
		for _, combo := range combos {
			for _, value := range o.Ranges[name] {
				extended := make(map[string]float64, len(combo)+1)
				for k, v := range combo {
					extended[k] = v
				}
				extended[name] = value
				next = append(next, extended)
			}
		}
		combos = next
	}
	return combos
}

// sensitivity reports, for each parameter, the metric across its tested
// values with every other parameter pinned to the best combination
func (o *Optimizer) sensitivity(trials []*Trial, best *Trial) map[string][]SensitivityPoint {
	out := make(map[string][]SensitivityPoint, len(o.Ranges))

	for name := range o.Ranges {
		var points []SensitivityPoint
		for _, trial := range trials {
			if !matchesExcept(trial.Params, best.Params, name) {
				continue
			}
			points = append(points, SensitivityPoint{Value: trial.Params[name], Score: trial.Score})
		}
		sort.Slice(points, func(i, j int) bool { return points[i].Value < points[j].Value })
		out[name] = points
	}
	return out
}

func matchesExcept(params, reference map[string]float64, except string) bool {
	for name, value := range reference {
		if name == except {
			continue
		}
		if params[name] != value {
			return false
		}
	}
	return true
}

func metricValue(stats *analysis.Stats, metric string) float64 {
	if stats == nil {
		return 0
	}
	switch metric {
	case MetricSharpeRatio:
		return stats.SharpeRatio
	case MetricProfitFactor:
		return stats.ProfitFactor
	case MetricWinRate:
		return stats.WinRate
	default:
		return stats.TotalReturn
	}
}
