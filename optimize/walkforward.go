package optimize

import (
	"context"
	"fmt"
	"log"
	"time"

	"swingbt/analysis"
)

// ErrNoWindows is the failure reported when the date range cannot hold a
// single in-sample/out-of-sample pair
const ErrNoWindows = "No valid windows generated"

// WindowMode selects how the in-sample span grows between windows
type WindowMode string

const (
	// WindowSliding keeps the in-sample span a fixed size
	WindowSliding WindowMode = "sliding"
	// WindowExpanding anchors the in-sample start at the range start
	WindowExpanding WindowMode = "expanding"
)

// Window is one in-sample/out-of-sample pair
type Window struct {
	InSampleFrom    time.Time `json:"in_sample_from"`
	InSampleTo      time.Time `json:"in_sample_to"`
	OutOfSampleFrom time.Time `json:"out_of_sample_from"`
	OutOfSampleTo   time.Time `json:"out_of_sample_to"`
}

// WindowRunFunc executes one backtest over the given date range
type WindowRunFunc func(from, to time.Time) (*analysis.Stats, error)

// WindowResult carries both halves of one evaluated window
type WindowResult struct {
	Window      Window          `json:"window"`
	InSample    *analysis.Stats `json:"in_sample"`
	OutOfSample *analysis.Stats `json:"out_of_sample"`
}

// WalkForwardResult aggregates out-of-sample metrics across windows
type WalkForwardResult struct {
	Success          bool            `json:"success"`
	Error            string          `json:"error,omitempty"`
	Windows          []*WindowResult `json:"windows,omitempty"`
	MeanReturn       float64         `json:"mean_return"`
	MeanSharpe       float64         `json:"mean_sharpe"`
	MeanWinRate      float64         `json:"mean_win_rate"`
	MeanProfitFactor float64         `json:"mean_profit_factor"`
}

// WalkForward splits a date range into in-sample and out-of-sample
// windows and evaluates each pair independently
type WalkForward struct {
	From            time.Time
	To              time.Time
	InSampleDays    int
	OutOfSampleDays int
	Mode            WindowMode
}

// NewWalkForward validates the window sizes and date range
func NewWalkForward(from, to time.Time, inSampleDays, outOfSampleDays int, mode WindowMode) (*WalkForward, error) {
	if inSampleDays <= 0 || outOfSampleDays <= 0 {
		return nil, fmt.Errorf("window sizes must be positive, got in=%d out=%d", inSampleDays, outOfSampleDays)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("from %s must precede to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	if mode == "" {
		mode = WindowSliding
	}
	if mode != WindowSliding && mode != WindowExpanding {
		return nil, fmt.Errorf("unknown window mode %q", mode)
	}
	return &WalkForward{From: from, To: to, InSampleDays: inSampleDays, OutOfSampleDays: outOfSampleDays, Mode: mode}, nil
}

// Partition generates the window pairs. Each window advances by the
// out-of-sample span; a range shorter than one full pair yields nil.
func (w *WalkForward) Partition() []Window {
	var windows []Window

	isFrom := w.From
	isTo := w.From.AddDate(0, 0, w.InSampleDays)
	for {
		oosTo := isTo.AddDate(0, 0, w.OutOfSampleDays)
		if oosTo.After(w.To) {
			break
		}
		windows = append(windows, Window{
			InSampleFrom:    isFrom,
			InSampleTo:      isTo,
			OutOfSampleFrom: isTo,
			OutOfSampleTo:   oosTo,
		})

		isTo = oosTo
		if w.Mode == WindowSliding {
			isFrom = isTo.AddDate(0, 0, -w.InSampleDays)
		}
	}
	return windows
}

// Run evaluates every window and averages the out-of-sample metrics.
// A window whose backtest fails is skipped, not fatal; zero surviving
// windows is the reported failure.
func (w *WalkForward) Run(ctx context.Context, run WindowRunFunc) *WalkForwardResult {
	result := &WalkForwardResult{}

	windows := w.Partition()
	if len(windows) == 0 {
		result.Error = ErrNoWindows
		return result
	}

	for _, window := range windows {
		select {
		case <-ctx.Done():
			result.Error = ctx.Err().Error()
			return result
		default:
		}

		inStats, err := run(window.InSampleFrom, window.InSampleTo)
		if err != nil {
			log.Printf("Skipping window %s..%s: in-sample run failed: %v",
				window.InSampleFrom.Format("2006-01-02"), window.OutOfSampleTo.Format("2006-01-02"), err)
			continue
		}
		oosStats, err := run(window.OutOfSampleFrom, window.OutOfSampleTo)
		if err != nil {
			log.Printf("Skipping window %s..%s: out-of-sample run failed: %v",
				window.InSampleFrom.Format("2006-01-02"), window.OutOfSampleTo.Format("2006-01-02"), err)
			continue
		}

		result.Windows = append(result.Windows, &WindowResult{
			Window:      window,
			InSample:    inStats,
			OutOfSample: oosStats,
		})
	}

	if len(result.Windows) == 0 {
		result.Error = ErrNoWindows
		return result
	}

	n := float64(len(result.Windows))
	for _, wr := range result.Windows {
		result.MeanReturn += wr.OutOfSample.TotalReturn / n
		result.MeanSharpe += wr.OutOfSample.SharpeRatio / n
		result.MeanWinRate += wr.OutOfSample.WinRate / n
		result.MeanProfitFactor += wr.OutOfSample.ProfitFactor / n
	}
	result.Success = true
	return result
}
