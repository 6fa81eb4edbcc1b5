package optimize

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"swingbt/analysis"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWalkForwardPartitionSliding(t *testing.T) {
	wf, err := NewWalkForward(date(2024, 1, 1), date(2024, 4, 1), 30, 15, WindowSliding)
	if err != nil {
		t.Fatalf("NewWalkForward failed: %v", err)
	}

	windows := wf.Partition()
	// 91 days total: out-of-sample spans end on Feb 15, Mar 1, Mar 16
	// and Mar 31; a fifth pair would run past the range
	if len(windows) != 4 {
		t.Fatalf("got %d windows, want 4", len(windows))
	}

	first := windows[0]
	if !first.InSampleFrom.Equal(date(2024, 1, 1)) || !first.InSampleTo.Equal(date(2024, 1, 31)) {
		t.Errorf("first in-sample = %s..%s", first.InSampleFrom, first.InSampleTo)
	}
	if !first.OutOfSampleFrom.Equal(date(2024, 1, 31)) || !first.OutOfSampleTo.Equal(date(2024, 2, 15)) {
		t.Errorf("first out-of-sample = %s..%s", first.OutOfSampleFrom, first.OutOfSampleTo)
	}

	for i, w := range windows {
		span := w.InSampleTo.Sub(w.InSampleFrom).Hours() / 24
		if span != 30 {
			t.Errorf("window %d in-sample span = %.0f days, want fixed 30", i, span)
		}
	}
	// Consecutive windows advance by the out-of-sample span
	if !windows[1].InSampleFrom.Equal(date(2024, 1, 16)) {
		t.Errorf("second window starts %s, want 2024-01-16", windows[1].InSampleFrom)
	}
}

func TestWalkForwardPartitionExpanding(t *testing.T) {
	wf, err := NewWalkForward(date(2024, 1, 1), date(2024, 4, 1), 30, 15, WindowExpanding)
	if err != nil {
		t.Fatalf("NewWalkForward failed: %v", err)
	}

	windows := wf.Partition()
	if len(windows) < 2 {
		t.Fatalf("got %d windows, want at least 2", len(windows))
	}
	for i, w := range windows {
		if !w.InSampleFrom.Equal(date(2024, 1, 1)) {
			t.Errorf("window %d in-sample start = %s, want anchored 2024-01-01", i, w.InSampleFrom)
		}
	}
	if !windows[1].InSampleTo.After(windows[0].InSampleTo) {
		t.Error("expanding in-sample must grow between windows")
	}
}

func TestWalkForwardRangeTooShort(t *testing.T) {
	wf, err := NewWalkForward(date(2024, 1, 1), date(2024, 1, 20), 30, 15, WindowSliding)
	if err != nil {
		t.Fatalf("NewWalkForward failed: %v", err)
	}

	result := wf.Run(context.Background(), func(from, to time.Time) (*analysis.Stats, error) {
		t.Fatal("run function must not be called without windows")
		return nil, nil
	})
	if result.Success {
		t.Error("short range must fail")
	}
	if result.Error != ErrNoWindows {
		t.Errorf("error = %q, want %q", result.Error, ErrNoWindows)
	}
}

func TestWalkForwardInvalidConstruction(t *testing.T) {
	if _, err := NewWalkForward(date(2024, 1, 1), date(2024, 4, 1), 0, 15, WindowSliding); err == nil {
		t.Error("zero in-sample days must be rejected")
	}
	if _, err := NewWalkForward(date(2024, 4, 1), date(2024, 1, 1), 30, 15, WindowSliding); err == nil {
		t.Error("inverted range must be rejected")
	}
	if _, err := NewWalkForward(date(2024, 1, 1), date(2024, 4, 1), 30, 15, "bogus"); err == nil {
		t.Error("unknown mode must be rejected")
	}
}

func TestWalkForwardAggregatesOutOfSample(t *testing.T) {
	wf, err := NewWalkForward(date(2024, 1, 1), date(2024, 4, 1), 30, 15, WindowSliding)
	if err != nil {
		t.Fatalf("NewWalkForward failed: %v", err)
	}

	// In-sample runs span 30 days, out-of-sample 15; tag them apart
	result := wf.Run(context.Background(), func(from, to time.Time) (*analysis.Stats, error) {
		days := to.Sub(from).Hours() / 24
		if days > 15 {
			return &analysis.Stats{TotalReturn: 99}, nil
		}
		return &analysis.Stats{TotalReturn: 10, SharpeRatio: 1.5, WinRate: 60}, nil
	})
	if !result.Success {
		t.Fatalf("walk-forward failed: %s", result.Error)
	}
	if len(result.Windows) != 4 {
		t.Fatalf("got %d evaluated windows, want 4", len(result.Windows))
	}
	if math.Abs(result.MeanReturn-10) > 1e-9 {
		t.Errorf("mean return = %f, want the out-of-sample 10, not the in-sample 99", result.MeanReturn)
	}
	if math.Abs(result.MeanSharpe-1.5) > 1e-9 || math.Abs(result.MeanWinRate-60) > 1e-9 {
		t.Errorf("mean sharpe = %f win rate = %f", result.MeanSharpe, result.MeanWinRate)
	}
}

func TestWalkForwardSkipsFailedWindows(t *testing.T) {
	wf, err := NewWalkForward(date(2024, 1, 1), date(2024, 4, 1), 30, 15, WindowSliding)
	if err != nil {
		t.Fatalf("NewWalkForward failed: %v", err)
	}

	result := wf.Run(context.Background(), func(from, to time.Time) (*analysis.Stats, error) {
		if from.Before(date(2024, 1, 10)) {
			return nil, fmt.Errorf("not enough candles")
		}
		return &analysis.Stats{TotalReturn: 5}, nil
	})
	if !result.Success {
		t.Fatalf("walk-forward failed: %s", result.Error)
	}
	if len(result.Windows) != 3 {
		t.Errorf("got %d windows, want 3 after skipping the first", len(result.Windows))
	}
}

func TestWalkForwardAllWindowsFailed(t *testing.T) {
	wf, err := NewWalkForward(date(2024, 1, 1), date(2024, 4, 1), 30, 15, WindowSliding)
	if err != nil {
		t.Fatalf("NewWalkForward failed: %v", err)
	}

	result := wf.Run(context.Background(), func(from, to time.Time) (*analysis.Stats, error) {
		return nil, fmt.Errorf("no data at all")
	})
	if result.Success || result.Error != ErrNoWindows {
		t.Errorf("got success=%v error=%q, want no-windows failure", result.Success, result.Error)
	}
}
