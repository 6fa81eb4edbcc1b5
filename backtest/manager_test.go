package backtest

import (
	"context"
	"testing"
	"time"

	"swingbt/market"
	"swingbt/strategy"
)

func waitFor(t *testing.T, m *Manager, runID string, status RunStatus) *RunMetadata {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		meta, err := m.Status(runID)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if meta.Status == status {
			return meta
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s never reached status %s", runID, status)
	return nil
}

func TestManagerLifecycle(t *testing.T) {
	start := day(2024, 1, 1)
	cfg := baseConfig(start, day(2024, 1, 31))
	src := sourceWith("TCS", candleSeries(start, 100, 100, 100, 100))

	eval := &scriptedEvaluator{}
	eval.add("TCS", start.AddDate(0, 0, 1), &strategy.Signal{
		Direction:  "long",
		EntryPrice: 100,
		Quantity:   10,
	})

	m := NewManager()
	runID, err := m.Start(context.Background(), "flat run", cfg, src, eval)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	meta := waitFor(t, m, runID, StatusCompleted)
	if meta.Name != "flat run" {
		t.Errorf("name = %q", meta.Name)
	}

	result, err := m.Result(runID)
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if !result.Success || len(result.Positions) != 1 {
		t.Errorf("got success=%v positions=%d", result.Success, len(result.Positions))
	}

	if got := len(m.List()); got != 1 {
		t.Errorf("List returned %d runs, want 1", got)
	}
	if err := m.Delete(runID); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if _, err := m.Status(runID); err == nil {
		t.Error("Status must fail after Delete")
	}
}

func TestManagerRejectsInvalidConfig(t *testing.T) {
	cfg := baseConfig(day(2024, 1, 1), day(2024, 1, 31))
	cfg.InitialCapital = 0

	m := NewManager()
	if _, err := m.Start(context.Background(), "bad", cfg, market.NewMemorySource(), &scriptedEvaluator{}); err == nil {
		t.Fatal("Start must reject an invalid config")
	}
	if got := len(m.List()); got != 0 {
		t.Errorf("rejected run was registered: %d", got)
	}
}

func TestManagerFailedRunStatus(t *testing.T) {
	cfg := baseConfig(day(2024, 1, 1), day(2024, 1, 31))

	m := NewManager()
	runID, err := m.Start(context.Background(), "no data", cfg, market.NewMemorySource(), &scriptedEvaluator{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	meta := waitFor(t, m, runID, StatusFailed)
	if meta.Error != ErrInsufficientData {
		t.Errorf("error = %q, want %q", meta.Error, ErrInsufficientData)
	}
}

func TestManagerStopUnknownRun(t *testing.T) {
	m := NewManager()
	if err := m.Stop("nope"); err == nil {
		t.Error("Stop must fail for unknown run IDs")
	}
}
