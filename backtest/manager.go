package backtest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"swingbt/market"
	"swingbt/strategy"
)

// managedRun pairs an engine with its lifecycle state
type managedRun struct {
	metadata *RunMetadata
	result   *Result
	cancel   context.CancelFunc
}

// Manager runs backtests in the background and tracks their results.
// Engines themselves share no state; the manager only guards its own
// registry.
type Manager struct {
	runs map[string]*managedRun
	mu   sync.RWMutex
}

// NewManager creates an empty run registry
func NewManager() *Manager {
	return &Manager{runs: make(map[string]*managedRun)}
}

// Start launches a backtest in the background and returns its run ID
func (m *Manager) Start(ctx context.Context, name string, cfg *Config, source market.CandleSource, evaluator strategy.Evaluator) (string, error) {
	engine, err := NewEngine(cfg, source, evaluator)
	if err != nil {
		return "", fmt.Errorf("invalid backtest config: %w", err)
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)

	run := &managedRun{
		metadata: &RunMetadata{
			RunID:     runID,
			Name:      name,
			Status:    StatusRunning,
			Config:    cfg,
			StartedAt: time.Now(),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.runs[runID] = run
	m.mu.Unlock()

	go func() {
		defer cancel()
		result := engine.Run(runCtx)

		m.mu.Lock()
		run.result = result
		run.metadata.CompletedAt = time.Now()
		if result.Success {
			run.metadata.Status = StatusCompleted
		} else {
			run.metadata.Status = StatusFailed
			run.metadata.Error = result.Error
		}
		m.mu.Unlock()

		if !result.Success {
			log.Printf("Backtest %s (%s) failed: %s", runID, name, result.Error)
		}
	}()

	return runID, nil
}

// Stop cancels a running backtest
func (m *Manager) Stop(runID string) error {
	m.mu.RLock()
	run, exists := m.runs[runID]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("backtest %s not found", runID)
	}
	run.cancel()
	return nil
}

// Status returns the metadata of a run
func (m *Manager) Status(runID string) (*RunMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, exists := m.runs[runID]
	if !exists {
		return nil, fmt.Errorf("backtest %s not found", runID)
	}
	return run.metadata, nil
}

// Result returns the finished result of a run, or an error while it is
// still running
func (m *Manager) Result(runID string) (*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, exists := m.runs[runID]
	if !exists {
		return nil, fmt.Errorf("backtest %s not found", runID)
	}
	if run.result == nil {
		return nil, fmt.Errorf("backtest %s still running", runID)
	}
	return run.result, nil
}

// List returns metadata for every known run
func (m *Manager) List() []*RunMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*RunMetadata, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run.metadata)
	}
	return out
}

// Delete removes a completed run from the registry
func (m *Manager) Delete(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, exists := m.runs[runID]
	if !exists {
		return fmt.Errorf("backtest %s not found", runID)
	}
	if run.metadata.Status == StatusRunning {
		return fmt.Errorf("cannot delete running backtest")
	}
	delete(m.runs, runID)
	return nil
}
