package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"swingbt/backtest"
)

// RunRecord is a persisted backtest run summary
type RunRecord struct {
	RunID          string    `json:"run_id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	InitialCapital float64   `json:"initial_capital"`
	FinalCapital   float64   `json:"final_capital"`
	TotalReturnPct float64   `json:"total_return_pct"`
	TotalTrades    int       `json:"total_trades"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// RunStore persists backtest results so finished runs survive restarts
type RunStore struct{}

func NewRunStore() *RunStore {
	return &RunStore{}
}

// InitTables creates the runs table if it doesn't exist
func (s *RunStore) InitTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		name TEXT DEFAULT '',
		status TEXT NOT NULL,
		error TEXT DEFAULT '',
		initial_capital REAL NOT NULL,
		final_capital REAL DEFAULT 0,
		total_return_pct REAL DEFAULT 0,
		total_trades INTEGER DEFAULT 0,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		config TEXT NOT NULL,
		result TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	`
	_, err := db.Exec(query)
	return err
}

// Save upserts a finished run with its full result payload
func (s *RunStore) Save(name string, cfg *backtest.Config, result *backtest.Result) error {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	status := backtest.StatusFailed
	if result.Success {
		status = backtest.StatusCompleted
	}

	totalReturn := 0.0
	if result.Stats != nil {
		totalReturn = result.Stats.TotalReturn
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO runs (run_id, name, status, error, initial_capital, final_capital,
			total_return_pct, total_trades, started_at, completed_at, config, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.RunID, name, string(status), result.Error, result.InitialCapital, result.FinalCapital,
		totalReturn, len(result.Positions), result.StartedAt, result.CompletedAt,
		string(configJSON), string(resultJSON))
	return err
}

// Get returns the full persisted result of a run
func (s *RunStore) Get(runID string) (*backtest.Result, error) {
	var payload sql.NullString
	err := db.QueryRow(`SELECT result FROM runs WHERE run_id = ?`, runID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, err
	}
	if !payload.Valid || payload.String == "" {
		return nil, fmt.Errorf("run %s has no stored result", runID)
	}

	var result backtest.Result
	if err := json.Unmarshal([]byte(payload.String), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// List returns run summaries, most recent first
func (s *RunStore) List(limit int) ([]*RunRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, name, status, error, initial_capital, final_capital,
			total_return_pct, total_trades, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		var r RunRecord
		var completed sql.NullTime
		if err := rows.Scan(&r.RunID, &r.Name, &r.Status, &r.Error, &r.InitialCapital,
			&r.FinalCapital, &r.TotalReturnPct, &r.TotalTrades, &r.StartedAt, &completed); err != nil {
			return nil, err
		}
		if completed.Valid {
			r.CompletedAt = completed.Time
		}
		records = append(records, &r)
	}

	return records, rows.Err()
}

// Delete removes a persisted run
func (s *RunStore) Delete(runID string) error {
	res, err := db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}
