package backtest

import (
	"fmt"
	"time"

	"swingbt/analysis"
	"swingbt/market"
	"swingbt/portfolio"
)

// RunStatus represents the status of a backtest run
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// ErrInsufficientData is the failure reported when no instrument
// survives data validation
const ErrInsufficientData = "Insufficient data"

// RebalanceFrequency gates how often new entries are considered
type RebalanceFrequency string

const (
	RebalanceDaily   RebalanceFrequency = "daily"
	RebalanceWeekly  RebalanceFrequency = "weekly"  // entries on Mondays
	RebalanceMonthly RebalanceFrequency = "monthly" // entries on the 1st
)

// TrailingMode selects how the trailing stop distance is expressed
type TrailingMode string

const (
	TrailingPercent TrailingMode = "percent"
	TrailingAmount  TrailingMode = "amount"
)

// TrailingStop ratchets the stop-loss behind the most favorable price
// seen while the position is open. It only ever tightens.
type TrailingStop struct {
	Mode  TrailingMode `json:"mode"`
	Value float64      `json:"value"`
}

// Config holds the parameters of one backtest run
type Config struct {
	InitialCapital     float64                   `json:"initial_capital"`
	From               time.Time                 `json:"from"`
	To                 time.Time                 `json:"to"`
	Instruments        []string                  `json:"instruments"`
	Timeframe          string                    `json:"timeframe"`
	MinHistoryBars     int                       `json:"min_history_bars"`
	MaxGapDays         int                       `json:"max_gap_days"`
	InterpolateMissing bool                      `json:"interpolate_missing"`
	MaxRiskPerTrade    float64                   `json:"max_risk_per_trade"` // % of current capital; 0 = uncapped
	CommissionPct      float64                   `json:"commission_pct"`
	SlippagePct        float64                   `json:"slippage_pct"`
	Trailing           *TrailingStop             `json:"trailing,omitempty"`
	DuplicatePolicy    portfolio.DuplicatePolicy `json:"duplicate_policy,omitempty"`
	Rebalance          RebalanceFrequency        `json:"rebalance,omitempty"`
}

// Validate checks construction parameters and fills defaults for the
// purely operational knobs. Invalid capital, date range or risk bounds
// are errors, never silently corrected.
func (c *Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %.2f", c.InitialCapital)
	}
	if c.From.IsZero() || c.To.IsZero() || !c.To.After(c.From) {
		return fmt.Errorf("invalid date range: from=%s to=%s", c.From.Format("2006-01-02"), c.To.Format("2006-01-02"))
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("no instruments configured")
	}
	if c.MaxRiskPerTrade < 0 || c.MaxRiskPerTrade > 100 {
		return fmt.Errorf("max risk per trade must be within (0, 100], got %.2f", c.MaxRiskPerTrade)
	}
	if c.CommissionPct < 0 || c.SlippagePct < 0 {
		return fmt.Errorf("commission and slippage must not be negative")
	}
	if c.Trailing != nil {
		if c.Trailing.Mode != TrailingPercent && c.Trailing.Mode != TrailingAmount {
			return fmt.Errorf("unknown trailing mode %q", c.Trailing.Mode)
		}
		if c.Trailing.Value <= 0 {
			return fmt.Errorf("trailing value must be positive, got %.2f", c.Trailing.Value)
		}
	}

	if c.Timeframe == "" {
		c.Timeframe = market.TimeframeDaily
	}
	if c.MinHistoryBars <= 0 {
		c.MinHistoryBars = 30
	}
	if c.MaxGapDays <= 0 {
		c.MaxGapDays = 10
	}
	if c.DuplicatePolicy == "" {
		c.DuplicatePolicy = portfolio.DuplicateReject
	}
	if c.Rebalance == "" {
		c.Rebalance = RebalanceDaily
	}
	return nil
}

// Result is the complete outcome of one run. Callers always get a
// Result with an explicit success flag; engine errors never escape as
// panics or raw error returns.
type Result struct {
	RunID           string                  `json:"run_id"`
	Success         bool                    `json:"success"`
	Error           string                  `json:"error,omitempty"`
	StartedAt       time.Time               `json:"started_at"`
	CompletedAt     time.Time               `json:"completed_at"`
	InitialCapital  float64                 `json:"initial_capital"`
	FinalCapital    float64                 `json:"final_capital"`
	TotalCommission float64                 `json:"total_commission"`
	Positions       []*portfolio.Position   `json:"positions,omitempty"`
	EquityCurve     []portfolio.EquityPoint `json:"equity_curve,omitempty"`
	Stats           *analysis.Stats         `json:"stats,omitempty"`
}

// RunMetadata is the progress view of a managed run
type RunMetadata struct {
	RunID       string    `json:"run_id"`
	Name        string    `json:"name,omitempty"`
	Status      RunStatus `json:"status"`
	Config      *Config   `json:"config"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Error       string    `json:"error,omitempty"`
}
