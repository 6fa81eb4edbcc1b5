// Package strategy defines the signal-evaluator contract consumed by the
// backtest engine. Evaluators see only candles up to the as-of date; the
// engine truncates the series before calling, so an evaluator cannot look
// ahead even by accident.
package strategy

import (
	"time"

	"swingbt/market"
	"swingbt/portfolio"
)

// Signal is a proposed trade for one instrument on one date
type Signal struct {
	InstrumentID string              `json:"instrument_id"`
	Date         time.Time           `json:"date"`
	Direction    portfolio.Direction `json:"direction"`
	EntryPrice   float64             `json:"entry_price"`
	StopLoss     float64             `json:"stop_loss,omitempty"`
	TakeProfit   float64             `json:"take_profit,omitempty"`
	Quantity     int                 `json:"quantity"`
	Confidence   float64             `json:"confidence,omitempty"`
	Reason       string              `json:"reason,omitempty"`
}

// Evaluator produces entry signals. A nil signal means no entry for that
// instrument on that date. An error is treated by the engine as no
// signal; it never aborts a run.
type Evaluator interface {
	Evaluate(instrument string, series []market.Candle, asOf time.Time) (*Signal, error)
}
