package portfolio

import (
	"fmt"
	"time"
)

// Direction of a trade
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Exit reasons recorded on a closed position. Strategies may record
// their own reason strings; these are the ones the engine itself emits.
const (
	ExitStopLoss      = "stop_loss"
	ExitTakeProfit    = "take_profit"
	ExitTrailingStop  = "trailing_stop"
	ExitEndOfBacktest = "end_of_backtest"
	ExitReplaced      = "replaced"
)

// Position represents one simulated trade. A position is open until
// Close is called and immutable afterwards.
type Position struct {
	InstrumentID string    `json:"instrument_id"`
	EntryDate    time.Time `json:"entry_date"`
	EntryPrice   float64   `json:"entry_price"`
	Quantity     int       `json:"quantity"`
	Direction    Direction `json:"direction"`
	StopLoss     float64   `json:"stop_loss,omitempty"`   // 0 = no stop
	TakeProfit   float64   `json:"take_profit,omitempty"` // 0 = no target
	ExitDate     time.Time `json:"exit_date,omitempty"`
	ExitPrice    float64   `json:"exit_price,omitempty"`
	ExitReason   string    `json:"exit_reason,omitempty"`
}

// Exit describes a triggered exit: the assumed fill price and the reason
type Exit struct {
	Price  float64
	Reason string
}

// Closed reports whether the position has been closed
func (p *Position) Closed() bool {
	return !p.ExitDate.IsZero()
}

// Close records the exit. Closing an already-closed position is rejected.
func (p *Position) Close(exitDate time.Time, exitPrice float64, reason string) error {
	if p.Closed() {
		return fmt.Errorf("position %s already closed on %s", p.InstrumentID, p.ExitDate.Format("2006-01-02"))
	}
	p.ExitDate = exitDate
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	return nil
}

// CalculatePnL returns the profit or loss of the position against the
// given price. For a closed position the stored exit price is used
// instead. Zero quantity or an unrecognized direction yields 0 rather
// than an error; callers feed the result straight into aggregates.
func (p *Position) CalculatePnL(currentPrice float64) float64 {
	if p.Quantity <= 0 {
		return 0
	}

	price := currentPrice
	if p.Closed() {
		price = p.ExitPrice
	}

	switch p.Direction {
	case DirectionLong:
		return (price - p.EntryPrice) * float64(p.Quantity)
	case DirectionShort:
		return (p.EntryPrice - price) * float64(p.Quantity)
	default:
		return 0
	}
}

// RealizedPnL returns the booked profit or loss. It is 0 while the
// position is still open.
func (p *Position) RealizedPnL() float64 {
	if !p.Closed() {
		return 0
	}
	return p.CalculatePnL(p.ExitPrice)
}

// EntryValue is the capital committed at entry
func (p *Position) EntryValue() float64 {
	return p.EntryPrice * float64(p.Quantity)
}

// CheckExit evaluates stop-loss and take-profit against the current
// price. Stop-loss wins when both trigger. The returned fill price is
// the stop/target level itself, modelling a guaranteed fill at the
// level rather than at the observed price. Closed positions never exit.
func (p *Position) CheckExit(currentPrice float64) *Exit {
	if p.Closed() {
		return nil
	}

	switch p.Direction {
	case DirectionLong:
		if p.StopLoss > 0 && currentPrice <= p.StopLoss {
			return &Exit{Price: p.StopLoss, Reason: ExitStopLoss}
		}
		if p.TakeProfit > 0 && currentPrice >= p.TakeProfit {
			return &Exit{Price: p.TakeProfit, Reason: ExitTakeProfit}
		}
	case DirectionShort:
		if p.StopLoss > 0 && currentPrice >= p.StopLoss {
			return &Exit{Price: p.StopLoss, Reason: ExitStopLoss}
		}
		if p.TakeProfit > 0 && currentPrice <= p.TakeProfit {
			return &Exit{Price: p.TakeProfit, Reason: ExitTakeProfit}
		}
	}

	return nil
}

// HoldingDays is the whole-day span between entry and exit. Open
// positions report 0.
func (p *Position) HoldingDays() int {
	if !p.Closed() {
		return 0
	}
	return int(p.ExitDate.Sub(p.EntryDate).Hours() / 24)
}
