package portfolio

import (
	"fmt"
	"time"
)

// DuplicatePolicy controls what happens when a position is opened for an
// instrument that already has one open.
type DuplicatePolicy string

const (
	// DuplicateReject refuses the second open and keeps the first.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateReplace overwrites the first position without refunding
	// its capital. This leaks capital and exists only to reproduce
	// legacy behavior; prefer reject or refund.
	DuplicateReplace DuplicatePolicy = "replace"
	// DuplicateRefund closes the first position at its entry price
	// (refunding its cost) before opening the second.
	DuplicateRefund DuplicatePolicy = "refund"
)

// EquityPoint is one snapshot on the equity curve
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// Portfolio tracks cash, open positions and closed-trade history for a
// single simulation run. At most one open position per instrument.
type Portfolio struct {
	InitialCapital  float64
	CurrentCapital  float64
	DuplicatePolicy DuplicatePolicy

	Positions       map[string]*Position
	ClosedPositions []*Position
	EquityCurve     []EquityPoint
}

// NewPortfolio creates a portfolio with the given starting capital.
// An empty policy defaults to DuplicateReject.
func NewPortfolio(initialCapital float64, policy DuplicatePolicy) *Portfolio {
	if policy == "" {
		policy = DuplicateReject
	}
	return &Portfolio{
		InitialCapital:  initialCapital,
		CurrentCapital:  initialCapital,
		DuplicatePolicy: policy,
		Positions:       make(map[string]*Position),
	}
}

// OpenPosition deducts entry cost and stores a new open position. It
// returns an error and changes nothing when capital is insufficient, or
// when the instrument already has an open position under the reject
// policy.
func (pf *Portfolio) OpenPosition(instrumentID string, entryDate time.Time, entryPrice float64, quantity int, direction Direction, stopLoss, takeProfit float64) error {
	if quantity <= 0 {
		return fmt.Errorf("invalid quantity %d for %s", quantity, instrumentID)
	}

	if _, open := pf.Positions[instrumentID]; open {
		switch pf.DuplicatePolicy {
		case DuplicateReject:
			return fmt.Errorf("position already open for %s", instrumentID)
		case DuplicateRefund:
			prior := pf.Positions[instrumentID]
			if !pf.ClosePosition(instrumentID, entryDate, prior.EntryPrice, ExitReplaced) {
				return fmt.Errorf("failed to refund prior position for %s", instrumentID)
			}
		case DuplicateReplace:
			// fall through: the prior entry is overwritten below and
			// its capital is not returned
		}
	}

	required := entryPrice * float64(quantity)
	if pf.CurrentCapital < required {
		return fmt.Errorf("insufficient capital for %s: need %.2f, have %.2f", instrumentID, required, pf.CurrentCapital)
	}

	pf.CurrentCapital -= required
	pf.Positions[instrumentID] = &Position{
		InstrumentID: instrumentID,
		EntryDate:    entryDate,
		EntryPrice:   entryPrice,
		Quantity:     quantity,
		Direction:    direction,
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
	}
	return nil
}

// ClosePosition closes the open position for an instrument, credits the
// gross exit proceeds back to capital and moves the position into the
// closed history. Returns false when no position is open for the key.
func (pf *Portfolio) ClosePosition(instrumentID string, exitDate time.Time, exitPrice float64, reason string) bool {
	pos, open := pf.Positions[instrumentID]
	if !open {
		return false
	}

	if err := pos.Close(exitDate, exitPrice, reason); err != nil {
		return false
	}

	pf.CurrentCapital += exitPrice * float64(pos.Quantity)
	pf.ClosedPositions = append(pf.ClosedPositions, pos)
	delete(pf.Positions, instrumentID)
	return true
}

// TotalEquity is cash plus the mark-to-market value of every open
// position. An instrument missing from prices contributes its entry
// value, i.e. no unrealized change.
func (pf *Portfolio) TotalEquity(prices map[string]float64) float64 {
	equity := pf.CurrentCapital
	for id, pos := range pf.Positions {
		equity += pos.EntryValue()
		if price, ok := prices[id]; ok {
			equity += pos.CalculatePnL(price)
		}
	}
	return equity
}

// UpdateEquity appends a snapshot for the given date to the equity curve
func (pf *Portfolio) UpdateEquity(date time.Time, prices map[string]float64) {
	pf.EquityCurve = append(pf.EquityCurve, EquityPoint{
		Date:   date,
		Equity: pf.TotalEquity(prices),
	})
}

// OpenCount returns the number of currently open positions
func (pf *Portfolio) OpenCount() int {
	return len(pf.Positions)
}
