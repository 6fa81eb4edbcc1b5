package strategy

import (
	"fmt"
	"time"

	"swingbt/market"
	"swingbt/portfolio"
)

// MACross is a long-only moving-average crossover evaluator: it signals
// an entry on the day the fast close average crosses above the slow one.
// Stops and targets are percentages off the entry close.
type MACross struct {
	FastPeriod    int
	SlowPeriod    int
	StopLossPct   float64 // e.g. 5 = stop 5% below entry
	TakeProfitPct float64 // e.g. 10 = target 10% above entry
	Quantity      int
}

// NewMACross returns an evaluator with the given periods and sensible
// exit percentages
func NewMACross(fast, slow, quantity int) *MACross {
	return &MACross{
		FastPeriod:    fast,
		SlowPeriod:    slow,
		StopLossPct:   5,
		TakeProfitPct: 10,
		Quantity:      quantity,
	}
}

// Evaluate implements Evaluator
func (s *MACross) Evaluate(instrument string, series []market.Candle, asOf time.Time) (*Signal, error) {
	if s.FastPeriod <= 0 || s.SlowPeriod <= s.FastPeriod {
		return nil, fmt.Errorf("invalid periods fast=%d slow=%d", s.FastPeriod, s.SlowPeriod)
	}
	// Need one extra bar to see yesterday's relation of the averages
	if len(series) < s.SlowPeriod+1 {
		return nil, nil
	}

	last := series[len(series)-1]
	if !market.DayKey(last.Timestamp).Equal(market.DayKey(asOf)) {
		return nil, nil
	}

	fastNow := closeAverage(series, s.FastPeriod, 0)
	slowNow := closeAverage(series, s.SlowPeriod, 0)
	fastPrev := closeAverage(series, s.FastPeriod, 1)
	slowPrev := closeAverage(series, s.SlowPeriod, 1)

	if !(fastPrev <= slowPrev && fastNow > slowNow) {
		return nil, nil
	}

	entry := last.Close
	return &Signal{
		InstrumentID: instrument,
		Date:         market.DayKey(asOf),
		Direction:    portfolio.DirectionLong,
		EntryPrice:   entry,
		StopLoss:     entry * (1 - s.StopLossPct/100),
		TakeProfit:   entry * (1 + s.TakeProfitPct/100),
		Quantity:     s.Quantity,
		Confidence:   1,
		Reason:       fmt.Sprintf("ma cross %d/%d", s.FastPeriod, s.SlowPeriod),
	}, nil
}

// closeAverage averages the last n closes, skipping `back` bars from the
// end of the series
func closeAverage(series []market.Candle, n, back int) float64 {
	end := len(series) - back
	sum := 0.0
	for i := end - n; i < end; i++ {
		sum += series[i].Close
	}
	return sum / float64(n)
}
