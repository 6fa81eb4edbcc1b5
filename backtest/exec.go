package backtest

import "swingbt/portfolio"

// Execution modifiers are pure functions applied around the simulation
// loop. Slippage always moves the fill against the trader; commission is
// charged on both entry and exit notional.

// entryFill adjusts the signal price unfavorably for the opening trade:
// a long pays more, a short receives less.
func entryFill(price, slippagePct float64, direction portfolio.Direction) float64 {
	switch direction {
	case portfolio.DirectionLong:
		return price * (1 + slippagePct/100)
	case portfolio.DirectionShort:
		return price * (1 - slippagePct/100)
	}
	return price
}

// exitFill adjusts the exit price unfavorably for the closing trade:
// a long sells lower, a short covers higher.
func exitFill(price, slippagePct float64, direction portfolio.Direction) float64 {
	switch direction {
	case portfolio.DirectionLong:
		return price * (1 - slippagePct/100)
	case portfolio.DirectionShort:
		return price * (1 + slippagePct/100)
	}
	return price
}

// commission is the cost of one fill at the given notional
func commission(price float64, quantity int, commissionPct float64) float64 {
	return price * float64(quantity) * commissionPct / 100
}

// trailingLevel computes the stop implied by the most favorable price
// seen so far. For longs the stop trails below the peak; for shorts it
// trails above the trough.
func trailingLevel(cfg *TrailingStop, peak float64, direction portfolio.Direction) float64 {
	switch direction {
	case portfolio.DirectionLong:
		if cfg.Mode == TrailingPercent {
			return peak * (1 - cfg.Value/100)
		}
		return peak - cfg.Value
	case portfolio.DirectionShort:
		if cfg.Mode == TrailingPercent {
			return peak * (1 + cfg.Value/100)
		}
		return peak + cfg.Value
	}
	return 0
}

// ratchetStop tightens the position's stop toward the trailing level.
// It returns true when the stop actually moved; the stop is never
// loosened.
func ratchetStop(pos *portfolio.Position, level float64) bool {
	if level <= 0 {
		return false
	}
	switch pos.Direction {
	case portfolio.DirectionLong:
		if level > pos.StopLoss {
			pos.StopLoss = level
			return true
		}
	case portfolio.DirectionShort:
		if pos.StopLoss == 0 || level < pos.StopLoss {
			pos.StopLoss = level
			return true
		}
	}
	return false
}
