package backtest

import "time"

// entryAllowed implements the rebalance gate for the long-term variant.
// Exits and equity marks are never gated; only new entries are.
// Weekly rebalancing admits Mondays, monthly the first calendar day of a
// month. The first trading day of a run is always admitted so a
// mid-week or mid-month start still gets its initial allocation.
func entryAllowed(freq RebalanceFrequency, day time.Time, firstDay bool) bool {
	if firstDay {
		return true
	}
	switch freq {
	case RebalanceWeekly:
		return day.Weekday() == time.Monday
	case RebalanceMonthly:
		return day.Day() == 1
	default:
		return true
	}
}
