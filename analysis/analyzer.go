// Package analysis computes performance statistics from closed positions
// and an equity curve. Every ratio resolves division-by-zero cases to 0;
// no function here ever returns NaN or Inf.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"swingbt/portfolio"
)

// tradingDaysPerYear is the annualization basis for returns and ratios
const tradingDaysPerYear = 252

// TradeSummary describes a single standout trade
type TradeSummary struct {
	InstrumentID string  `json:"instrument_id"`
	PnL          float64 `json:"pnl"`
	PnLPct       float64 `json:"pnl_pct"`
	HoldingDays  int     `json:"holding_days"`
}

// Stats is the full performance report for one backtest run
type Stats struct {
	TotalReturn       float64                `json:"total_return"`
	AnnualizedReturn  float64                `json:"annualized_return"`
	MaxDrawdown       float64                `json:"max_drawdown"`
	SharpeRatio       float64                `json:"sharpe_ratio"`
	SortinoRatio      float64                `json:"sortino_ratio"`
	WinRate           float64                `json:"win_rate"`
	ProfitFactor      float64                `json:"profit_factor"`
	AvgWinLossRatio   float64                `json:"avg_win_loss_ratio"`
	BestTrade         *TradeSummary          `json:"best_trade,omitempty"`
	WorstTrade        *TradeSummary          `json:"worst_trade,omitempty"`
	ConsecutiveWins   int                    `json:"consecutive_wins"`
	ConsecutiveLosses int                    `json:"consecutive_losses"`
	TotalTrades       int                    `json:"total_trades"`
	WinningTrades     int                    `json:"winning_trades"`
	LosingTrades      int                    `json:"losing_trades"`
	GrossProfit       float64                `json:"gross_profit"`
	GrossLoss         float64                `json:"gross_loss"`
	TotalPnL          float64                `json:"total_pnl"`
	EquityCurve       []portfolio.EquityPoint `json:"equity_curve,omitempty"`
	MonthlyReturns    map[string]float64     `json:"monthly_returns,omitempty"`
}

// Analyze computes statistics for a fixed list of closed positions and a
// fixed capital pair. It is a pure function: identical input always
// yields an identical Stats value.
func Analyze(positions []*portfolio.Position, initialCapital, finalCapital float64, equityCurve []portfolio.EquityPoint) *Stats {
	s := &Stats{
		TotalTrades:    len(positions),
		EquityCurve:    equityCurve,
		MonthlyReturns: monthlyReturns(initialCapital, equityCurve),
	}

	if initialCapital > 0 {
		s.TotalReturn = (finalCapital - initialCapital) / initialCapital * 100
	}

	analyzeTrades(s, positions)

	returns := periodReturns(equityCurve)
	s.SharpeRatio = sharpe(returns)
	s.SortinoRatio = sortino(returns)
	s.MaxDrawdown = maxDrawdown(equityCurve)
	s.AnnualizedReturn = annualizedReturn(initialCapital, finalCapital, len(equityCurve))

	return s
}

// analyzeTrades fills all trade-derived fields
func analyzeTrades(s *Stats, positions []*portfolio.Position) {
	var winStreak, lossStreak int

	for _, pos := range positions {
		pnl := pos.RealizedPnL()
		s.TotalPnL += pnl

		if pnl > 0 {
			s.WinningTrades++
			s.GrossProfit += pnl
			winStreak++
			lossStreak = 0
		} else if pnl < 0 {
			s.LosingTrades++
			s.GrossLoss += -pnl
			lossStreak++
			winStreak = 0
		} else {
			winStreak = 0
			lossStreak = 0
		}
		if winStreak > s.ConsecutiveWins {
			s.ConsecutiveWins = winStreak
		}
		if lossStreak > s.ConsecutiveLosses {
			s.ConsecutiveLosses = lossStreak
		}

		if s.BestTrade == nil || pnl > s.BestTrade.PnL {
			s.BestTrade = summarize(pos, pnl)
		}
		if s.WorstTrade == nil || pnl < s.WorstTrade.PnL {
			s.WorstTrade = summarize(pos, pnl)
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}
	// Zero gross loss leaves the factor at 0 even when gross profit is
	// positive.
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	if s.WinningTrades > 0 && s.LosingTrades > 0 {
		avgWin := s.GrossProfit / float64(s.WinningTrades)
		avgLoss := s.GrossLoss / float64(s.LosingTrades)
		if avgLoss > 0 {
			s.AvgWinLossRatio = avgWin / avgLoss
		}
	}
}

func summarize(pos *portfolio.Position, pnl float64) *TradeSummary {
	pct := 0.0
	if entry := pos.EntryValue(); entry > 0 {
		pct = pnl / entry * 100
	}
	return &TradeSummary{
		InstrumentID: pos.InstrumentID,
		PnL:          pnl,
		PnLPct:       pct,
		HoldingDays:  pos.HoldingDays(),
	}
}

// periodReturns converts the equity curve into simple per-period returns
func periodReturns(curve []portfolio.EquityPoint) []float64 {
	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	return returns
}

// sharpe is the annualized mean/stddev of per-period returns. Empty
// input or zero dispersion yields 0.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := stat.Mean(returns, nil)
	sd := stat.StdDev(returns, nil)
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(tradingDaysPerYear)
}

// sortino replaces the denominator with downside deviation: the root
// mean square of negative returns over the whole sample
func sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := stat.Mean(returns, nil)

	sumSq := 0.0
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
		}
	}
	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside == 0 {
		return 0
	}
	return mean / downside * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown is the deepest peak-to-trough percentage decline over the
// equity curve. 0 for an empty curve.
func maxDrawdown(curve []portfolio.EquityPoint) float64 {
	var peak, maxDD float64
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak > 0 {
			dd := (peak - point.Equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// annualizedReturn compounds the total return over the number of traded
// days. 0 when there were no trading days or no starting capital.
func annualizedReturn(initialCapital, finalCapital float64, tradingDays int) float64 {
	if tradingDays == 0 || initialCapital <= 0 {
		return 0
	}
	if finalCapital <= 0 {
		return -100
	}
	growth := finalCapital / initialCapital
	return (math.Pow(growth, tradingDaysPerYear/float64(tradingDays)) - 1) * 100
}

// monthlyReturns computes the percentage change of month-end equity,
// keyed by "2006-01". The month containing the first point is measured
// against initial capital.
func monthlyReturns(initialCapital float64, curve []portfolio.EquityPoint) map[string]float64 {
	if len(curve) == 0 {
		return nil
	}

	monthEnd := make(map[string]float64)
	var months []string
	for _, point := range curve {
		key := point.Date.Format("2006-01")
		if _, seen := monthEnd[key]; !seen {
			months = append(months, key)
		}
		monthEnd[key] = point.Equity
	}
	sort.Strings(months)

	out := make(map[string]float64, len(months))
	prev := initialCapital
	for _, key := range months {
		if prev > 0 {
			out[key] = (monthEnd[key] - prev) / prev * 100
		} else {
			out[key] = 0
		}
		prev = monthEnd[key]
	}
	return out
}
