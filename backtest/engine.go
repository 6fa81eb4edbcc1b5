package backtest

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"swingbt/analysis"
	"swingbt/market"
	"swingbt/portfolio"
	"swingbt/strategy"
)

// Engine replays historical candles day by day against one portfolio.
// Each day runs in a strict order: exits on open positions, entry
// signals, opens, equity mark. A run is deterministic: identical inputs
// and parameters always produce identical results.
type Engine struct {
	cfg       *Config
	loader    *market.Loader
	evaluator strategy.Evaluator

	pf          *portfolio.Portfolio
	data        map[string][]market.Candle
	instruments []string

	byDay    map[string]map[time.Time]market.Candle
	upTo     map[string]int // candles seen up to and including the current day
	peaks    map[string]float64
	ratchets map[string]bool

	totalCommission float64
}

// NewEngine creates an engine for the given config, candle source and
// signal evaluator. Construction fails on invalid parameters.
func NewEngine(cfg *Config, source market.CandleSource, evaluator strategy.Evaluator) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:       cfg,
		loader:    market.NewLoader(source),
		evaluator: evaluator,
	}, nil
}

// NewSwingEngine creates an engine that considers entries every day
func NewSwingEngine(cfg *Config, source market.CandleSource, evaluator strategy.Evaluator) (*Engine, error) {
	cfg.Rebalance = RebalanceDaily
	return NewEngine(cfg, source, evaluator)
}

// NewLongTermEngine creates an engine whose entries are gated to the
// given rebalance schedule. Exits and equity marks still happen daily.
func NewLongTermEngine(cfg *Config, source market.CandleSource, evaluator strategy.Evaluator, freq RebalanceFrequency) (*Engine, error) {
	cfg.Rebalance = freq
	return NewEngine(cfg, source, evaluator)
}

// Run executes the simulation and always returns a Result with an
// explicit success flag. Per-instrument-day evaluator failures are
// logged and treated as no signal; they never abort the run.
func (e *Engine) Run(ctx context.Context) *Result {
	result := &Result{
		RunID:          uuid.NewString(),
		StartedAt:      time.Now(),
		InitialCapital: e.cfg.InitialCapital,
	}

	days, err := e.initialize()
	if err != nil {
		result.Error = err.Error()
		result.CompletedAt = time.Now()
		return result
	}
	if len(days) == 0 {
		result.Error = ErrInsufficientData
		result.CompletedAt = time.Now()
		return result
	}

	log.Printf("Backtest %s: %d instruments, %d trading days from %s to %s",
		result.RunID, len(e.instruments), len(days),
		days[0].Format("2006-01-02"), days[len(days)-1].Format("2006-01-02"))

	for i, day := range days {
		select {
		case <-ctx.Done():
			log.Printf("Backtest %s cancelled on %s", result.RunID, day.Format("2006-01-02"))
			result.Error = ctx.Err().Error()
			result.CompletedAt = time.Now()
			return result
		default:
		}

		e.advanceHistory(day)
		e.processExits(day)
		if entryAllowed(e.cfg.Rebalance, day, i == 0) {
			e.processEntries(day)
		}
		e.markEquity(day)
	}

	e.finalize()

	result.Success = true
	result.FinalCapital = e.pf.CurrentCapital
	result.TotalCommission = e.totalCommission
	result.Positions = e.pf.ClosedPositions
	result.EquityCurve = e.pf.EquityCurve
	result.Stats = analysis.Analyze(e.pf.ClosedPositions, e.cfg.InitialCapital, e.pf.CurrentCapital, e.pf.EquityCurve)
	result.CompletedAt = time.Now()

	log.Printf("Backtest %s completed: %d trades, final capital %.2f",
		result.RunID, len(result.Positions), result.FinalCapital)
	return result
}

// initialize loads and validates all series up front; the day loop
// itself never touches the source again.
func (e *Engine) initialize() ([]time.Time, error) {
	raw := make(map[string][]market.Candle)
	for _, instrument := range e.cfg.Instruments {
		candles, err := e.loader.LoadForInstrument(instrument, e.cfg.Timeframe, e.cfg.From, e.cfg.To, e.cfg.InterpolateMissing)
		if err != nil {
			log.Printf("Skipping %s: %v", instrument, err)
			continue
		}
		if candles == nil {
			log.Printf("Skipping %s: no candles in range", instrument)
			continue
		}
		raw[instrument] = candles
	}

	e.data = market.ValidateData(raw, e.cfg.MinHistoryBars, e.cfg.MaxGapDays)

	// Keep the caller-defined instrument order; map iteration order
	// must not leak into the simulation.
	e.instruments = e.instruments[:0]
	for _, instrument := range e.cfg.Instruments {
		if _, ok := e.data[instrument]; ok {
			e.instruments = append(e.instruments, instrument)
		}
	}
	if len(e.instruments) == 0 {
		return nil, errors.New(ErrInsufficientData)
	}

	e.pf = portfolio.NewPortfolio(e.cfg.InitialCapital, e.cfg.DuplicatePolicy)
	e.byDay = make(map[string]map[time.Time]market.Candle)
	e.upTo = make(map[string]int)
	e.peaks = make(map[string]float64)
	e.ratchets = make(map[string]bool)

	daySet := make(map[time.Time]bool)
	for _, instrument := range e.instruments {
		index := make(map[time.Time]market.Candle)
		for _, candle := range e.data[instrument] {
			day := market.DayKey(candle.Timestamp)
			index[day] = candle
			daySet[day] = true
		}
		e.byDay[instrument] = index
	}

	days := make([]time.Time, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// advanceHistory moves each instrument's history pointer to include
// every candle up to and including the given day
func (e *Engine) advanceHistory(day time.Time) {
	for _, instrument := range e.instruments {
		series := e.data[instrument]
		i := e.upTo[instrument]
		for i < len(series) && !market.DayKey(series[i].Timestamp).After(day) {
			i++
		}
		e.upTo[instrument] = i
	}
}

// processExits checks trailing stops and exit levels for every open
// position with a candle on this day. Instruments without a candle are
// neither checked nor advanced.
func (e *Engine) processExits(day time.Time) {
	for _, instrument := range e.instruments {
		pos, open := e.pf.Positions[instrument]
		if !open {
			continue
		}
		candle, ok := e.byDay[instrument][day]
		if !ok {
			continue
		}

		if e.cfg.Trailing != nil {
			e.updateTrailing(instrument, pos, candle.Close)
		}

		exit := pos.CheckExit(candle.Close)
		if exit == nil {
			continue
		}

		reason := exit.Reason
		if reason == portfolio.ExitStopLoss && e.ratchets[instrument] {
			reason = portfolio.ExitTrailingStop
		}
		e.closeAt(instrument, pos, day, exit.Price, reason, true)
	}
}

// updateTrailing ratchets the stop behind the most favorable close
func (e *Engine) updateTrailing(instrument string, pos *portfolio.Position, close float64) {
	peak, seen := e.peaks[instrument]
	if !seen {
		peak = pos.EntryPrice
	}
	switch pos.Direction {
	case portfolio.DirectionLong:
		if close > peak {
			peak = close
		}
	case portfolio.DirectionShort:
		if close < peak {
			peak = close
		}
	}
	e.peaks[instrument] = peak

	if ratchetStop(pos, trailingLevel(e.cfg.Trailing, peak, pos.Direction)) {
		e.ratchets[instrument] = true
	}
}

// processEntries queries the evaluator for instruments that are flat
// and have enough history, and opens accepted signals
func (e *Engine) processEntries(day time.Time) {
	for _, instrument := range e.instruments {
		if _, open := e.pf.Positions[instrument]; open {
			continue
		}
		bars := e.upTo[instrument]
		if bars < e.cfg.MinHistoryBars {
			continue
		}

		signal, err := e.evaluator.Evaluate(instrument, e.data[instrument][:bars], day)
		if err != nil {
			log.Printf("Signal error for %s on %s: %v", instrument, day.Format("2006-01-02"), err)
			continue
		}
		if signal == nil {
			continue
		}
		// A signal dated to any other day would leak future or stale
		// information into this one.
		if !market.DayKey(signal.Date).Equal(day) {
			log.Printf("Discarding %s signal dated %s on %s", instrument,
				signal.Date.Format("2006-01-02"), day.Format("2006-01-02"))
			continue
		}

		e.openSignal(instrument, day, signal)
	}
}

// openSignal sizes and opens one accepted signal; capital rejections
// are skipped without retry
func (e *Engine) openSignal(instrument string, day time.Time, signal *strategy.Signal) {
	fill := entryFill(signal.EntryPrice, e.cfg.SlippagePct, signal.Direction)
	quantity := signal.Quantity

	if e.cfg.MaxRiskPerTrade > 0 {
		maxNotional := e.pf.CurrentCapital * e.cfg.MaxRiskPerTrade / 100
		if fill > 0 && float64(quantity)*fill > maxNotional {
			quantity = int(maxNotional / fill)
		}
	}
	if quantity <= 0 {
		return
	}

	err := e.pf.OpenPosition(instrument, day, fill, quantity, signal.Direction, signal.StopLoss, signal.TakeProfit)
	if err != nil {
		log.Printf("Skipping %s entry on %s: %v", instrument, day.Format("2006-01-02"), err)
		return
	}

	fee := commission(fill, quantity, e.cfg.CommissionPct)
	e.totalCommission += fee
	e.pf.CurrentCapital -= fee
	e.peaks[instrument] = fill
	e.ratchets[instrument] = false
}

// closeAt closes a position, charging exit commission and, for
// simulated stop/target fills, exit slippage
func (e *Engine) closeAt(instrument string, pos *portfolio.Position, day time.Time, price float64, reason string, slip bool) {
	fill := price
	if slip {
		fill = exitFill(price, e.cfg.SlippagePct, pos.Direction)
	}
	if !e.pf.ClosePosition(instrument, day, fill, reason) {
		return
	}

	fee := commission(fill, pos.Quantity, e.cfg.CommissionPct)
	e.totalCommission += fee
	e.pf.CurrentCapital -= fee
	delete(e.peaks, instrument)
	delete(e.ratchets, instrument)
}

// markEquity records the day's equity using closes of every instrument
// that traded
func (e *Engine) markEquity(day time.Time) {
	prices := make(map[string]float64)
	for _, instrument := range e.instruments {
		if candle, ok := e.byDay[instrument][day]; ok {
			prices[instrument] = candle.Close
		}
	}
	e.pf.UpdateEquity(day, prices)
}

// finalize closes every surviving position at its last known close
// price, never at an invented one
func (e *Engine) finalize() {
	for _, instrument := range e.instruments {
		pos, open := e.pf.Positions[instrument]
		if !open {
			continue
		}

		series := e.data[instrument]
		price := pos.EntryPrice
		day := market.DayKey(pos.EntryDate)
		if len(series) > 0 {
			last := series[len(series)-1]
			price = last.Close
			day = market.DayKey(last.Timestamp)
		}
		e.closeAt(instrument, pos, day, price, portfolio.ExitEndOfBacktest, false)
	}
}

