package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swingbt/analysis"
	"swingbt/backtest"
	"swingbt/config"
	"swingbt/market"
	"swingbt/optimize"
	"swingbt/store"
	"swingbt/strategy"
)

func main() {
	fmt.Println("╔════════════════════════════════════════════════════════════╗")
	fmt.Println("║        swingbt - Swing Trading Backtest Engine             ║")
	fmt.Println("╚════════════════════════════════════════════════════════════╝")
	fmt.Println()

	cfg := config.Load()

	log.Printf("Configuration loaded:")
	log.Printf("  - Data dir: %s", cfg.DataDir)
	log.Printf("  - Initial capital: %.2f", cfg.InitialCapital)
	log.Printf("  - Instruments: %v", cfg.Instruments)
	log.Printf("  - Commission: %.3f%%, slippage: %.3f%%", cfg.CommissionPct, cfg.SlippagePct)
	fmt.Println()

	if err := store.Init(cfg.DataDir); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	candles := store.NewCandleStore()
	from := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	if err := seedIfEmpty(candles, cfg, from, to); err != nil {
		log.Fatalf("Failed to seed candle data: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, cancelling...")
		cancel()
	}()

	runCfg := &backtest.Config{
		InitialCapital:  cfg.InitialCapital,
		From:            from,
		To:              to,
		Instruments:     cfg.Instruments,
		Timeframe:       cfg.Timeframe,
		MinHistoryBars:  cfg.MinHistory,
		MaxGapDays:      cfg.MaxGapDays,
		CommissionPct:   cfg.CommissionPct,
		SlippagePct:     cfg.SlippagePct,
		MaxRiskPerTrade: cfg.MaxRiskPerTrade,
		Trailing:        &backtest.TrailingStop{Mode: backtest.TrailingPercent, Value: 8},
	}

	evaluator := strategy.NewMACross(10, 30, 10)

	engine, err := backtest.NewSwingEngine(runCfg, candles, evaluator)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	log.Println("Running swing backtest...")
	result := engine.Run(ctx)
	if !result.Success {
		log.Fatalf("Backtest failed: %s", result.Error)
	}

	runs := store.NewRunStore()
	if err := runs.Save("ma-cross swing", runCfg, result); err != nil {
		log.Printf("Failed to persist run: %v", err)
	}

	printStats(result)
	runMonteCarlo(result)
	runWalkForward(ctx, cfg, candles, from, to)
}

// seedIfEmpty generates a deterministic synthetic random walk per
// instrument when the database carries no candles yet
func seedIfEmpty(candles *store.CandleStore, cfg *config.Config, from, to time.Time) error {
	for i, instrument := range cfg.Instruments {
		n, err := candles.Count(instrument, cfg.Timeframe)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}

		rng := rand.New(rand.NewSource(int64(i + 1)))
		price := 100.0 + float64(i)*50
		var series []market.Candle
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			drift := rng.NormFloat64() * 1.5
			open := price
			price = math.Max(1, price+drift)
			high := math.Max(open, price) + rng.Float64()
			low := math.Min(open, price) - rng.Float64()
			series = append(series, market.Candle{
				Timestamp: d,
				Open:      open,
				High:      high,
				Low:       math.Max(0.5, low),
				Close:     price,
				Volume:    1000 + rng.Float64()*5000,
			})
		}

		if err := candles.SaveCandles(instrument, cfg.Timeframe, series); err != nil {
			return err
		}
		log.Printf("Seeded %d synthetic candles for %s", len(series), instrument)
	}
	return nil
}

func printStats(result *backtest.Result) {
	s := result.Stats
	fmt.Println()
	fmt.Println("Backtest results")
	fmt.Println("────────────────")
	fmt.Printf("  Run ID:            %s\n", result.RunID)
	fmt.Printf("  Final capital:     %.2f\n", result.FinalCapital)
	fmt.Printf("  Total return:      %.2f%%\n", s.TotalReturn)
	fmt.Printf("  Annualized return: %.2f%%\n", s.AnnualizedReturn)
	fmt.Printf("  Max drawdown:      %.2f%%\n", s.MaxDrawdown)
	fmt.Printf("  Sharpe ratio:      %.2f\n", s.SharpeRatio)
	fmt.Printf("  Sortino ratio:     %.2f\n", s.SortinoRatio)
	fmt.Printf("  Trades:            %d (%.1f%% wins)\n", s.TotalTrades, s.WinRate)
	fmt.Printf("  Profit factor:     %.2f\n", s.ProfitFactor)
	fmt.Printf("  Total commission:  %.2f\n", result.TotalCommission)
	if s.BestTrade != nil {
		fmt.Printf("  Best trade:        %s %.2f\n", s.BestTrade.InstrumentID, s.BestTrade.PnL)
	}
	if s.WorstTrade != nil {
		fmt.Printf("  Worst trade:       %s %.2f\n", s.WorstTrade.InstrumentID, s.WorstTrade.PnL)
	}
	fmt.Println()
}

func runMonteCarlo(result *backtest.Result) {
	mc := analysis.NewMonteCarlo(1000)
	mcResult := mc.Run(result.Positions, result.InitialCapital)
	if !mcResult.Success {
		log.Printf("Monte Carlo skipped: %s", mcResult.Error)
		return
	}

	fmt.Println("Monte Carlo (1000 resamples)")
	fmt.Println("────────────────────────────")
	fmt.Printf("  Median final capital: %.2f\n", mcResult.MedianFinal)
	for _, interval := range mcResult.Intervals {
		fmt.Printf("  %.0f%% interval:         %.2f .. %.2f\n",
			interval.Confidence*100, interval.Lower, interval.Upper)
	}
	fmt.Printf("  Worst 5%%:             %.2f\n", mcResult.WorstCase5Pct)
	fmt.Printf("  Worst 1%%:             %.2f\n", mcResult.WorstCase1Pct)
	fmt.Println()
}

func runWalkForward(ctx context.Context, cfg *config.Config, candles *store.CandleStore, from, to time.Time) {
	wf, err := optimize.NewWalkForward(from, to, 180, 60, optimize.WindowSliding)
	if err != nil {
		log.Printf("Walk-forward setup failed: %v", err)
		return
	}

	result := wf.Run(ctx, func(wFrom, wTo time.Time) (*analysis.Stats, error) {
		windowCfg := &backtest.Config{
			InitialCapital: cfg.InitialCapital,
			From:           wFrom,
			To:             wTo,
			Instruments:    cfg.Instruments,
			Timeframe:      cfg.Timeframe,
			MinHistoryBars: cfg.MinHistory,
			MaxGapDays:     cfg.MaxGapDays,
			CommissionPct:  cfg.CommissionPct,
			SlippagePct:    cfg.SlippagePct,
		}
		engine, err := backtest.NewSwingEngine(windowCfg, candles, strategy.NewMACross(10, 30, 10))
		if err != nil {
			return nil, err
		}
		run := engine.Run(ctx)
		if !run.Success {
			return nil, fmt.Errorf("%s", run.Error)
		}
		return run.Stats, nil
	})

	if !result.Success {
		log.Printf("Walk-forward failed: %s", result.Error)
		return
	}

	fmt.Println("Walk-forward (180d in-sample / 60d out-of-sample)")
	fmt.Println("─────────────────────────────────────────────────")
	fmt.Printf("  Windows evaluated:   %d\n", len(result.Windows))
	fmt.Printf("  Mean OOS return:     %.2f%%\n", result.MeanReturn)
	fmt.Printf("  Mean OOS sharpe:     %.2f\n", result.MeanSharpe)
	fmt.Printf("  Mean OOS win rate:   %.1f%%\n", result.MeanWinRate)
	fmt.Println()
}
