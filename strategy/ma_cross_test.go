package strategy

import (
	"testing"
	"time"

	"swingbt/market"
	"swingbt/portfolio"
)

func seriesFromCloses(start time.Time, closes []float64) []market.Candle {
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return candles
}

func TestMACrossSignalsOnCross(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Flat then a sharp rise: the 2-bar average crosses the 4-bar one
	closes := []float64{100, 100, 100, 100, 100, 120}
	series := seriesFromCloses(start, closes)
	asOf := series[len(series)-1].Timestamp

	eval := NewMACross(2, 4, 10)
	sig, err := eval.Evaluate("TCS", series, asOf)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if sig == nil {
		t.Fatal("expected a signal on the cross day")
	}

	if sig.Direction != portfolio.DirectionLong {
		t.Errorf("direction = %s, want long", sig.Direction)
	}
	if !sig.Date.Equal(market.DayKey(asOf)) {
		t.Errorf("signal date = %s, want %s", sig.Date, asOf)
	}
	if sig.EntryPrice != 120 {
		t.Errorf("entry = %f, want 120", sig.EntryPrice)
	}
	if sig.StopLoss >= sig.EntryPrice {
		t.Errorf("stop %f must be below entry %f", sig.StopLoss, sig.EntryPrice)
	}
	if sig.TakeProfit <= sig.EntryPrice {
		t.Errorf("target %f must be above entry %f", sig.TakeProfit, sig.EntryPrice)
	}
	if sig.Quantity != 10 {
		t.Errorf("quantity = %d, want 10", sig.Quantity)
	}
}

func TestMACrossNoSignalCases(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eval := NewMACross(2, 4, 10)

	tests := []struct {
		name   string
		closes []float64
	}{
		{name: "too short", closes: []float64{100, 101}},
		{name: "flat series never crosses", closes: []float64{100, 100, 100, 100, 100, 100}},
		{name: "already above, no fresh cross", closes: []float64{100, 100, 100, 120, 130, 140}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := seriesFromCloses(start, tt.closes)
			asOf := series[len(series)-1].Timestamp
			sig, err := eval.Evaluate("TCS", series, asOf)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if sig != nil {
				t.Errorf("expected no signal, got %+v", sig)
			}
		})
	}
}

func TestMACrossStaleSeriesDiscarded(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := seriesFromCloses(start, []float64{100, 100, 100, 100, 100, 120})

	// asOf well past the last candle: no signal dated to a stale bar
	eval := NewMACross(2, 4, 10)
	sig, err := eval.Evaluate("TCS", series, start.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if sig != nil {
		t.Errorf("stale series must not signal, got %+v", sig)
	}
}

func TestMACrossInvalidPeriods(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := seriesFromCloses(start, []float64{100, 101, 102, 103, 104, 105})

	eval := &MACross{FastPeriod: 5, SlowPeriod: 2, Quantity: 1}
	if _, err := eval.Evaluate("TCS", series, series[len(series)-1].Timestamp); err == nil {
		t.Error("expected an error for fast >= slow")
	}
}
