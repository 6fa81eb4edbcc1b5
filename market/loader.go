package market

import (
	"fmt"
	"log"
	"time"
)

// Gap describes a hole between two chronologically adjacent candles.
// Days is the whole-day span between the two timestamps: candles three
// days apart report Days=3. A contiguous daily series has spans of 1
// and produces no gaps.
type Gap struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Days int       `json:"days"`
}

// Loader fetches and normalizes historical series from a CandleSource.
// Everything downstream of the loader sees plain ascending []Candle.
type Loader struct {
	source CandleSource
}

// NewLoader creates a loader over the given source
func NewLoader(source CandleSource) *Loader {
	return &Loader{source: source}
}

// LoadForInstrument loads candles for one instrument over [from, to],
// sorted by ascending timestamp. Returns nil (no error) when the source
// has no rows for the range. When interpolateMissing is true and the
// timeframe is daily, calendar days with no data between the first and
// last real candle are filled with flat zero-volume candles repeating
// the previous close. Days before the first real candle are never
// synthesized.
func (l *Loader) LoadForInstrument(instrument, timeframe string, from, to time.Time, interpolateMissing bool) ([]Candle, error) {
	candles, err := l.source.Load(instrument, timeframe, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load candles for %s: %w", instrument, err)
	}
	if len(candles) == 0 {
		return nil, nil
	}

	sortCandles(candles)

	if interpolateMissing && timeframe == TimeframeDaily {
		candles = fillDailyGaps(candles)
	}

	return candles, nil
}

// fillDailyGaps synthesizes flat candles for missing calendar days
// between the first and last real candle
func fillDailyGaps(candles []Candle) []Candle {
	filled := make([]Candle, 0, len(candles))
	filled = append(filled, candles[0])

	for i := 1; i < len(candles); i++ {
		prev := candles[i-1]
		next := candles[i]

		day := DayKey(prev.Timestamp).AddDate(0, 0, 1)
		for day.Before(DayKey(next.Timestamp)) {
			filled = append(filled, Candle{
				Timestamp: day,
				Open:      prev.Close,
				High:      prev.Close,
				Low:       prev.Close,
				Close:     prev.Close,
				Volume:    0,
			})
			day = day.AddDate(0, 0, 1)
		}
		filled = append(filled, next)
	}

	return filled
}

// DetectGaps reports every pair of adjacent candles whose timestamps are
// more than one day apart. Empty or single-candle input yields no gaps.
func DetectGaps(candles []Candle) []Gap {
	var gaps []Gap
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1]
		next := candles[i]
		days := int(DayKey(next.Timestamp).Sub(DayKey(prev.Timestamp)).Hours() / 24)
		if days > 1 {
			gaps = append(gaps, Gap{
				From: prev.Timestamp,
				To:   next.Timestamp,
				Days: days,
			})
		}
	}
	return gaps
}

// ValidateData filters a loaded data set. Series that are nil, empty or
// shorter than minCandles are dropped. Surviving series with any gap
// wider than maxGapDays keep their data but log a warning.
func ValidateData(data map[string][]Candle, minCandles, maxGapDays int) map[string][]Candle {
	valid := make(map[string][]Candle)

	for instrument, candles := range data {
		if len(candles) < minCandles {
			log.Printf("Dropping %s: %d candles, need at least %d", instrument, len(candles), minCandles)
			continue
		}

		for _, gap := range DetectGaps(candles) {
			if gap.Days > maxGapDays {
				log.Printf("Warning: %s has a %d-day gap from %s to %s",
					instrument, gap.Days,
					gap.From.Format("2006-01-02"), gap.To.Format("2006-01-02"))
			}
		}

		valid[instrument] = candles
	}

	return valid
}
