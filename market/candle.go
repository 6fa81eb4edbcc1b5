package market

import (
	"sort"
	"time"
)

// Timeframe constants used across the engine
const (
	TimeframeDaily  = "1d"
	TimeframeWeekly = "1w"
)

// Candle represents a single OHLCV bar
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// CandleSource provides historical candles for an instrument.
// Implementations must return rows inside [from, to]; ordering is not
// required, the loader sorts.
type CandleSource interface {
	Load(instrument, timeframe string, from, to time.Time) ([]Candle, error)
}

// MemorySource is an in-memory CandleSource for tests and seeded runs
type MemorySource struct {
	candles map[string][]Candle
}

// NewMemorySource creates an empty in-memory candle source
func NewMemorySource() *MemorySource {
	return &MemorySource{candles: make(map[string][]Candle)}
}

func memoryKey(instrument, timeframe string) string {
	return instrument + "|" + timeframe
}

// Put stores candles for an instrument/timeframe pair
func (m *MemorySource) Put(instrument, timeframe string, candles []Candle) {
	m.candles[memoryKey(instrument, timeframe)] = candles
}

// Load returns the stored candles restricted to [from, to]
func (m *MemorySource) Load(instrument, timeframe string, from, to time.Time) ([]Candle, error) {
	var out []Candle
	for _, c := range m.candles[memoryKey(instrument, timeframe)] {
		if c.Timestamp.Before(from) || c.Timestamp.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// sortCandles orders candles by ascending timestamp in place
func sortCandles(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
}

// DayKey truncates a timestamp to its calendar date in UTC
func DayKey(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
