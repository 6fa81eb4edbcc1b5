package store

import (
	"time"

	"swingbt/market"
)

// CandleStore handles OHLCV persistence. It satisfies market.CandleSource
// so backtests can read straight from the database.
type CandleStore struct{}

func NewCandleStore() *CandleStore {
	return &CandleStore{}
}

// InitTables creates the candles table if it doesn't exist
func (s *CandleStore) InitTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS candles (
		instrument_id TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL DEFAULT 0,
		PRIMARY KEY (instrument_id, timeframe, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_candles_range ON candles(instrument_id, timeframe, timestamp);
	`
	_, err := db.Exec(query)
	return err
}

// SaveCandles upserts a batch of candles for one instrument and timeframe
func (s *CandleStore) SaveCandles(instrument, timeframe string, candles []market.Candle) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (instrument_id, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.Exec(instrument, timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Load retrieves candles in [from, to], ordered by timestamp ascending
func (s *CandleStore) Load(instrument, timeframe string, from, to time.Time) ([]market.Candle, error) {
	rows, err := db.Query(`
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE instrument_id = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, instrument, timeframe, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.Timestamp = c.Timestamp.UTC()
		candles = append(candles, c)
	}

	return candles, rows.Err()
}

// Count returns the number of stored candles for an instrument and timeframe
func (s *CandleStore) Count(instrument, timeframe string) (int, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM candles WHERE instrument_id = ? AND timeframe = ?
	`, instrument, timeframe).Scan(&n)
	return n, err
}

// LatestTimestamp returns the most recent stored candle time, or the zero
// time when the series is empty
func (s *CandleStore) LatestTimestamp(instrument, timeframe string) (time.Time, error) {
	var ts *time.Time
	err := db.QueryRow(`
		SELECT MAX(timestamp) FROM candles WHERE instrument_id = ? AND timeframe = ?
	`, instrument, timeframe).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return ts.UTC(), nil
}

// Instruments lists every instrument with stored candles for a timeframe
func (s *CandleStore) Instruments(timeframe string) ([]string, error) {
	rows, err := db.Query(`
		SELECT DISTINCT instrument_id FROM candles WHERE timeframe = ? ORDER BY instrument_id
	`, timeframe)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
