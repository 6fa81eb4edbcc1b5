package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds process-level settings loaded from the environment.
// Per-run simulation parameters live in backtest.Config; nothing here is
// global mutable state.
type Config struct {
	// Storage
	DataDir string

	// Simulation defaults
	InitialCapital  float64
	CommissionPct   float64
	SlippagePct     float64
	MaxRiskPerTrade float64 // Max % of capital per position, 0 = uncapped

	// Data
	Instruments []string
	Timeframe   string
	MinHistory  int // Candles required before signals are considered
	MaxGapDays  int
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		// Storage
		DataDir: getEnv("DATA_DIR", "data"),

		// Simulation
		InitialCapital:  getEnvFloat("INITIAL_CAPITAL", 100000),
		CommissionPct:   getEnvFloat("COMMISSION_PCT", 0.1),
		SlippagePct:     getEnvFloat("SLIPPAGE_PCT", 0.05),
		MaxRiskPerTrade: getEnvFloat("MAX_RISK_PER_TRADE", 10.0),

		// Data
		Instruments: getEnvList("INSTRUMENTS", []string{"TCS", "INFY", "RELIANCE"}),
		Timeframe:   getEnv("TIMEFRAME", "1d"),
		MinHistory:  getEnvInt("MIN_HISTORY_BARS", 30),
		MaxGapDays:  getEnvInt("MAX_GAP_DAYS", 10),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		i, err := strconv.Atoi(val)
		if err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
