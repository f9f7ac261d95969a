// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir   string // base directory for the price and cache databases
	ReportDir string // where CSV tables and charts are written
	LogLevel  string
	Port      int
	DevMode   bool

	// Simulation parameters.
	InitialCapital      float64
	TransactionCostRate float64

	// Analyzer parameters.
	RiskFreeRate   float64
	PeriodsPerYear int

	// Optimizer parameters.
	LookbackDays   int
	FrontierPoints int

	// Batch parameters.
	Workers int
}

// Load reads configuration from the environment, with .env support.
func Load() (*Config, error) {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	dataDir := getEnv("BACKTEST_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir %q: %w", dataDir, err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		ReportDir: getEnv("BACKTEST_REPORT_DIR", filepath.Join(absDataDir, "reports")),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Port:      getEnvAsInt("BACKTEST_PORT", 8010),
		DevMode:   getEnvAsBool("DEV_MODE", false),

		InitialCapital:      getEnvAsFloat("BACKTEST_INITIAL_CAPITAL", 10_000),
		TransactionCostRate: getEnvAsFloat("BACKTEST_COST_RATE", 0.001),

		RiskFreeRate:   getEnvAsFloat("BACKTEST_RISK_FREE_RATE", 0.02),
		PeriodsPerYear: getEnvAsInt("BACKTEST_PERIODS_PER_YEAR", 252),

		LookbackDays:   getEnvAsInt("BACKTEST_LOOKBACK_DAYS", 252),
		FrontierPoints: getEnvAsInt("BACKTEST_FRONTIER_POINTS", 100),

		Workers: getEnvAsInt("BACKTEST_WORKERS", 4),
	}

	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("BACKTEST_INITIAL_CAPITAL must be positive, got %f", cfg.InitialCapital)
	}
	if cfg.TransactionCostRate < 0 || cfg.TransactionCostRate > 0.05 {
		return nil, fmt.Errorf("BACKTEST_COST_RATE must be within [0, 0.05], got %f", cfg.TransactionCostRate)
	}

	return cfg, nil
}

// PriceDBPath returns the sqlite path of the price store.
func (c *Config) PriceDBPath() string {
	return filepath.Join(c.DataDir, "prices.db")
}

// CacheDBPath returns the sqlite path of the calculations cache.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "calculations.db")
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
