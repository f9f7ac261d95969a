package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKTEST_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8010, cfg.Port)
	assert.Equal(t, 10_000.0, cfg.InitialCapital)
	assert.Equal(t, 0.001, cfg.TransactionCostRate)
	assert.Equal(t, 252, cfg.PeriodsPerYear)
	assert.Equal(t, 4, cfg.Workers)

	assert.Equal(t, filepath.Join(cfg.DataDir, "prices.db"), cfg.PriceDBPath())
	assert.Equal(t, filepath.Join(cfg.DataDir, "calculations.db"), cfg.CacheDBPath())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BACKTEST_DATA_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BACKTEST_PORT", "9000")
	t.Setenv("BACKTEST_INITIAL_CAPITAL", "50000")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 50_000.0, cfg.InitialCapital)
	assert.True(t, cfg.DevMode)
}

func TestLoadRejectsBadParameters(t *testing.T) {
	t.Setenv("BACKTEST_DATA_DIR", t.TempDir())
	t.Setenv("BACKTEST_COST_RATE", "0.2")

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	t.Setenv("SOME_BOOL", "maybe")

	assert.Equal(t, 7, getEnvAsInt("SOME_INT", 7))
	assert.True(t, getEnvAsBool("SOME_BOOL", true))
	assert.Equal(t, "fallback", getEnv("UNSET_KEY_FOR_TEST", "fallback"))
}
