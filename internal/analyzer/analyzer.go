// Package analyzer derives risk/return metrics from portfolio value series
// and aggregates them across a universe of symbols.
package analyzer

import (
	"github.com/rs/zerolog"

	"github.com/jaeyoung0503/quant-platform-sub000/pkg/formulas"
)

// Config holds the analyzer parameters. The annualization constant is
// configurable for non-daily series; everything defaults to the daily
// conventions.
type Config struct {
	RiskFreeRate   float64 // annual, e.g. 0.02
	PeriodsPerYear int     // 252 for daily series
	VaRLevel       float64 // tail percentile for VaR/CVaR, e.g. 0.05
}

// DefaultConfig returns the standard daily-series parameters.
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:   0.02,
		PeriodsPerYear: formulas.TradingDaysPerYear,
		VaRLevel:       0.05,
	}
}

// PerformanceMetrics is the immutable result of analyzing one value series.
type PerformanceMetrics struct {
	Symbol         string    `json:"symbol"`
	TotalReturn    float64   `json:"total_return"`
	AnnualReturn   float64   `json:"annual_return"`
	Volatility     float64   `json:"volatility"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	SortinoRatio   float64   `json:"sortino_ratio"`
	CalmarRatio    float64   `json:"calmar_ratio"`
	MaxDrawdown    float64   `json:"max_drawdown"` // negative percentage
	WinRate        float64   `json:"win_rate"`
	BestPeriod     float64   `json:"best_period"`
	WorstPeriod    float64   `json:"worst_period"`
	VaR            float64   `json:"var"`
	CVaR           float64   `json:"cvar"`
	MonthlyReturns []float64 `json:"monthly_returns,omitempty"`

	// Insufficient marks a degenerate record produced from fewer than two
	// value points. Such records are excluded from rankings and summaries.
	Insufficient bool `json:"insufficient,omitempty"`
}

// Analyzer computes PerformanceMetrics from value series.
type Analyzer struct {
	cfg Config
	log zerolog.Logger
}

// New creates an Analyzer.
func New(cfg Config, log zerolog.Logger) *Analyzer {
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = formulas.TradingDaysPerYear
	}
	if cfg.VaRLevel <= 0 || cfg.VaRLevel >= 1 {
		cfg.VaRLevel = 0.05
	}
	return &Analyzer{
		cfg: cfg,
		log: log.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze derives the full metrics record from a value series spanning
// horizonDays calendar days. A series shorter than two points yields a
// zero-valued record flagged Insufficient; no metric ever divides by zero.
func (a *Analyzer) Analyze(symbol string, values []float64, horizonDays int) PerformanceMetrics {
	if len(values) < 2 {
		a.log.Debug().Str("symbol", symbol).Int("points", len(values)).
			Msg("Value series too short, returning degenerate metrics")
		return PerformanceMetrics{Symbol: symbol, Insufficient: true}
	}

	returns := formulas.CalculateReturns(values)

	totalReturn := formulas.TotalReturn(values)
	annualReturn := formulas.AnnualizedReturn(totalReturn, horizonDays)
	volatility := formulas.AnnualizedVolatilityN(returns, a.cfg.PeriodsPerYear)
	maxDD := formulas.MaxDrawdown(values)

	best, worst := 0.0, 0.0
	if len(returns) > 0 {
		best, worst = returns[0], returns[0]
		for _, r := range returns[1:] {
			if r > best {
				best = r
			}
			if r < worst {
				worst = r
			}
		}
	}

	return PerformanceMetrics{
		Symbol:         symbol,
		TotalReturn:    totalReturn,
		AnnualReturn:   annualReturn,
		Volatility:     volatility,
		SharpeRatio:    formulas.SharpeRatio(annualReturn, volatility, a.cfg.RiskFreeRate),
		SortinoRatio:   formulas.SortinoRatio(annualReturn, a.cfg.RiskFreeRate, returns, a.cfg.PeriodsPerYear),
		CalmarRatio:    formulas.CalmarRatio(annualReturn, maxDD),
		MaxDrawdown:    maxDD,
		WinRate:        formulas.WinRate(returns),
		BestPeriod:     best,
		WorstPeriod:    worst,
		VaR:            formulas.ValueAtRisk(returns, a.cfg.VaRLevel),
		CVaR:           formulas.ConditionalVaR(returns, a.cfg.VaRLevel),
		MonthlyReturns: monthlyReturns(values, a.cfg.PeriodsPerYear),
	}
}

// monthlyReturns chunks the value series into trading-month windows
// (periodsPerYear / 12) and returns the simple return of each full window.
func monthlyReturns(values []float64, periodsPerYear int) []float64 {
	window := periodsPerYear / 12
	if window < 1 {
		window = 1
	}
	if len(values) <= window {
		return nil
	}

	var months []float64
	for start := 0; start+window < len(values); start += window {
		first := values[start]
		last := values[start+window]
		if first == 0 {
			months = append(months, 0)
			continue
		}
		months = append(months, last/first-1)
	}
	return months
}
