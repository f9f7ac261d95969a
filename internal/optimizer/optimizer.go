package optimizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/jaeyoung0503/quant-platform-sub000/pkg/formulas"
)

// MinVolatilityFloor guards inverse-volatility formulas against
// zero-variance assets.
const MinVolatilityFloor = 1e-4

// heuristicFloor is the minimum contribution of an asset in the
// return-weighted and Sharpe-weighted heuristics.
const heuristicFloor = 0.1

// Config holds the optimizer parameters.
type Config struct {
	LookbackDays   int     // history window for statistics, default 252
	PeriodsPerYear int     // annualization constant, default 252
	RiskFreeRate   float64 // annual, e.g. 0.02
	AllowShort     bool    // permit weights in [-1, 1] instead of [0, 1]
	FrontierPoints int     // efficient frontier samples, default 100
	CacheTTL       time.Duration
}

// DefaultConfig returns the standard optimizer parameters.
func DefaultConfig() Config {
	return Config{
		LookbackDays:   DefaultLookbackDays,
		PeriodsPerYear: formulas.TradingDaysPerYear,
		RiskFreeRate:   0.02,
		FrontierPoints: 100,
		CacheTTL:       24 * time.Hour,
	}
}

// StatisticsCache caches serialized statistics between optimizer calls.
// The calculations package provides the sqlite-backed implementation.
type StatisticsCache interface {
	Get(kind, key string) ([]byte, bool)
	Set(kind, key string, data []byte, ttl time.Duration) error
}

// Optimizer computes allocation weights from historical price tables.
type Optimizer struct {
	cfg   Config
	cache StatisticsCache
	log   zerolog.Logger
}

// New creates an Optimizer.
func New(cfg Config, log zerolog.Logger) *Optimizer {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = formulas.TradingDaysPerYear
	}
	if cfg.FrontierPoints <= 0 {
		cfg.FrontierPoints = 100
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &Optimizer{
		cfg: cfg,
		log: log.With().Str("component", "optimizer").Logger(),
	}
}

// SetCache enables caching of estimated statistics. Optional; without it
// statistics are computed fresh on every call.
func (o *Optimizer) SetCache(cache StatisticsCache) {
	o.cache = cache
}

// OptimizeStrategyPortfolio estimates statistics once, computes every
// allocation method plus the efficient frontier, and recommends the method
// with the highest realized Sharpe. All weight mappings are reported so the
// caller can compare.
func (o *Optimizer) OptimizeStrategyPortfolio(priceTable map[string][]float64) (*Recommendation, error) {
	if len(priceTable) < 2 {
		// Optimization over fewer than two assets is undefined; report an
		// equal-weight fallback instead of failing.
		symbols := make([]string, 0, len(priceTable))
		for symbol := range priceTable {
			symbols = append(symbols, symbol)
		}
		o.log.Warn().Int("num_assets", len(symbols)).
			Msg("Fewer than 2 assets, returning equal-weight fallback")
		fallback := equalWeightFallback(symbols)
		return &Recommendation{
			Results:     []Result{fallback},
			Recommended: fallback.Method,
		}, nil
	}

	stats, err := o.EstimateStatistics(priceTable)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate statistics: %w", err)
	}

	results := []Result{
		o.MinVariance(stats),
		o.MaxSharpe(stats),
		o.RiskParity(stats),
		o.ReturnWeighted(stats),
		o.SharpeWeighted(stats),
		o.EqualWeight(stats),
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.SharpeRatio > best.SharpeRatio {
			best = r
		}
	}

	o.log.Info().
		Str("recommended", string(best.Method)).
		Float64("sharpe", best.SharpeRatio).
		Int("num_assets", len(stats.Symbols)).
		Msg("Portfolio optimization complete")

	return &Recommendation{
		Results:     results,
		Frontier:    o.EfficientFrontier(stats),
		Recommended: best.Method,
	}, nil
}

// RiskParity computes closed-form inverse-volatility weights:
// w_i = (1/sigma_i) / sum_j(1/sigma_j), with sigma floored so a
// zero-variance asset cannot dominate the allocation.
func (o *Optimizer) RiskParity(stats *Statistics) Result {
	n := len(stats.Symbols)
	inverse := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		vol := math.Max(stats.AssetVolatility(i), MinVolatilityFloor)
		inverse[i] = 1 / vol
		sum += inverse[i]
	}

	weights := make(map[string]float64, n)
	for i, symbol := range stats.Symbols {
		weights[symbol] = inverse[i] / sum
	}
	return o.buildResult(MethodRiskParity, weights, stats, false)
}

// ReturnWeighted allocates proportionally to each asset's annualized return,
// floored at 0.1 so losers keep a token weight.
func (o *Optimizer) ReturnWeighted(stats *Statistics) Result {
	return o.flooredWeighting(MethodReturnWeighted, stats, func(i int) float64 {
		return stats.ExpectedReturns[i]
	})
}

// SharpeWeighted allocates proportionally to each asset's standalone Sharpe
// ratio, floored at 0.1.
func (o *Optimizer) SharpeWeighted(stats *Statistics) Result {
	return o.flooredWeighting(MethodSharpeWeighted, stats, func(i int) float64 {
		vol := math.Max(stats.AssetVolatility(i), MinVolatilityFloor)
		return (stats.ExpectedReturns[i] - o.cfg.RiskFreeRate) / vol
	})
}

func (o *Optimizer) flooredWeighting(method Method, stats *Statistics, score func(i int) float64) Result {
	n := len(stats.Symbols)
	raw := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		raw[i] = math.Max(heuristicFloor, score(i))
		sum += raw[i]
	}
	weights := make(map[string]float64, n)
	for i, symbol := range stats.Symbols {
		weights[symbol] = raw[i] / sum
	}
	return o.buildResult(method, weights, stats, false)
}

// EqualWeight is the 1/N baseline.
func (o *Optimizer) EqualWeight(stats *Statistics) Result {
	weights := make(map[string]float64, len(stats.Symbols))
	for _, symbol := range stats.Symbols {
		weights[symbol] = 1 / float64(len(stats.Symbols))
	}
	return o.buildResult(MethodEqualWeight, weights, stats, false)
}

// buildResult attaches the portfolio statistics implied by the estimates to
// a weight mapping.
func (o *Optimizer) buildResult(method Method, weights map[string]float64, stats *Statistics, fallback bool) Result {
	ret, vol := portfolioStatistics(weights, stats)
	return Result{
		Method:         method,
		Weights:        weights,
		ExpectedReturn: ret,
		Volatility:     vol,
		SharpeRatio:    formulas.SharpeRatio(ret, vol, o.cfg.RiskFreeRate),
		Fallback:       fallback,
	}
}

// portfolioStatistics computes mu'w and sqrt(w'Sigma w) for a weight map.
func portfolioStatistics(weights map[string]float64, stats *Statistics) (ret, vol float64) {
	n := len(stats.Symbols)
	w := make([]float64, n)
	for i, symbol := range stats.Symbols {
		w[i] = weights[symbol]
		ret += stats.ExpectedReturns[i] * w[i]
	}
	var variance float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			variance += w[i] * w[j] * stats.Covariance.At(i, j)
		}
	}
	if variance > 0 {
		vol = math.Sqrt(variance)
	}
	return ret, vol
}

// equalWeightFallback builds the degenerate result used when the universe is
// too small or a solver could not converge and no statistics are usable.
func equalWeightFallback(symbols []string) Result {
	weights := make(map[string]float64, len(symbols))
	if len(symbols) > 0 {
		for _, symbol := range symbols {
			weights[symbol] = 1 / float64(len(symbols))
		}
	}
	return Result{Method: MethodEqualWeight, Weights: weights, Fallback: true}
}

// Statistics cache plumbing.

type cachedStatistics struct {
	Symbols    []string    `msgpack:"symbols"`
	Mu         []float64   `msgpack:"mu"`
	Covariance [][]float64 `msgpack:"cov"`
	Periods    int         `msgpack:"periods"`
}

// hashSymbols builds a deterministic cache key from a sorted symbol list and
// the lookback window.
func hashSymbols(symbols []string, lookback int) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", strings.Join(sorted, ","), lookback)))
	return hex.EncodeToString(h[:16])
}

func (o *Optimizer) cachedStatistics(symbols []string, lookback int) *Statistics {
	if o.cache == nil {
		return nil
	}
	data, ok := o.cache.Get("statistics", hashSymbols(symbols, lookback))
	if !ok {
		return nil
	}
	var cached cachedStatistics
	if err := msgpack.Unmarshal(data, &cached); err != nil {
		o.log.Warn().Err(err).Msg("Failed to decode cached statistics, recalculating")
		return nil
	}
	n := len(cached.Symbols)
	if n == 0 || len(cached.Covariance) != n {
		return nil
	}
	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		if len(cached.Covariance[i]) != n {
			return nil
		}
		for j := 0; j < n; j++ {
			sigma.Set(i, j, cached.Covariance[i][j])
		}
	}
	o.log.Debug().Int("num_symbols", n).Msg("Using cached statistics")
	return &Statistics{
		Symbols:         cached.Symbols,
		ExpectedReturns: cached.Mu,
		Covariance:      sigma,
		Periods:         cached.Periods,
	}
}

func (o *Optimizer) storeStatistics(symbols []string, lookback int, stats *Statistics) {
	if o.cache == nil {
		return
	}
	n := len(stats.Symbols)
	cov := make([][]float64, n)
	for i := 0; i < n; i++ {
		cov[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			cov[i][j] = stats.Covariance.At(i, j)
		}
	}
	data, err := msgpack.Marshal(cachedStatistics{
		Symbols:    stats.Symbols,
		Mu:         stats.ExpectedReturns,
		Covariance: cov,
		Periods:    stats.Periods,
	})
	if err != nil {
		return
	}
	if err := o.cache.Set("statistics", hashSymbols(symbols, lookback), data, o.cfg.CacheTTL); err != nil {
		o.log.Warn().Err(err).Msg("Failed to cache statistics")
	}
}
