package optimizer

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/mat"
)

// twoAssetStats builds a diagonal two-asset case with known analytic
// solutions: vols 20% and 10%, returns 10% and 5%.
func twoAssetStats() *Statistics {
	return &Statistics{
		Symbols:         []string{"AAA", "BBB"},
		ExpectedReturns: []float64{0.10, 0.05},
		Covariance:      mat.NewDense(2, 2, []float64{0.04, 0, 0, 0.01}),
		Periods:         252,
	}
}

func testOptimizer() *Optimizer {
	return New(DefaultConfig(), zerolog.Nop())
}

func assertWeightsValid(t *testing.T, r Result) {
	t.Helper()
	total := 0.0
	for symbol, w := range r.Weights {
		assert.GreaterOrEqual(t, w, -1e-9, "weight of %s", symbol)
		assert.LessOrEqual(t, w, 1+1e-9, "weight of %s", symbol)
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-6, "weights must sum to 1")
}

func TestRiskParity(t *testing.T) {
	r := testOptimizer().RiskParity(twoAssetStats())
	assertWeightsValid(t, r)

	// Inverse-volatility: the half-as-volatile asset gets twice the weight.
	assert.InDelta(t, 1.0/3.0, r.Weights["AAA"], 1e-9)
	assert.InDelta(t, 2.0/3.0, r.Weights["BBB"], 1e-9)
	assert.False(t, r.Fallback)
}

func TestEqualWeight(t *testing.T) {
	r := testOptimizer().EqualWeight(twoAssetStats())
	assertWeightsValid(t, r)
	assert.Equal(t, 0.5, r.Weights["AAA"])

	// Portfolio stats follow from mu'w and w'Sigma w.
	assert.InDelta(t, 0.075, r.ExpectedReturn, 1e-9)
	assert.InDelta(t, math.Sqrt(0.0125), r.Volatility, 1e-9)
}

func TestMinVariance(t *testing.T) {
	opt := testOptimizer()
	stats := twoAssetStats()

	r := opt.MinVariance(stats)
	require.False(t, r.Fallback, "solver should converge on a clean 2-asset case")
	assertWeightsValid(t, r)

	// Analytic minimum-variance weights for a diagonal covariance are
	// proportional to inverse variance: 0.2 / 0.8.
	assert.InDelta(t, 0.2, r.Weights["AAA"], 0.05)
	assert.InDelta(t, 0.8, r.Weights["BBB"], 0.05)

	equal := opt.EqualWeight(stats)
	assert.LessOrEqual(t, r.Volatility, equal.Volatility+1e-9)
}

func TestMaxSharpe(t *testing.T) {
	opt := testOptimizer()
	stats := twoAssetStats()

	r := opt.MaxSharpe(stats)
	require.False(t, r.Fallback)
	assertWeightsValid(t, r)

	// The tangency portfolio cannot do worse than the 1/N baseline.
	equal := opt.EqualWeight(stats)
	assert.GreaterOrEqual(t, r.SharpeRatio+1e-6, equal.SharpeRatio)
}

func TestHeuristicWeightings(t *testing.T) {
	opt := testOptimizer()
	stats := twoAssetStats()

	rw := opt.ReturnWeighted(stats)
	assertWeightsValid(t, rw)
	assert.Greater(t, rw.Weights["AAA"], rw.Weights["BBB"], "higher return earns higher weight")

	sw := opt.SharpeWeighted(stats)
	assertWeightsValid(t, sw)
	// Standalone Sharpes are 0.4 vs 0.3, so AAA still leads.
	assert.Greater(t, sw.Weights["AAA"], sw.Weights["BBB"])
}

func TestFlooredWeightingWithLosers(t *testing.T) {
	stats := &Statistics{
		Symbols:         []string{"DOWN", "UP"},
		ExpectedReturns: []float64{-0.30, 0.10},
		Covariance:      mat.NewDense(2, 2, []float64{0.04, 0, 0, 0.04}),
		Periods:         252,
	}

	r := testOptimizer().ReturnWeighted(stats)
	assertWeightsValid(t, r)

	// The losing asset is floored at 0.1 raw score, keeping a token weight.
	assert.InDelta(t, 0.5, r.Weights["DOWN"], 1e-9)
}

func TestEfficientFrontier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrontierPoints = 20
	opt := New(cfg, zerolog.Nop())

	frontier := opt.EfficientFrontier(twoAssetStats())
	require.NotEmpty(t, frontier)

	for i, pt := range frontier {
		assert.Greater(t, pt.Volatility, 0.0)
		assertWeightsValid(t, Result{Weights: pt.Weights})
		if i > 0 {
			assert.GreaterOrEqual(t, pt.Return, frontier[i-1].Return, "frontier is return-ascending")
		}
	}
}

func TestEfficientFrontierDegenerate(t *testing.T) {
	opt := testOptimizer()

	single := &Statistics{
		Symbols:         []string{"AAA"},
		ExpectedReturns: []float64{0.10},
		Covariance:      mat.NewDense(1, 1, []float64{0.04}),
	}
	assert.Nil(t, opt.EfficientFrontier(single))

	// Identical expected returns leave no return range to sweep.
	flat := twoAssetStats()
	flat.ExpectedReturns = []float64{0.07, 0.07}
	assert.Nil(t, opt.EfficientFrontier(flat))
}

func TestOptimizeStrategyPortfolio(t *testing.T) {
	priceTable := map[string][]float64{
		"AAA": syntheticPrices(300, 100, 0.0006, 0.010, 1.0),
		"BBB": syntheticPrices(300, 50, 0.0004, 0.015, 0.7),
		"CCC": syntheticPrices(300, 200, 0.0002, 0.008, 1.3),
	}

	rec, err := testOptimizer().OptimizeStrategyPortfolio(priceTable)
	require.NoError(t, err)
	require.Len(t, rec.Results, 6)

	for _, r := range rec.Results {
		assertWeightsValid(t, r)
		assert.Len(t, r.Weights, 3)
	}

	best := rec.Best()
	require.NotNil(t, best)
	assert.Equal(t, rec.Recommended, best.Method)
	for _, r := range rec.Results {
		assert.LessOrEqual(t, r.SharpeRatio, best.SharpeRatio+1e-9)
	}
}

func TestOptimizeStrategyPortfolioSingleAsset(t *testing.T) {
	rec, err := testOptimizer().OptimizeStrategyPortfolio(map[string][]float64{
		"ONLY": syntheticPrices(100, 100, 0.0005, 0.01, 1.0),
	})
	require.NoError(t, err)
	require.Len(t, rec.Results, 1)

	r := rec.Results[0]
	assert.True(t, r.Fallback)
	assert.Equal(t, MethodEqualWeight, r.Method)
	assert.Equal(t, 1.0, r.Weights["ONLY"])
}

func TestEstimateStatistics(t *testing.T) {
	opt := testOptimizer()
	priceTable := map[string][]float64{
		"ZZZ": syntheticPrices(300, 100, 0.0006, 0.010, 1.0),
		"AAA": syntheticPrices(280, 50, 0.0004, 0.015, 0.7),
	}

	stats, err := opt.EstimateStatistics(priceTable)
	require.NoError(t, err)

	// Symbol order is sorted and fixes the matrix dimensions.
	assert.Equal(t, []string{"AAA", "ZZZ"}, stats.Symbols)
	assert.Len(t, stats.ExpectedReturns, 2)

	// Both series are windowed to the 252-day lookback, leaving 251 common
	// return observations.
	assert.Equal(t, 251, stats.Periods)

	rows, cols := stats.Covariance.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.InDelta(t, stats.Covariance.At(0, 1), stats.Covariance.At(1, 0), 1e-12)
	assert.Greater(t, stats.Covariance.At(0, 0), 0.0)
	assert.Greater(t, stats.Covariance.At(1, 1), 0.0)
}

func TestEstimateStatisticsErrors(t *testing.T) {
	opt := testOptimizer()

	_, err := opt.EstimateStatistics(nil)
	assert.Error(t, err)

	_, err = opt.EstimateStatistics(map[string][]float64{"AAA": {100}})
	assert.Error(t, err)
}

// memoryCache is a map-backed StatisticsCache for tests.
type memoryCache struct {
	mu    sync.Mutex
	store map[string][]byte
	sets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{store: make(map[string][]byte)}
}

func (c *memoryCache) Get(kind, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.store[kind+"/"+key]
	return data, ok
}

func (c *memoryCache) Set(kind, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[kind+"/"+key] = data
	c.sets++
	return nil
}

func TestStatisticsCaching(t *testing.T) {
	opt := testOptimizer()
	cache := newMemoryCache()
	opt.SetCache(cache)

	priceTable := map[string][]float64{
		"AAA": syntheticPrices(300, 100, 0.0006, 0.010, 1.0),
		"BBB": syntheticPrices(300, 50, 0.0004, 0.015, 0.7),
	}

	first, err := opt.EstimateStatistics(priceTable)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// The second call decodes the cached blob instead of recomputing.
	second, err := opt.EstimateStatistics(priceTable)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	assert.Equal(t, first.Symbols, second.Symbols)
	assert.InDeltaSlice(t, first.ExpectedReturns, second.ExpectedReturns, 1e-12)
	assert.InDelta(t, first.Covariance.At(0, 1), second.Covariance.At(0, 1), 1e-12)
	assert.Equal(t, first.Periods, second.Periods)
}

func TestHashSymbolsOrderInsensitive(t *testing.T) {
	a := hashSymbols([]string{"AAA", "BBB", "CCC"}, 252)
	b := hashSymbols([]string{"CCC", "AAA", "BBB"}, 252)
	assert.Equal(t, a, b)

	// A different lookback keys a different cache entry.
	assert.NotEqual(t, a, hashSymbols([]string{"AAA", "BBB", "CCC"}, 126))
}

// syntheticPrices builds a deterministic wiggly growth series so covariance
// estimates are well conditioned without random inputs.
func syntheticPrices(n int, start, drift, wiggle, phase float64) []float64 {
	prices := make([]float64, n)
	prices[0] = start
	for i := 1; i < n; i++ {
		r := drift + wiggle*math.Sin(float64(i)*phase)
		prices[i] = prices[i-1] * (1 + r)
	}
	return prices
}
