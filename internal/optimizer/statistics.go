package optimizer

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/jaeyoung0503/quant-platform-sub000/pkg/formulas"
)

// DefaultLookbackDays is one year of trading days.
const DefaultLookbackDays = 252

// EstimateStatistics builds annualized expected returns and a covariance
// matrix from a symbol -> close-price table. Each series is restricted to
// the last `lookback` periods (all available data, with a warning, when
// shorter); series are then truncated to the shortest common length so the
// return matrix is rectangular.
//
// expected_returns = mean(per-period returns) * periodsPerYear
// covariance       = sample cov(per-period returns) * periodsPerYear,
// with Ledoit-Wolf style shrinkage towards the constant-correlation target
// for conditioning.
func (o *Optimizer) EstimateStatistics(priceTable map[string][]float64) (*Statistics, error) {
	if len(priceTable) == 0 {
		return nil, fmt.Errorf("empty price table")
	}

	lookback := o.cfg.LookbackDays
	if lookback <= 0 {
		lookback = DefaultLookbackDays
	}

	symbols := make([]string, 0, len(priceTable))
	for symbol := range priceTable {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	if cached := o.cachedStatistics(symbols, lookback); cached != nil {
		return cached, nil
	}

	// Window each series and convert to per-period returns.
	returnsBySymbol := make(map[string][]float64, len(symbols))
	minLen := -1
	for _, symbol := range symbols {
		prices := priceTable[symbol]
		if len(prices) < 2 {
			return nil, fmt.Errorf("symbol %s: need at least 2 prices, got %d", symbol, len(prices))
		}
		if len(prices) > lookback {
			prices = prices[len(prices)-lookback:]
		} else if len(prices) < lookback {
			o.log.Warn().
				Str("symbol", symbol).
				Int("available", len(prices)).
				Int("lookback", lookback).
				Msg("Fewer periods than lookback window, using all available data")
		}
		rets := formulas.CalculateReturns(prices)
		returnsBySymbol[symbol] = rets
		if minLen < 0 || len(rets) < minLen {
			minLen = len(rets)
		}
	}
	if minLen < 2 {
		return nil, fmt.Errorf("insufficient overlapping history: %d return observations", minLen)
	}

	// Truncate to the shortest common tail.
	for symbol, rets := range returnsBySymbol {
		if len(rets) > minLen {
			returnsBySymbol[symbol] = rets[len(rets)-minLen:]
		}
	}

	periodsPerYear := float64(o.cfg.PeriodsPerYear)

	mu := make([]float64, len(symbols))
	for i, symbol := range symbols {
		mu[i] = stat.Mean(returnsBySymbol[symbol], nil) * periodsPerYear
	}

	sample, err := sampleCovariance(returnsBySymbol, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate sample covariance: %w", err)
	}
	shrunk := applyShrinkage(sample)

	n := len(symbols)
	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sigma.Set(i, j, shrunk[i][j]*periodsPerYear)
		}
	}

	stats := &Statistics{
		Symbols:         symbols,
		ExpectedReturns: mu,
		Covariance:      sigma,
		Periods:         minLen,
	}

	o.log.Debug().
		Int("num_symbols", n).
		Int("observations", minLen).
		Msg("Estimated return and covariance statistics")

	o.storeStatistics(symbols, lookback, stats)
	return stats, nil
}

// sampleCovariance calculates the symmetric sample covariance matrix of the
// per-period returns in symbol order.
func sampleCovariance(returns map[string][]float64, symbols []string) ([][]float64, error) {
	n := len(symbols)
	if n == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}

	var length int
	for _, symbol := range symbols {
		ret, ok := returns[symbol]
		if !ok {
			return nil, fmt.Errorf("missing returns for symbol %s", symbol)
		}
		if length == 0 {
			length = len(ret)
		}
		if len(ret) != length {
			return nil, fmt.Errorf("inconsistent return lengths: expected %d, got %d for %s", length, len(ret), symbol)
		}
	}
	if length < 2 {
		return nil, fmt.Errorf("insufficient data: need at least 2 observations, got %d", length)
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := stat.Covariance(returns[symbols[i]], returns[symbols[j]], nil)
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return cov, nil
}

// applyShrinkage shrinks the sample covariance towards a constant-correlation
// target. The intensity is estimated from the dispersion of the sample
// elements and capped at 0.5 so the sample structure always dominates.
func applyShrinkage(sample [][]float64) [][]float64 {
	n := len(sample)
	if n < 2 {
		return sample
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sample[i][i]
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sample[i][j]
			}
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1))

	target := func(i, j int) float64 {
		if i == j {
			return avgVar
		}
		return avgCov
	}

	shrinkage := 0.2
	if avgVar > 0 {
		var sumSqDiff, sumSq, sum float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				d := sample[i][j] - target(i, j)
				sumSqDiff += d * d
				sum += sample[i][j]
				sumSq += sample[i][j] * sample[i][j]
			}
		}
		count := float64(n * n)
		meanSqDiff := sumSqDiff / count
		varSample := sumSq/count - (sum/count)*(sum/count)
		if varSample > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0.0, varSample/(varSample+meanSqDiff)))
		}
	}

	shrunk := make([][]float64, n)
	for i := 0; i < n; i++ {
		shrunk[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			shrunk[i][j] = (1-shrinkage)*sample[i][j] + shrinkage*target(i, j)
		}
	}
	return shrunk
}
