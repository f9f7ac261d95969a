package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalReturn(t *testing.T) {
	// A doubled series is a 100% total return.
	assert.InDelta(t, 1.0, TotalReturn([]float64{10000, 12000, 20000}), 1e-12)
	assert.InDelta(t, -0.5, TotalReturn([]float64{100, 80, 50}), 1e-12)

	// Degenerate inputs resolve to 0.
	assert.Equal(t, 0.0, TotalReturn(nil))
	assert.Equal(t, 0.0, TotalReturn([]float64{100}))
	assert.Equal(t, 0.0, TotalReturn([]float64{0, 100}))
}

func TestAnnualizedReturn(t *testing.T) {
	// Over exactly one year the annualized rate equals the total return.
	assert.InDelta(t, 0.10, AnnualizedReturn(0.10, 365), 1e-12)

	// Over two years a 21% total return annualizes to 10%.
	assert.InDelta(t, 0.10, AnnualizedReturn(0.21, 730), 1e-12)

	assert.Equal(t, 0.0, AnnualizedReturn(0.10, 0))
	assert.Equal(t, -1.0, AnnualizedReturn(-1.0, 365))
}

func TestSharpeRatio(t *testing.T) {
	assert.InDelta(t, 0.5, SharpeRatio(0.12, 0.20, 0.02), 1e-12)
	assert.Equal(t, 0.0, SharpeRatio(0.12, 0, 0.02))
}

func TestSortinoRatio(t *testing.T) {
	returns := []float64{0.02, -0.01, 0.03, -0.02, 0.01}
	got := SortinoRatio(0.12, 0.02, returns, 252)

	downside := DownsideDeviation(returns, 252)
	require.Greater(t, downside, 0.0)
	assert.InDelta(t, 0.10/downside, got, 1e-12)

	// No negative returns means no downside deviation, so the ratio is 0.
	assert.Equal(t, 0.0, SortinoRatio(0.12, 0.02, []float64{0.01, 0.02}, 252))
}

func TestCalmarRatio(t *testing.T) {
	assert.InDelta(t, 0.5, CalmarRatio(0.10, -0.20), 1e-12)
	assert.Equal(t, 0.0, CalmarRatio(0.10, 0))
}

func TestWinRate(t *testing.T) {
	assert.InDelta(t, 0.5, WinRate([]float64{0.01, -0.01, 0.02, -0.02}), 1e-12)
	assert.Equal(t, 0.0, WinRate(nil))

	// Zero returns do not count as wins.
	assert.InDelta(t, 0.25, WinRate([]float64{0.01, 0, 0, -0.01}), 1e-12)
}

func TestMaxDrawdown(t *testing.T) {
	// Monotonically rising series never draws down.
	assert.Equal(t, 0.0, MaxDrawdown([]float64{100, 110, 120, 130}))

	// 120 -> 90 is a 25% decline, reported as a negative fraction.
	assert.InDelta(t, -0.25, MaxDrawdown([]float64{100, 120, 90, 110}), 1e-12)

	assert.Equal(t, 0.0, MaxDrawdown([]float64{100}))
}

func TestCalculateDrawdownMetrics(t *testing.T) {
	m := CalculateDrawdownMetrics([]float64{100, 120, 90, 110})
	assert.InDelta(t, -0.25, m.MaxDrawdown, 1e-12)
	assert.InDelta(t, (110.0-120.0)/120.0, m.CurrentDrawdown, 1e-12)
	assert.Equal(t, 120.0, m.PeakValue)
	assert.Equal(t, 110.0, m.CurrentValue)
	assert.Equal(t, 2, m.PeriodsInDD)
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 121})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, 0.10, returns[1], 1e-12)

	assert.Empty(t, CalculateReturns([]float64{100}))
}

func TestAnnualizedVolatility(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.01, -0.01}
	want := 0.01 * math.Sqrt(4.0/3.0) * math.Sqrt(252)
	assert.InDelta(t, want, AnnualizedVolatility(returns), 1e-12)

	// Non-daily periodicity changes only the annualization factor.
	monthly := AnnualizedVolatilityN(returns, 12)
	assert.InDelta(t, want*math.Sqrt(12.0/252.0), monthly, 1e-12)

	assert.Equal(t, 0.0, AnnualizedVolatility(nil))
	assert.Equal(t, 0.0, AnnualizedVolatility([]float64{0.01}))
}

func TestMeanMedianStdDev(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3.0, Mean(data), 1e-12)
	assert.InDelta(t, 3.0, Median(data), 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), StdDev(data), 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 0.0, StdDev([]float64{1}))
}

func TestPercentile(t *testing.T) {
	data := []float64{5, 1, 4, 2, 3}
	assert.InDelta(t, 1.0, Percentile(data, 0.05), 1e-12)
	assert.InDelta(t, 5.0, Percentile(data, 1.0), 1e-12)
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
}

func TestValueAtRisk(t *testing.T) {
	returns := []float64{-0.05, -0.02, 0.01, 0.02, 0.03}

	// With five observations the 5% tail is the single worst return.
	assert.InDelta(t, -0.05, ValueAtRisk(returns, 0.05), 1e-12)
	assert.InDelta(t, -0.05, ConditionalVaR(returns, 0.05), 1e-12)

	// A wider tail averages everything at or below the threshold.
	assert.InDelta(t, -0.02, ValueAtRisk(returns, 0.40), 1e-12)
	assert.InDelta(t, -0.035, ConditionalVaR(returns, 0.40), 1e-12)

	assert.Equal(t, 0.0, ValueAtRisk(nil, 0.05))
	assert.Equal(t, 0.0, ConditionalVaR(nil, 0.05))
}

func TestCorrelationCovariance(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{2, 4, 6, 8}
	assert.InDelta(t, 1.0, Correlation(x, y), 1e-12)
	assert.Greater(t, Covariance(x, y), 0.0)

	// Mismatched lengths resolve to 0 instead of panicking.
	assert.Equal(t, 0.0, Correlation(x, y[:3]))
	assert.Equal(t, 0.0, Covariance(x, nil))
}
