package formulas

import "math"

// TotalReturn calculates the simple return between the first and last value
// of a series: last/first - 1.
func TotalReturn(values []float64) float64 {
	if len(values) < 2 || values[0] == 0 {
		return 0
	}
	return values[len(values)-1]/values[0] - 1
}

// AnnualizedReturn converts a total return over horizonDays calendar days
// into an annualized rate: (1+total)^(365/horizon) - 1.
func AnnualizedReturn(totalReturn float64, horizonDays int) float64 {
	if horizonDays <= 0 {
		return 0
	}
	base := 1 + totalReturn
	if base <= 0 {
		// Total loss or worse; the power formula is undefined here.
		return -1
	}
	return math.Pow(base, 365.0/float64(horizonDays)) - 1
}

// SharpeRatio calculates the Sharpe ratio from an annualized return, an
// annualized volatility and an annual risk-free rate. Zero volatility
// yields 0.
func SharpeRatio(annualReturn, volatility, riskFreeRate float64) float64 {
	if volatility == 0 {
		return 0
	}
	return (annualReturn - riskFreeRate) / volatility
}

// SortinoRatio is the Sharpe numerator divided by the annualized standard
// deviation of negative per-period returns only. If there are no negative
// returns the ratio is 0.
func SortinoRatio(annualReturn, riskFreeRate float64, returns []float64, periodsPerYear int) float64 {
	downside := DownsideDeviation(returns, periodsPerYear)
	if downside == 0 {
		return 0
	}
	return (annualReturn - riskFreeRate) / downside
}

// DownsideDeviation is the annualized standard deviation of the negative
// per-period returns.
func DownsideDeviation(returns []float64, periodsPerYear int) float64 {
	var negative []float64
	for _, r := range returns {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	return AnnualizedVolatilityN(negative, periodsPerYear)
}

// CalmarRatio is the annualized return divided by the magnitude of the
// maximum drawdown. Zero drawdown yields 0.
func CalmarRatio(annualReturn, maxDrawdown float64) float64 {
	dd := math.Abs(maxDrawdown)
	if dd == 0 {
		return 0
	}
	return annualReturn / dd
}

// WinRate is the fraction of per-period returns that are strictly positive.
func WinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}
