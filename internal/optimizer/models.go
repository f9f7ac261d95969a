// Package optimizer computes allocation weights over a universe of symbols
// from their historical price series: solver-based mean-variance methods,
// closed-form risk parity, cheap heuristic weightings and the efficient
// frontier, plus a recommendation across all of them.
package optimizer

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Method labels one allocation approach.
type Method string

const (
	MethodMinVariance    Method = "min_variance"
	MethodMaxSharpe      Method = "max_sharpe"
	MethodRiskParity     Method = "risk_parity"
	MethodReturnWeighted Method = "return_weighted"
	MethodSharpeWeighted Method = "sharpe_weighted"
	MethodEqualWeight    Method = "equal_weight"
)

// Result is one optimizer output: a full weight mapping plus the portfolio
// statistics implied by the estimated returns and covariance. Results are
// comparable across methods by Sharpe ratio.
type Result struct {
	Method         Method             `json:"method"`
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    float64            `json:"sharpe_ratio"`

	// Fallback marks results produced by the equal-weight fallback after a
	// solver failed to converge (or the universe was too small to optimize).
	Fallback bool `json:"fallback,omitempty"`
}

// FrontierPoint is one solved point on the efficient frontier.
type FrontierPoint struct {
	TargetReturn float64            `json:"target_return"`
	Return       float64            `json:"return"`
	Volatility   float64            `json:"volatility"`
	SharpeRatio  float64            `json:"sharpe_ratio"`
	Weights      map[string]float64 `json:"weights,omitempty"`
}

// Recommendation bundles every computed method with a pointer to the best
// one by realized Sharpe.
type Recommendation struct {
	Results     []Result        `json:"results"`
	Frontier    []FrontierPoint `json:"frontier,omitempty"`
	Recommended Method          `json:"recommended"`
}

// Best returns the recommended result.
func (r *Recommendation) Best() *Result {
	for i := range r.Results {
		if r.Results[i].Method == r.Recommended {
			return &r.Results[i]
		}
	}
	return nil
}

// Statistics holds the annualized return/covariance estimates the solvers
// consume. Symbols fixes the ordering of the vector and matrix dimensions.
type Statistics struct {
	Symbols         []string
	ExpectedReturns []float64  // annualized mean returns, Symbols order
	Covariance      *mat.Dense // annualized covariance, Symbols order
	Periods         int        // per-period observations used per symbol
}

// AssetVolatility returns the annualized volatility of the i-th asset from
// the covariance diagonal, floored at zero.
func (s *Statistics) AssetVolatility(i int) float64 {
	v := s.Covariance.At(i, i)
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
