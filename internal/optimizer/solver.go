package optimizer

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"

	"github.com/jaeyoung0503/quant-platform-sub000/pkg/formulas"
)

// penaltyWeight is the quadratic penalty applied to constraint violations
// (budget sum and target-return equality) in the solver objectives.
const penaltyWeight = 1000.0

// MinVariance minimizes portfolio standard deviation sqrt(w'Sigma w) subject
// to sum(w)=1 and the configured weight bounds. On solver failure the result
// falls back to equal weighting and is marked as a fallback.
func (o *Optimizer) MinVariance(stats *Statistics) Result {
	weights, err := o.solveMinVariance(stats, nil)
	if err != nil {
		o.log.Warn().Err(err).Msg("Min-variance solve failed, falling back to equal weights")
		return o.fallbackResult(MethodMinVariance, stats)
	}
	return o.buildResult(MethodMinVariance, weights, stats, false)
}

// MaxSharpe maximizes (mu'w - rf) / sqrt(w'Sigma w) under the same
// constraints as MinVariance.
func (o *Optimizer) MaxSharpe(stats *Statistics) Result {
	weights, err := o.solveMaxSharpe(stats)
	if err != nil {
		o.log.Warn().Err(err).Msg("Max-Sharpe solve failed, falling back to equal weights")
		return o.fallbackResult(MethodMaxSharpe, stats)
	}
	return o.buildResult(MethodMaxSharpe, weights, stats, false)
}

// EfficientFrontier samples target returns linearly between the minimum and
// maximum single-asset expected return and solves the
// minimize-variance-at-target problem at each point. Points where the solver
// fails are discarded; the survivors come back in return-ascending order.
func (o *Optimizer) EfficientFrontier(stats *Statistics) []FrontierPoint {
	if len(stats.Symbols) < 2 {
		return nil
	}

	minRet, maxRet := stats.ExpectedReturns[0], stats.ExpectedReturns[0]
	for _, r := range stats.ExpectedReturns[1:] {
		minRet = math.Min(minRet, r)
		maxRet = math.Max(maxRet, r)
	}
	if maxRet <= minRet {
		return nil
	}

	points := make([]FrontierPoint, 0, o.cfg.FrontierPoints)
	step := (maxRet - minRet) / float64(o.cfg.FrontierPoints-1)
	failed := 0

	for i := 0; i < o.cfg.FrontierPoints; i++ {
		target := minRet + float64(i)*step
		weights, err := o.solveMinVariance(stats, &target)
		if err != nil {
			failed++
			continue
		}
		ret, vol := portfolioStatistics(weights, stats)
		points = append(points, FrontierPoint{
			TargetReturn: target,
			Return:       ret,
			Volatility:   vol,
			SharpeRatio:  formulas.SharpeRatio(ret, vol, o.cfg.RiskFreeRate),
			Weights:      weights,
		})
	}

	if failed > 0 {
		o.log.Debug().Int("failed_points", failed).Int("solved_points", len(points)).
			Msg("Efficient frontier sweep complete")
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Return < points[j].Return })
	return points
}

// solveMinVariance minimizes w'Sigma w + penalty*(sum(w)-1)^2, plus an
// additional penalty*(mu'w - target)^2 equality term when targetReturn is
// non-nil (the efficient-frontier formulation).
func (o *Optimizer) solveMinVariance(stats *Statistics, targetReturn *float64) (map[string]float64, error) {
	n := len(stats.Symbols)
	mu := stats.ExpectedReturns
	sigma := stats.Covariance
	lower, upper := o.weightBounds()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x, lower, upper)

			var variance float64
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					variance += w[i] * w[j] * sigma.At(i, j)
				}
			}

			obj := variance
			obj += penaltyWeight * square(sum(w)-1)
			if targetReturn != nil {
				obj += penaltyWeight * square(dot(mu, w)-*targetReturn)
			}
			return obj
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x, lower, upper)

			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * sigma.At(i, j) * w[j]
				}
			}

			budgetGap := sum(w) - 1
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * budgetGap
			}
			if targetReturn != nil {
				returnGap := dot(mu, w) - *targetReturn
				for i := 0; i < n; i++ {
					grad[i] += 2 * penaltyWeight * returnGap * mu[i]
				}
			}
		},
	}

	return o.runSolve(problem, stats)
}

// solveMaxSharpe minimizes -(mu'w - rf)/sqrt(w'Sigma w) under the budget
// penalty.
func (o *Optimizer) solveMaxSharpe(stats *Statistics) (map[string]float64, error) {
	n := len(stats.Symbols)
	mu := stats.ExpectedReturns
	sigma := stats.Covariance
	rf := o.cfg.RiskFreeRate
	lower, upper := o.weightBounds()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x, lower, upper)

			var ret, variance float64
			for i := 0; i < n; i++ {
				ret += mu[i] * w[i]
				for j := 0; j < n; j++ {
					variance += w[i] * w[j] * sigma.At(i, j)
				}
			}
			stdDev := math.Sqrt(math.Max(variance, 1e-10))

			obj := -(ret - rf) / stdDev
			obj += penaltyWeight * square(sum(w)-1)
			return obj
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x, lower, upper)

			var ret, variance float64
			for i := 0; i < n; i++ {
				ret += mu[i] * w[i]
				for j := 0; j < n; j++ {
					variance += w[i] * w[j] * sigma.At(i, j)
				}
			}
			stdDev := math.Sqrt(math.Max(variance, 1e-10))

			for i := 0; i < n; i++ {
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * sigma.At(i, j) * w[j]
				}
				grad[i] = -mu[i]/stdDev + (ret-rf)*dVariance/(2*stdDev*stdDev*stdDev)
			}

			budgetGap := sum(w) - 1
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * budgetGap
			}
		},
	}

	return o.runSolve(problem, stats)
}

// runSolve minimizes the problem starting from equal weights with BFGS,
// retries with Nelder-Mead on failure, then projects and normalizes the
// solution into a weight map.
func (o *Optimizer) runSolve(problem optimize.Problem, stats *Statistics) (map[string]float64, error) {
	n := len(stats.Symbols)
	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1 / float64(n)
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !converged(result.Status) {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
		if !converged(result.Status) {
			return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
		}
	}

	lower, upper := o.weightBounds()
	final := projectToBounds(result.X, lower, upper)

	total := sum(final)
	if math.Abs(total) < 1e-10 {
		return nil, fmt.Errorf("degenerate solution: weights sum to %v", total)
	}

	weights := make(map[string]float64, n)
	for i, symbol := range stats.Symbols {
		w := final[i] / total
		if !o.cfg.AllowShort {
			w = math.Max(0, w)
		}
		weights[symbol] = w
	}

	// Renormalize after clamping so the weights sum to exactly 1.
	total = 0
	for _, w := range weights {
		total += w
	}
	if total > 0 {
		for symbol := range weights {
			weights[symbol] /= total
		}
	}
	return weights, nil
}

func (o *Optimizer) fallbackResult(method Method, stats *Statistics) Result {
	weights := make(map[string]float64, len(stats.Symbols))
	for _, symbol := range stats.Symbols {
		weights[symbol] = 1 / float64(len(stats.Symbols))
	}
	r := o.buildResult(method, weights, stats, true)
	return r
}

func (o *Optimizer) weightBounds() (lower, upper float64) {
	if o.cfg.AllowShort {
		return -1, 1
	}
	return 0, 1
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	default:
		return false
	}
}

func projectToBounds(x []float64, lower, upper float64) []float64 {
	proj := make([]float64, len(x))
	for i, v := range x {
		proj[i] = math.Max(lower, math.Min(upper, v))
	}
	return proj
}

func sum(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func square(x float64) float64 { return x * x }
