package formulas

// ValueAtRisk returns the p-th percentile of the per-period returns
// (p in [0,1], typically 0.05). The result is negative when the tail holds
// losses.
func ValueAtRisk(returns []float64, p float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return Percentile(returns, p)
}

// ConditionalVaR is the mean of the returns at or below the p-th percentile.
// It measures the expected loss given that the VaR threshold is breached.
func ConditionalVaR(returns []float64, p float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	threshold := ValueAtRisk(returns, p)
	var tail []float64
	for _, r := range returns {
		if r <= threshold {
			tail = append(tail, r)
		}
	}
	if len(tail) == 0 {
		return threshold
	}
	return Mean(tail)
}
