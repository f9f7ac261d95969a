package formulas

// MaxDrawdown calculates the maximum drawdown of a value series as a
// negative percentage: the minimum over time of (value - peak) / peak.
// A monotonically rising series has a drawdown of 0.
func MaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	maxDD := 0.0
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (v - peak) / peak
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// DrawdownMetrics describes the drawdown state of a value series.
type DrawdownMetrics struct {
	MaxDrawdown     float64 `json:"max_drawdown"`     // Most negative drawdown, e.g. -0.25 for a 25% decline
	CurrentDrawdown float64 `json:"current_drawdown"` // Drawdown of the last value from the running peak
	PeriodsInDD     int     `json:"periods_in_drawdown"`
	PeakValue       float64 `json:"peak_value"`
	CurrentValue    float64 `json:"current_value"`
}

// CalculateDrawdownMetrics computes max/current drawdown plus peak context.
func CalculateDrawdownMetrics(values []float64) DrawdownMetrics {
	if len(values) < 2 {
		return DrawdownMetrics{}
	}

	maxDD := 0.0
	peak := values[0]
	peakIndex := 0
	for i, v := range values {
		if v > peak {
			peak = v
			peakIndex = i
		}
		if peak > 0 {
			dd := (v - peak) / peak
			if dd < maxDD {
				maxDD = dd
			}
		}
	}

	current := values[len(values)-1]
	currentDD := 0.0
	if peak > 0 {
		currentDD = (current - peak) / peak
	}

	return DrawdownMetrics{
		MaxDrawdown:     maxDD,
		CurrentDrawdown: currentDD,
		PeriodsInDD:     len(values) - 1 - peakIndex,
		PeakValue:       peak,
		CurrentValue:    current,
	}
}
