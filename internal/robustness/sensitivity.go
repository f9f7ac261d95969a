package robustness

import (
	"context"

	"github.com/google/uuid"
)

// EvaluateFunc reruns the pipeline with one parameter set to the given value
// and returns the resulting average Sharpe ratio.
type EvaluateFunc func(ctx context.Context, value float64) (float64, error)

// SensitivityPoint is the outcome of one parameter value.
type SensitivityPoint struct {
	Value       float64 `json:"value"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	Delta       float64 `json:"delta"` // Sharpe difference vs the baseline
}

// SensitivityReport collects the Sharpe deltas of a one-parameter sweep.
type SensitivityReport struct {
	RunID          string             `json:"run_id"`
	Parameter      string             `json:"parameter"`
	BaselineSharpe float64            `json:"baseline_sharpe"`
	Points         []SensitivityPoint `json:"points"`
	Skipped        int                `json:"skipped"`
	NoData         bool               `json:"no_data,omitempty"`
}

// Sensitivity varies one named strategy parameter across the supplied values
// and reports the Sharpe delta against the baseline per value. Values whose
// evaluation fails are skipped.
func (t *Tester) Sensitivity(
	ctx context.Context,
	parameter string,
	baselineSharpe float64,
	values []float64,
	evaluate EvaluateFunc,
) (*SensitivityReport, error) {
	report := &SensitivityReport{
		RunID:          uuid.NewString(),
		Parameter:      parameter,
		BaselineSharpe: baselineSharpe,
	}

	for _, value := range values {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}

		sharpe, err := evaluate(ctx, value)
		if err != nil {
			t.log.Debug().Err(err).
				Str("parameter", parameter).
				Float64("value", value).
				Msg("Sensitivity point skipped")
			report.Skipped++
			continue
		}
		report.Points = append(report.Points, SensitivityPoint{
			Value:       value,
			SharpeRatio: sharpe,
			Delta:       sharpe - baselineSharpe,
		})
	}

	if len(report.Points) == 0 {
		report.NoData = true
		t.log.Warn().Str("parameter", parameter).Msg("All sensitivity points skipped")
	}
	return report, nil
}
