package robustness

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/simulator"
	"github.com/jaeyoung0503/quant-platform-sub000/pkg/formulas"
)

// stabilityEpsilon keeps the stability ratio finite when the per-window
// Sharpe ratios barely vary.
const stabilityEpsilon = 1e-6

// WalkForwardConfig holds the sliding-window parameters, both in calendar
// days.
type WalkForwardConfig struct {
	WindowDays int // width of each evaluation window, default 365
	StepDays   int // forward step between windows, default 30
}

// DefaultWalkForwardConfig returns the standard window parameters.
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{WindowDays: 365, StepDays: 30}
}

// WindowResult is the outcome of one walk-forward window.
type WindowResult struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Bars         int       `json:"bars"`
	TotalReturn  float64   `json:"total_return"`
	AnnualReturn float64   `json:"annual_return"`
	SharpeRatio  float64   `json:"sharpe_ratio"`
	MaxDrawdown  float64   `json:"max_drawdown"`
}

// WalkForwardReport aggregates per-window performance into a stability
// score.
type WalkForwardReport struct {
	RunID       string         `json:"run_id"`
	Symbol      string         `json:"symbol"`
	Windows     []WindowResult `json:"windows"`
	Skipped     int            `json:"skipped"`
	MeanSharpe  float64        `json:"mean_sharpe"`
	StdevSharpe float64        `json:"stdev_sharpe"`

	// Stability = mean(Sharpe) / (stdev(Sharpe) + epsilon), clipped to [0, 10].
	Stability float64 `json:"stability"`
	NoData    bool    `json:"no_data,omitempty"`
}

// WalkForward slides a fixed-width window across the series in fixed steps
// and runs the full pipeline on each windowed slice. Windows with too little
// data or a failing pipeline are skipped; an all-skipped run yields a NoData
// report.
func (t *Tester) WalkForward(
	ctx context.Context,
	series *domain.PriceSeries,
	signalFn SignalFunc,
	cfg WalkForwardConfig,
) (*WalkForwardReport, error) {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 365
	}
	if cfg.StepDays <= 0 {
		cfg.StepDays = 30
	}

	report := &WalkForwardReport{RunID: uuid.NewString(), Symbol: series.Symbol}
	if series.Len() == 0 {
		report.NoData = true
		return report, nil
	}

	first := series.Bars[0].Date
	last := series.Bars[series.Len()-1].Date

	var sharpes []float64
	for start := first; !start.After(last.AddDate(0, 0, -cfg.WindowDays)); start = start.AddDate(0, 0, cfg.StepDays) {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}

		end := start.AddDate(0, 0, cfg.WindowDays)
		window := sliceByDate(series, start, end)
		if window.Len() < simulator.MinimumWindow {
			report.Skipped++
			continue
		}

		metrics, err := t.runPipeline(window, signalFn)
		if err != nil {
			t.log.Debug().Err(err).
				Time("window_start", start).
				Msg("Walk-forward window skipped")
			report.Skipped++
			continue
		}

		report.Windows = append(report.Windows, WindowResult{
			Start:        start,
			End:          end,
			Bars:         window.Len(),
			TotalReturn:  metrics.TotalReturn,
			AnnualReturn: metrics.AnnualReturn,
			SharpeRatio:  metrics.SharpeRatio,
			MaxDrawdown:  metrics.MaxDrawdown,
		})
		sharpes = append(sharpes, metrics.SharpeRatio)
	}

	if len(sharpes) == 0 {
		report.NoData = true
		t.log.Warn().Str("symbol", series.Symbol).Msg("All walk-forward windows skipped")
		return report, nil
	}

	report.MeanSharpe = formulas.Mean(sharpes)
	report.StdevSharpe = formulas.StdDev(sharpes)
	report.Stability = clamp(report.MeanSharpe/(report.StdevSharpe+stabilityEpsilon), 0, 10)

	t.log.Info().
		Str("symbol", series.Symbol).
		Int("windows", len(report.Windows)).
		Int("skipped", report.Skipped).
		Float64("stability", report.Stability).
		Msg("Walk-forward complete")

	return report, nil
}

// sliceByDate returns the bars within [start, end).
func sliceByDate(series *domain.PriceSeries, start, end time.Time) *domain.PriceSeries {
	from, to := -1, series.Len()
	for i, bar := range series.Bars {
		if from < 0 && !bar.Date.Before(start) {
			from = i
		}
		if !bar.Date.Before(end) {
			to = i
			break
		}
	}
	if from < 0 {
		return &domain.PriceSeries{Symbol: series.Symbol}
	}
	return series.Slice(from, to)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
