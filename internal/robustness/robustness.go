// Package robustness stress-tests a strategy by re-running the
// simulate-and-analyze pipeline under perturbation: Monte Carlo price noise,
// rolling walk-forward windows, and parameter sensitivity sweeps.
package robustness

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/analyzer"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/simulator"
)

// SignalFunc regenerates a signal sequence for a (possibly perturbed) price
// series. Trials call it once per series so signals track the perturbation.
type SignalFunc func(series *domain.PriceSeries) ([]domain.Signal, error)

// Tester orchestrates repeated simulator/analyzer runs.
type Tester struct {
	sim    *simulator.Simulator
	an     *analyzer.Analyzer
	simCfg simulator.Config
	log    zerolog.Logger
}

// New creates a Tester around an existing simulator/analyzer pair.
func New(sim *simulator.Simulator, an *analyzer.Analyzer, simCfg simulator.Config, log zerolog.Logger) *Tester {
	return &Tester{
		sim:    sim,
		an:     an,
		simCfg: simCfg,
		log:    log.With().Str("component", "robustness").Logger(),
	}
}

// runPipeline simulates one series with freshly generated signals and
// analyzes the resulting value series.
func (t *Tester) runPipeline(series *domain.PriceSeries, signalFn SignalFunc) (analyzer.PerformanceMetrics, error) {
	if series.Len() < simulator.MinimumWindow {
		return analyzer.PerformanceMetrics{}, fmt.Errorf("series %s too short: %d bars", series.Symbol, series.Len())
	}
	signals, err := signalFn(series)
	if err != nil {
		return analyzer.PerformanceMetrics{}, fmt.Errorf("signal generation failed: %w", err)
	}
	values, err := t.sim.Run(series, signals, t.simCfg)
	if err != nil {
		return analyzer.PerformanceMetrics{}, err
	}
	metrics := t.an.Analyze(series.Symbol, values, series.HorizonDays())
	if metrics.Insufficient {
		return metrics, fmt.Errorf("degenerate metrics for %s", series.Symbol)
	}
	return metrics, nil
}

// checkCancelled returns the context error, if any, so long trial loops can
// be aborted cleanly.
func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
