// Package batch fans the simulate/analyze pipeline out across a symbol
// universe with a bounded worker pool and collects the per-symbol outcomes.
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/analyzer"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/simulator"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/strategy"
)

// Config holds the batch parameters.
type Config struct {
	Workers      int  // concurrent symbols, default 4
	ShowProgress bool // render a terminal progress bar
}

// DefaultConfig returns the standard batch parameters.
func DefaultConfig() Config {
	return Config{Workers: 4}
}

// SymbolResult pairs one symbol's outcome with its metrics and value series.
// Values and Metrics are only set for OK outcomes.
type SymbolResult struct {
	Outcome domain.Outcome              `json:"outcome"`
	Metrics analyzer.PerformanceMetrics `json:"metrics,omitempty"`
	Values  []float64                   `json:"-"`
}

// Report is the full result of one batch run.
type Report struct {
	RunID    string                        `json:"run_id"`
	Results  map[string]SymbolResult       `json:"results"`
	Ranked   []analyzer.PerformanceMetrics `json:"ranked"`
	Summary  analyzer.UniverseSummary      `json:"summary"`
	Analyzed int                           `json:"analyzed"`
	Skipped  int                           `json:"skipped"`
}

// Runner executes the per-symbol pipeline across a universe.
type Runner struct {
	sim    *simulator.Simulator
	an     *analyzer.Analyzer
	simCfg simulator.Config
	cfg    Config
	log    zerolog.Logger
}

// New creates a Runner.
func New(sim *simulator.Simulator, an *analyzer.Analyzer, simCfg simulator.Config, cfg Config, log zerolog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Runner{
		sim:    sim,
		an:     an,
		simCfg: simCfg,
		cfg:    cfg,
		log:    log.With().Str("component", "batch").Logger(),
	}
}

// Run simulates and analyzes every symbol in the universe concurrently.
// Symbols with short series or failing simulations become skip outcomes;
// only context cancellation aborts the run.
func (r *Runner) Run(
	ctx context.Context,
	universe map[string]*domain.PriceSeries,
	strategyCfg strategy.Config,
) (*Report, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("empty universe")
	}

	symbols := make([]string, 0, len(universe))
	for symbol := range universe {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	report := &Report{
		RunID:   uuid.NewString(),
		Results: make(map[string]SymbolResult, len(symbols)),
	}

	var bar *progressbar.ProgressBar
	if r.cfg.ShowProgress {
		bar = progressbar.Default(int64(len(symbols)), "backtesting")
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			result := r.runSymbol(symbol, universe[symbol], strategyCfg)

			mu.Lock()
			report.Results[symbol] = result
			mu.Unlock()

			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch run aborted: %w", err)
	}

	var metrics []analyzer.PerformanceMetrics
	for _, result := range report.Results {
		switch result.Outcome.Kind {
		case domain.OutcomeOK:
			report.Analyzed++
			metrics = append(metrics, result.Metrics)
		case domain.OutcomeSkipped:
			report.Skipped++
		}
	}
	report.Ranked = analyzer.Rank(metrics)
	report.Summary = analyzer.Summarize(metrics)

	r.log.Info().
		Str("run_id", report.RunID).
		Int("analyzed", report.Analyzed).
		Int("skipped", report.Skipped).
		Msg("Batch run complete")

	return report, nil
}

// runSymbol executes the single-symbol pipeline, converting every local
// failure into a typed skip outcome.
func (r *Runner) runSymbol(symbol string, series *domain.PriceSeries, strategyCfg strategy.Config) SymbolResult {
	if series == nil || series.Len() < simulator.MinimumWindow {
		bars := 0
		if series != nil {
			bars = series.Len()
		}
		return SymbolResult{Outcome: domain.Skipped(symbol, domain.SkipInsufficientData,
			fmt.Sprintf("%d bars, need %d", bars, simulator.MinimumWindow))}
	}

	signals, err := strategy.GenerateSignals(strategyCfg, series)
	if err != nil {
		return SymbolResult{Outcome: domain.Skipped(symbol, domain.SkipSimulationError, err.Error())}
	}

	values, err := r.sim.Run(series, signals, r.simCfg)
	if err != nil {
		r.log.Warn().Err(err).Str("symbol", symbol).Msg("Simulation failed")
		return SymbolResult{Outcome: domain.Skipped(symbol, domain.SkipSimulationError, err.Error())}
	}

	metrics := r.an.Analyze(symbol, values, series.HorizonDays())
	if metrics.Insufficient {
		return SymbolResult{Outcome: domain.Skipped(symbol, domain.SkipInsufficientData, "value series too short")}
	}

	return SymbolResult{Outcome: domain.OK(symbol), Metrics: metrics, Values: values}
}

// PriceTable extracts the closing-price table the optimizer consumes from
// the universe, restricted to the given symbols.
func PriceTable(universe map[string]*domain.PriceSeries, symbols []string) map[string][]float64 {
	table := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		if series, ok := universe[symbol]; ok && series.Len() > 0 {
			table[symbol] = series.Closes()
		}
	}
	return table
}
