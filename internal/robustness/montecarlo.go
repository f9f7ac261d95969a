package robustness

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
	"github.com/jaeyoung0503/quant-platform-sub000/pkg/formulas"
)

// MonteCarloConfig holds the Monte Carlo trial parameters.
type MonteCarloConfig struct {
	Trials        int     // number of trials, default 1000
	NoiseSigma    float64 // stdev of the per-period return perturbation
	SampleSize    int     // symbols drawn per trial; 0 means the whole universe
	ProgressEvery int     // log progress every N trials, default 100
}

// DefaultMonteCarloConfig returns the standard trial parameters.
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		Trials:        1000,
		NoiseSigma:    0.02,
		ProgressEvery: 100,
	}
}

// MonteCarloReport aggregates the annual-return outcomes of the completed
// trials.
type MonteCarloReport struct {
	RunID        string    `json:"run_id"`
	Trials       int       `json:"trials"`
	Completed    int       `json:"completed"`
	Skipped      int       `json:"skipped"`
	Mean         float64   `json:"mean"`
	StdDev       float64   `json:"std_dev"`
	Min          float64   `json:"min"`
	Max          float64   `json:"max"`
	P5           float64   `json:"p5"`
	P95          float64   `json:"p95"`
	ProbPositive float64   `json:"prob_positive"`
	Samples      []float64 `json:"samples,omitempty"`

	// NoData marks a report where every trial was skipped.
	NoData bool `json:"no_data,omitempty"`
}

// MonteCarlo runs repeated trials: each trial samples a symbol subset,
// perturbs the sampled series with multiplicative return noise drawn from
// Normal(0, NoiseSigma), regenerates signals, and runs the full pipeline.
// The trial outcome is the mean annualized return across its symbols.
//
// Failed trials are skipped and excluded from aggregation; an all-skipped
// run yields a NoData report rather than an error. The random source is
// injected so runs are reproducible.
func (t *Tester) MonteCarlo(
	ctx context.Context,
	universe map[string]*domain.PriceSeries,
	signalFn SignalFunc,
	cfg MonteCarloConfig,
	src rand.Source,
) (*MonteCarloReport, error) {
	if cfg.Trials <= 0 {
		cfg.Trials = 1000
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 100
	}

	symbols := sortedSymbols(universe)
	sampleSize := cfg.SampleSize
	if sampleSize <= 0 || sampleSize > len(symbols) {
		sampleSize = len(symbols)
	}

	rng := rand.New(src)
	noise := distuv.Normal{Mu: 0, Sigma: cfg.NoiseSigma, Src: src}

	report := &MonteCarloReport{RunID: uuid.NewString(), Trials: cfg.Trials}
	samples := make([]float64, 0, cfg.Trials)

	for trial := 0; trial < cfg.Trials; trial++ {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}

		picked := pickSymbols(rng, symbols, sampleSize)

		var trialSum float64
		completedSymbols := 0
		for _, symbol := range picked {
			perturbed := perturbSeries(universe[symbol], noise, cfg.NoiseSigma)
			metrics, err := t.runPipeline(perturbed, signalFn)
			if err != nil {
				continue
			}
			trialSum += metrics.AnnualReturn
			completedSymbols++
		}

		if completedSymbols == 0 {
			report.Skipped++
			continue
		}
		samples = append(samples, trialSum/float64(completedSymbols))
		report.Completed++

		if (trial+1)%cfg.ProgressEvery == 0 {
			t.log.Info().
				Int("trial", trial+1).
				Int("total", cfg.Trials).
				Msg("Monte Carlo progress")
		}
	}

	if len(samples) == 0 {
		report.NoData = true
		t.log.Warn().Str("run_id", report.RunID).Msg("All Monte Carlo trials skipped")
		return report, nil
	}

	report.Samples = samples
	report.Mean = formulas.Mean(samples)
	report.StdDev = formulas.StdDev(samples)
	report.Min, report.Max = minMax(samples)
	report.P5 = formulas.Percentile(samples, 0.05)
	report.P95 = formulas.Percentile(samples, 0.95)
	positive := 0
	for _, s := range samples {
		if s > 0 {
			positive++
		}
	}
	report.ProbPositive = float64(positive) / float64(len(samples))

	t.log.Info().
		Str("run_id", report.RunID).
		Int("completed", report.Completed).
		Int("skipped", report.Skipped).
		Float64("mean_return", report.Mean).
		Msg("Monte Carlo complete")

	return report, nil
}

// perturbSeries rebuilds a price series with each per-period return bumped
// by a Normal(0, sigma) draw; volume gets an independent draw. Zero sigma
// returns the input unchanged so noiseless runs are exactly deterministic.
func perturbSeries(series *domain.PriceSeries, noise distuv.Normal, sigma float64) *domain.PriceSeries {
	if sigma == 0 || series.Len() == 0 {
		return series
	}

	bars := make([]domain.PriceBar, series.Len())
	bars[0] = series.Bars[0]
	for i := 1; i < series.Len(); i++ {
		prev := series.Bars[i-1].Close
		baseReturn := 0.0
		if prev != 0 {
			baseReturn = (series.Bars[i].Close - prev) / prev
		}
		bar := series.Bars[i]
		bar.Close = bars[i-1].Close * (1 + baseReturn + noise.Rand())
		if bar.Close <= 0 {
			bar.Close = bars[i-1].Close
		}
		bar.Volume = series.Bars[i].Volume * (1 + noise.Rand())
		if bar.Volume < 0 {
			bar.Volume = 0
		}
		bars[i] = bar
	}
	return &domain.PriceSeries{Symbol: series.Symbol, Bars: bars}
}

func pickSymbols(rng *rand.Rand, symbols []string, n int) []string {
	if n >= len(symbols) {
		return symbols
	}
	perm := rng.Perm(len(symbols))
	picked := make([]string, n)
	for i := 0; i < n; i++ {
		picked[i] = symbols[perm[i]]
	}
	return picked
}

func sortedSymbols(universe map[string]*domain.PriceSeries) []string {
	symbols := make([]string, 0, len(universe))
	for symbol := range universe {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func minMax(data []float64) (min, max float64) {
	min, max = data[0], data[0]
	for _, v := range data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
