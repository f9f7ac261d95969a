package robustness

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/analyzer"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/simulator"
)

func newTester() *Tester {
	log := zerolog.Nop()
	return New(
		simulator.New(log),
		analyzer.New(analyzer.DefaultConfig(), log),
		simulator.DefaultConfig(),
		log,
	)
}

// trendSeries is a deterministic upward drift with a mild wobble.
func trendSeries(symbol string, days int) *domain.PriceSeries {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	series := &domain.PriceSeries{Symbol: symbol}
	price := 100.0
	for i := 0; i < days; i++ {
		series.Bars = append(series.Bars, domain.PriceBar{
			Date:  start.AddDate(0, 0, i),
			Close: price,
		})
		if i%5 == 3 {
			price *= 0.995
		} else {
			price *= 1.002
		}
	}
	return series
}

func allBuy(series *domain.PriceSeries) ([]domain.Signal, error) {
	signals := make([]domain.Signal, series.Len())
	for i := range signals {
		signals[i] = domain.Signal{
			Symbol:   series.Symbol,
			Action:   domain.ActionBuy,
			Strength: 1.0,
		}
	}
	return signals, nil
}

func TestMonteCarloDeterministicWithoutNoise(t *testing.T) {
	tester := newTester()
	universe := map[string]*domain.PriceSeries{
		"AAA": trendSeries("AAA", 120),
		"BBB": trendSeries("BBB", 120),
	}

	report, err := tester.MonteCarlo(context.Background(), universe, allBuy, MonteCarloConfig{
		Trials:     20,
		NoiseSigma: 0,
	}, rand.NewSource(1))
	require.NoError(t, err)
	require.False(t, report.NoData)
	assert.Equal(t, 20, report.Completed)
	assert.Equal(t, 0, report.Skipped)

	// Zero noise over the full universe makes every trial identical.
	assert.Equal(t, 0.0, report.StdDev)
	assert.Equal(t, report.Min, report.Max)
	assert.InDelta(t, report.Samples[0], report.Mean, 1e-12)
}

func TestMonteCarloReproducibleWithSeed(t *testing.T) {
	universe := map[string]*domain.PriceSeries{
		"AAA": trendSeries("AAA", 120),
		"BBB": trendSeries("BBB", 120),
		"CCC": trendSeries("CCC", 120),
	}
	cfg := MonteCarloConfig{Trials: 30, NoiseSigma: 0.02, SampleSize: 2}

	first, err := newTester().MonteCarlo(context.Background(), universe, allBuy, cfg, rand.NewSource(7))
	require.NoError(t, err)
	second, err := newTester().MonteCarlo(context.Background(), universe, allBuy, cfg, rand.NewSource(7))
	require.NoError(t, err)

	assert.Equal(t, first.Samples, second.Samples)
	assert.Greater(t, first.StdDev, 0.0, "noise should spread the outcomes")
}

func TestMonteCarloAllSkipped(t *testing.T) {
	tester := newTester()
	universe := map[string]*domain.PriceSeries{
		"SHORT": trendSeries("SHORT", 5),
	}

	report, err := tester.MonteCarlo(context.Background(), universe, allBuy, MonteCarloConfig{
		Trials: 5,
	}, rand.NewSource(1))
	require.NoError(t, err)
	assert.True(t, report.NoData)
	assert.Equal(t, 5, report.Skipped)
	assert.Equal(t, 0, report.Completed)
}

func TestMonteCarloCancellation(t *testing.T) {
	tester := newTester()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tester.MonteCarlo(ctx, map[string]*domain.PriceSeries{
		"AAA": trendSeries("AAA", 120),
	}, allBuy, MonteCarloConfig{Trials: 10}, rand.NewSource(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func newNoise(sigma float64) distuv.Normal {
	return distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewSource(1)}
}

func TestPerturbSeriesZeroSigmaReturnsInput(t *testing.T) {
	series := trendSeries("AAA", 50)
	noise := newNoise(0)
	assert.Same(t, series, perturbSeries(series, noise, 0))
}

func TestPerturbSeriesKeepsShapeAndPositivity(t *testing.T) {
	series := trendSeries("AAA", 50)
	noise := newNoise(0.05)

	perturbed := perturbSeries(series, noise, 0.05)
	require.Equal(t, series.Len(), perturbed.Len())
	assert.Equal(t, series.Bars[0].Close, perturbed.Bars[0].Close)
	for _, bar := range perturbed.Bars {
		assert.Greater(t, bar.Close, 0.0)
	}
}

func TestWalkForward(t *testing.T) {
	tester := newTester()
	series := trendSeries("AAA", 500)

	report, err := tester.WalkForward(context.Background(), series, allBuy, WalkForwardConfig{
		WindowDays: 365,
		StepDays:   30,
	})
	require.NoError(t, err)
	require.False(t, report.NoData)

	// 500 days leave starts at day 0, 30, 60, 90 and 120.
	assert.Len(t, report.Windows, 5)
	assert.Equal(t, 0, report.Skipped)
	for _, w := range report.Windows {
		assert.GreaterOrEqual(t, w.Bars, simulator.MinimumWindow)
	}
	assert.GreaterOrEqual(t, report.Stability, 0.0)
	assert.LessOrEqual(t, report.Stability, 10.0)
}

func TestWalkForwardShortSeries(t *testing.T) {
	tester := newTester()

	report, err := tester.WalkForward(context.Background(), trendSeries("AAA", 10), allBuy, DefaultWalkForwardConfig())
	require.NoError(t, err)
	assert.True(t, report.NoData)
	assert.Empty(t, report.Windows)
}

func TestSensitivity(t *testing.T) {
	tester := newTester()

	evaluate := func(_ context.Context, value float64) (float64, error) {
		if value == 2.0 {
			return 0, fmt.Errorf("window too small")
		}
		return value * 0.5, nil
	}

	report, err := tester.Sensitivity(context.Background(), "lookback", 1.0, []float64{1, 2, 3}, evaluate)
	require.NoError(t, err)
	require.False(t, report.NoData)

	// The failing value is skipped, the rest report Sharpe deltas against
	// the baseline.
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Points, 2)
	assert.InDelta(t, 0.5, report.Points[0].SharpeRatio, 1e-12)
	assert.InDelta(t, -0.5, report.Points[0].Delta, 1e-12)
	assert.InDelta(t, 0.5, report.Points[1].Delta, 1e-12)
}

func TestSensitivityAllSkipped(t *testing.T) {
	tester := newTester()
	evaluate := func(_ context.Context, _ float64) (float64, error) {
		return 0, fmt.Errorf("always fails")
	}

	report, err := tester.Sensitivity(context.Background(), "threshold", 1.0, []float64{1, 2}, evaluate)
	require.NoError(t, err)
	assert.True(t, report.NoData)
	assert.Equal(t, 2, report.Skipped)
}
