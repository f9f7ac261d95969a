package history

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
)

// SampleConfig drives the synthetic series generator.
type SampleConfig struct {
	Days        int     // number of daily bars
	StartPrice  float64 // first close
	AnnualDrift float64 // expected annual return of the walk
	AnnualVol   float64 // annualized volatility of the walk
	WithFunds   bool    // attach slowly drifting fundamentals
}

// DefaultSampleConfig returns two years of moderately volatile data.
func DefaultSampleConfig() SampleConfig {
	return SampleConfig{
		Days:        504,
		StartPrice:  100,
		AnnualDrift: 0.08,
		AnnualVol:   0.20,
		WithFunds:   true,
	}
}

// GenerateSeries builds a geometric random walk from the injected source, so
// the same seed always yields the same series.
func GenerateSeries(symbol string, start time.Time, cfg SampleConfig, src rand.Source) (*domain.PriceSeries, error) {
	if cfg.Days <= 0 {
		return nil, fmt.Errorf("sample series needs a positive day count, got %d", cfg.Days)
	}
	if cfg.StartPrice <= 0 {
		return nil, fmt.Errorf("sample series needs a positive start price, got %f", cfg.StartPrice)
	}

	dailyDrift := cfg.AnnualDrift / 252
	dailyVol := cfg.AnnualVol / 15.8745 // sqrt(252)
	shock := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	rng := rand.New(src)

	series := &domain.PriceSeries{Symbol: symbol, Bars: make([]domain.PriceBar, cfg.Days)}
	price := cfg.StartPrice
	date := start
	for i := 0; i < cfg.Days; i++ {
		// Skip weekends so the dates look like a real trading calendar.
		for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			date = date.AddDate(0, 0, 1)
		}

		bar := domain.PriceBar{
			Date:   date,
			Close:  price,
			Volume: 1_000_000 * (0.5 + rng.Float64()),
		}
		if cfg.WithFunds {
			bar.Fundamentals = sampleFundamentals(price, cfg.StartPrice, rng)
		}
		series.Bars[i] = bar

		price *= 1 + dailyDrift + dailyVol*shock.Rand()
		if price < 0.01 {
			price = 0.01
		}
		date = date.AddDate(0, 0, 1)
	}
	return series, nil
}

// SeedSampleUniverse generates and stores deterministic sample series for the
// given symbols, one drift/vol profile per symbol position.
func SeedSampleUniverse(store *Store, symbols []string, start time.Time, seed uint64) error {
	for i, symbol := range symbols {
		cfg := DefaultSampleConfig()
		cfg.AnnualDrift = 0.02 + 0.04*float64(i%4)
		cfg.AnnualVol = 0.12 + 0.06*float64(i%3)

		src := rand.NewSource(seed + uint64(i))
		series, err := GenerateSeries(symbol, start, cfg, src)
		if err != nil {
			return fmt.Errorf("failed to generate sample series for %s: %w", symbol, err)
		}
		if err := store.SaveSeries(series); err != nil {
			return err
		}
	}
	return nil
}

func sampleFundamentals(price, startPrice float64, rng *rand.Rand) *domain.Fundamentals {
	level := price / startPrice
	return &domain.Fundamentals{
		PERatio:       10 + 10*level + 2*rng.Float64(),
		PBRatio:       1 + level*0.5 + 0.2*rng.Float64(),
		ROE:           0.08 + 0.10*rng.Float64(),
		DebtToEquity:  0.4 + 0.8*rng.Float64(),
		MarketCap:     1e9 * price,
		DividendYield: 0.01 + 0.03*rng.Float64(),
	}
}
