// Package simulator turns a per-symbol signal sequence into a portfolio
// value series. The model is deliberately simple: one position at a time,
// long or flat, full allocation on entry, a symmetric transaction-cost rate
// on both sides of every trade.
package simulator

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
)

// MinimumWindow is the smallest price history the pipeline considers usable.
// The simulator itself does not enforce it; callers filter short series and
// record them as skipped.
const MinimumWindow = 30

// Config holds the immutable parameters of one simulation run.
type Config struct {
	InitialCapital      float64 // must be > 0
	TransactionCostRate float64 // per-side rate in [0, 0.05]
}

// DefaultConfig returns the baseline simulation parameters.
func DefaultConfig() Config {
	return Config{
		InitialCapital:      10_000,
		TransactionCostRate: 0.001,
	}
}

// portfolioState is the simulator-internal position. It lives only for the
// duration of one Run call; only the value series survives.
type portfolioState struct {
	cash   float64
	shares float64
}

func (p *portfolioState) value(price float64) float64 {
	return p.cash + p.shares*price
}

// Simulator walks a price/signal timeline and produces the portfolio value
// series.
type Simulator struct {
	log zerolog.Logger
}

// New creates a Simulator.
func New(log zerolog.Logger) *Simulator {
	return &Simulator{log: log.With().Str("component", "simulator").Logger()}
}

// Run simulates the signal sequence against the price series and returns a
// value series of the same length as the prices. The first element always
// equals the initial capital; each subsequent element is the mark-to-market
// value at that bar's close.
//
// Trades happen only when the signal magnitude changes between consecutive
// steps: the existing position is closed to cash (cost deducted), then a new
// position is opened sized at cash / (price * (1 + cost)). A magnitude of 0
// closes to cash and stays flat. Valuation happens before the step's trade,
// so trading costs show up from the following bar onward.
func (s *Simulator) Run(prices *domain.PriceSeries, signals []domain.Signal, cfg Config) ([]float64, error) {
	if prices == nil || prices.Len() == 0 {
		return nil, fmt.Errorf("%w: empty price series", ErrInvalidInput)
	}
	if len(signals) != prices.Len() {
		return nil, fmt.Errorf("%w: %d signals for %d prices", ErrInvalidInput, len(signals), prices.Len())
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital %.2f", ErrInvalidInput, cfg.InitialCapital)
	}
	if cfg.TransactionCostRate < 0 || cfg.TransactionCostRate > 0.05 {
		return nil, fmt.Errorf("%w: transaction cost rate %.4f outside [0, 0.05]", ErrInvalidInput, cfg.TransactionCostRate)
	}

	state := portfolioState{cash: cfg.InitialCapital}
	values := make([]float64, prices.Len())

	// The step before the first bar is treated as flat, so the first
	// non-zero signal always triggers an open.
	prevMagnitude := 0.0
	trades := 0

	for i, bar := range prices.Bars {
		price := bar.Close

		// Mark to market before trading at this bar's close.
		values[i] = state.value(price)

		magnitude := signals[i].Magnitude()
		if magnitude == prevMagnitude {
			continue
		}

		// Close the existing position.
		if state.shares > 0 {
			state.cash = state.shares * price * (1 - cfg.TransactionCostRate)
			state.shares = 0
			trades++
		}

		// Open the new one, sized so entry cost never drives cash negative.
		if magnitude > 0 && price > 0 {
			state.shares = state.cash / (price * (1 + cfg.TransactionCostRate))
			state.cash = 0
			trades++
		}

		prevMagnitude = magnitude
	}

	s.log.Debug().
		Str("symbol", prices.Symbol).
		Int("bars", prices.Len()).
		Int("trades", trades).
		Float64("final_value", state.value(prices.Bars[prices.Len()-1].Close)).
		Msg("Simulation complete")

	return values, nil
}
