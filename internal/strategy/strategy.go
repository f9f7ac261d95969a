// Package strategy generates trading signals from price and fundamental
// series. Rules are expressed as a tagged StrategyConfig dispatched through
// a single GenerateSignals function, not as a type hierarchy; adding a rule
// kind means adding a case, not a subclass.
package strategy

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
)

// Kind names one signal rule.
type Kind string

const (
	KindMomentum Kind = "momentum"  // N-period momentum vs a threshold
	KindSMACross Kind = "sma_cross" // fast/slow moving-average crossover
	KindRSI      Kind = "rsi"       // RSI oversold/overbought bands
	KindValue    Kind = "value"     // PE/PB ceiling rule on fundamentals
	KindQuality  Kind = "quality"   // ROE floor + debt ceiling rule
	KindDividend Kind = "dividend"  // dividend-yield floor rule
)

// Config is the full parameter record for one strategy. Only the fields of
// the selected Kind are read; the rest are ignored.
type Config struct {
	Kind Kind `json:"kind"`

	// Momentum parameters.
	Lookback  int     `json:"lookback,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`

	// Moving-average crossover parameters.
	FastPeriod int `json:"fast_period,omitempty"`
	SlowPeriod int `json:"slow_period,omitempty"`

	// RSI parameters.
	RSIPeriod  int     `json:"rsi_period,omitempty"`
	Oversold   float64 `json:"oversold,omitempty"`
	Overbought float64 `json:"overbought,omitempty"`

	// Fundamental rule parameters.
	MaxPERatio       float64 `json:"max_pe_ratio,omitempty"`
	MaxPBRatio       float64 `json:"max_pb_ratio,omitempty"`
	MinROE           float64 `json:"min_roe,omitempty"`
	MaxDebtToEquity  float64 `json:"max_debt_to_equity,omitempty"`
	MinDividendYield float64 `json:"min_dividend_yield,omitempty"`
}

// DefaultConfig returns a momentum strategy with conventional parameters.
func DefaultConfig() Config {
	return Config{
		Kind:      KindMomentum,
		Lookback:  20,
		Threshold: 0.02,
	}
}

// GenerateSignals produces one signal per bar, time-aligned with the series.
// Warmup bars (before an indicator has enough history) are holds.
func GenerateSignals(cfg Config, series *domain.PriceSeries) ([]domain.Signal, error) {
	if series == nil || series.Len() == 0 {
		return nil, fmt.Errorf("empty price series")
	}

	switch cfg.Kind {
	case KindMomentum:
		return momentumSignals(cfg, series)
	case KindSMACross:
		return smaCrossSignals(cfg, series)
	case KindRSI:
		return rsiSignals(cfg, series)
	case KindValue, KindQuality, KindDividend:
		return fundamentalSignals(cfg, series)
	default:
		return nil, fmt.Errorf("unknown strategy kind: %q", cfg.Kind)
	}
}

// WithParameter returns a copy of the config with one named parameter
// replaced. Sensitivity sweeps use this to vary a single knob.
func WithParameter(cfg Config, name string, value float64) (Config, error) {
	switch name {
	case "lookback":
		cfg.Lookback = int(value)
	case "threshold":
		cfg.Threshold = value
	case "fast_period":
		cfg.FastPeriod = int(value)
	case "slow_period":
		cfg.SlowPeriod = int(value)
	case "rsi_period":
		cfg.RSIPeriod = int(value)
	case "oversold":
		cfg.Oversold = value
	case "overbought":
		cfg.Overbought = value
	case "max_pe_ratio":
		cfg.MaxPERatio = value
	case "min_roe":
		cfg.MinROE = value
	case "min_dividend_yield":
		cfg.MinDividendYield = value
	default:
		return cfg, fmt.Errorf("unknown strategy parameter: %q", name)
	}
	return cfg, nil
}

func momentumSignals(cfg Config, series *domain.PriceSeries) ([]domain.Signal, error) {
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = 20
	}

	closes := series.Closes()
	signals := make([]domain.Signal, series.Len())
	for i := range series.Bars {
		action := domain.ActionHold
		confidence := 0.5
		if i >= lookback && closes[i-lookback] != 0 {
			momentum := (closes[i] - closes[i-lookback]) / closes[i-lookback]
			switch {
			case momentum > cfg.Threshold:
				action = domain.ActionBuy
				confidence = clamp01(0.5 + momentum)
			case momentum < -cfg.Threshold:
				action = domain.ActionSell
				confidence = clamp01(0.5 - momentum)
			}
		}
		signals[i] = newSignal(series, i, action, confidence)
	}
	return signals, nil
}

func smaCrossSignals(cfg Config, series *domain.PriceSeries) ([]domain.Signal, error) {
	fast, slow := cfg.FastPeriod, cfg.SlowPeriod
	if fast <= 0 {
		fast = 20
	}
	if slow <= 0 {
		slow = 60
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast period %d must be below slow period %d", fast, slow)
	}
	if series.Len() <= slow {
		return holdSignals(series), nil
	}

	closes := series.Closes()
	fastMA := talib.Sma(closes, fast)
	slowMA := talib.Sma(closes, slow)

	signals := make([]domain.Signal, series.Len())
	for i := range series.Bars {
		action := domain.ActionHold
		if i >= slow {
			if fastMA[i] > slowMA[i] {
				action = domain.ActionBuy
			} else if fastMA[i] < slowMA[i] {
				action = domain.ActionSell
			}
		}
		signals[i] = newSignal(series, i, action, 0.6)
	}
	return signals, nil
}

func rsiSignals(cfg Config, series *domain.PriceSeries) ([]domain.Signal, error) {
	period := cfg.RSIPeriod
	if period <= 0 {
		period = 14
	}
	oversold, overbought := cfg.Oversold, cfg.Overbought
	if oversold <= 0 {
		oversold = 30
	}
	if overbought <= 0 {
		overbought = 70
	}
	if series.Len() <= period {
		return holdSignals(series), nil
	}

	rsi := talib.Rsi(series.Closes(), period)

	signals := make([]domain.Signal, series.Len())
	position := false
	for i := range series.Bars {
		action := domain.ActionHold
		if i > period {
			switch {
			case rsi[i] < oversold && !position:
				action = domain.ActionBuy
				position = true
			case rsi[i] > overbought && position:
				action = domain.ActionSell
				position = false
			case position:
				// Stay invested between the bands.
				action = domain.ActionBuy
			}
		}
		signals[i] = newSignal(series, i, action, 0.65)
	}
	return signals, nil
}

// fundamentalSignals covers the value, quality and dividend rules: buy while
// the bar's fundamentals satisfy the rule, sell otherwise. Bars without
// fundamentals are holds.
func fundamentalSignals(cfg Config, series *domain.PriceSeries) ([]domain.Signal, error) {
	signals := make([]domain.Signal, series.Len())
	for i, bar := range series.Bars {
		action := domain.ActionHold
		if bar.Fundamentals != nil {
			if passesFundamentalRule(cfg, bar.Fundamentals) {
				action = domain.ActionBuy
			} else {
				action = domain.ActionSell
			}
		}
		signals[i] = newSignal(series, i, action, 0.55)
	}
	return signals, nil
}

func passesFundamentalRule(cfg Config, f *domain.Fundamentals) bool {
	switch cfg.Kind {
	case KindValue:
		maxPE, maxPB := cfg.MaxPERatio, cfg.MaxPBRatio
		if maxPE <= 0 {
			maxPE = 15
		}
		if maxPB <= 0 {
			maxPB = 1.5
		}
		return f.PERatio > 0 && f.PERatio < maxPE && f.PBRatio > 0 && f.PBRatio < maxPB
	case KindQuality:
		minROE, maxDE := cfg.MinROE, cfg.MaxDebtToEquity
		if minROE <= 0 {
			minROE = 0.15
		}
		if maxDE <= 0 {
			maxDE = 1.0
		}
		return f.ROE > minROE && f.DebtToEquity < maxDE
	case KindDividend:
		minYield := cfg.MinDividendYield
		if minYield <= 0 {
			minYield = 0.03
		}
		return f.DividendYield > minYield
	default:
		return false
	}
}

func holdSignals(series *domain.PriceSeries) []domain.Signal {
	signals := make([]domain.Signal, series.Len())
	for i := range series.Bars {
		signals[i] = newSignal(series, i, domain.ActionHold, 0.5)
	}
	return signals
}

func newSignal(series *domain.PriceSeries, i int, action domain.Action, confidence float64) domain.Signal {
	strength := 0.0
	if action == domain.ActionBuy {
		strength = 1.0
	}
	return domain.Signal{
		Symbol:     series.Symbol,
		Action:     action,
		Strength:   strength,
		Confidence: confidence,
		Timestamp:  series.Bars[i].Date,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
