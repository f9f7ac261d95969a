// Package domain holds the value types shared by the simulation, analytics
// and optimization components. Types here are plain data; all behavior lives
// in the packages that consume them.
package domain

import (
	"fmt"
	"time"
)

// Fundamentals carries the optional fundamental fields attached to a price
// bar. They are consumed by strategy rules only; the core analytics never
// read them.
type Fundamentals struct {
	PERatio       float64 `json:"pe_ratio,omitempty"`
	PBRatio       float64 `json:"pb_ratio,omitempty"`
	ROE           float64 `json:"roe,omitempty"`
	DebtToEquity  float64 `json:"debt_to_equity,omitempty"`
	MarketCap     float64 `json:"market_cap,omitempty"`
	DividendYield float64 `json:"dividend_yield,omitempty"`
}

// PriceBar is one daily observation of a symbol.
type PriceBar struct {
	Date         time.Time     `json:"date"`
	Close        float64       `json:"close"`
	Volume       float64       `json:"volume"`
	Fundamentals *Fundamentals `json:"fundamentals,omitempty"`
}

// PriceSeries is an ordered daily price history for one symbol.
// Dates are strictly increasing with no duplicates; the series is owned by
// the caller and treated as read-only by every consumer.
type PriceSeries struct {
	Symbol string     `json:"symbol"`
	Bars   []PriceBar `json:"bars"`
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int {
	return len(s.Bars)
}

// Closes returns the close column as a fresh slice.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Slice returns a view of the series restricted to [from, to).
// The underlying bars are shared, not copied.
func (s *PriceSeries) Slice(from, to int) *PriceSeries {
	if from < 0 {
		from = 0
	}
	if to > len(s.Bars) {
		to = len(s.Bars)
	}
	if from >= to {
		return &PriceSeries{Symbol: s.Symbol}
	}
	return &PriceSeries{Symbol: s.Symbol, Bars: s.Bars[from:to]}
}

// Validate checks the series invariants: non-empty symbol, positive closes,
// strictly increasing dates.
func (s *PriceSeries) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("price series has empty symbol")
	}
	for i, b := range s.Bars {
		if b.Close <= 0 {
			return fmt.Errorf("%s: non-positive close %.4f at index %d", s.Symbol, b.Close, i)
		}
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("%s: dates not strictly increasing at index %d", s.Symbol, i)
		}
	}
	return nil
}

// HorizonDays returns the calendar span of the series in days.
// A series with fewer than two bars has a zero horizon.
func (s *PriceSeries) HorizonDays() int {
	if len(s.Bars) < 2 {
		return 0
	}
	first := s.Bars[0].Date
	last := s.Bars[len(s.Bars)-1].Date
	return int(last.Sub(first).Hours() / 24)
}
