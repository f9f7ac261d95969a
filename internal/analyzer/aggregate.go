package analyzer

import (
	"sort"

	"github.com/jaeyoung0503/quant-platform-sub000/pkg/formulas"
)

// FieldSummary holds mean/median/stdev for one metric field across a
// universe.
type FieldSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// UniverseSummary aggregates per-symbol metrics into summary statistics.
// Degenerate (insufficient-data) records are excluded before aggregation.
type UniverseSummary struct {
	Count        int          `json:"count"`
	TotalReturn  FieldSummary `json:"total_return"`
	AnnualReturn FieldSummary `json:"annual_return"`
	Volatility   FieldSummary `json:"volatility"`
	SharpeRatio  FieldSummary `json:"sharpe_ratio"`
	SortinoRatio FieldSummary `json:"sortino_ratio"`
	MaxDrawdown  FieldSummary `json:"max_drawdown"`
	WinRate      FieldSummary `json:"win_rate"`
}

// Summarize computes mean/median/stdev per metric field over the usable
// records. An empty or all-degenerate input yields a zero summary with
// Count 0.
func Summarize(records []PerformanceMetrics) UniverseSummary {
	usable := usableRecords(records)
	if len(usable) == 0 {
		return UniverseSummary{}
	}

	field := func(get func(PerformanceMetrics) float64) FieldSummary {
		vals := make([]float64, len(usable))
		for i, m := range usable {
			vals[i] = get(m)
		}
		return FieldSummary{
			Mean:   formulas.Mean(vals),
			Median: formulas.Median(vals),
			StdDev: formulas.StdDev(vals),
		}
	}

	return UniverseSummary{
		Count:        len(usable),
		TotalReturn:  field(func(m PerformanceMetrics) float64 { return m.TotalReturn }),
		AnnualReturn: field(func(m PerformanceMetrics) float64 { return m.AnnualReturn }),
		Volatility:   field(func(m PerformanceMetrics) float64 { return m.Volatility }),
		SharpeRatio:  field(func(m PerformanceMetrics) float64 { return m.SharpeRatio }),
		SortinoRatio: field(func(m PerformanceMetrics) float64 { return m.SortinoRatio }),
		MaxDrawdown:  field(func(m PerformanceMetrics) float64 { return m.MaxDrawdown }),
		WinRate:      field(func(m PerformanceMetrics) float64 { return m.WinRate }),
	}
}

// Rank orders usable records by Sharpe ratio descending, breaking ties by
// annualized return descending. The input is not modified.
func Rank(records []PerformanceMetrics) []PerformanceMetrics {
	ranked := usableRecords(records)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].SharpeRatio != ranked[j].SharpeRatio {
			return ranked[i].SharpeRatio > ranked[j].SharpeRatio
		}
		return ranked[i].AnnualReturn > ranked[j].AnnualReturn
	})
	return ranked
}

// TopSymbols returns the symbols of the n best-ranked records.
func TopSymbols(records []PerformanceMetrics, n int) []string {
	ranked := Rank(records)
	if n > len(ranked) {
		n = len(ranked)
	}
	symbols := make([]string, 0, n)
	for _, m := range ranked[:n] {
		symbols = append(symbols, m.Symbol)
	}
	return symbols
}

func usableRecords(records []PerformanceMetrics) []PerformanceMetrics {
	usable := make([]PerformanceMetrics, 0, len(records))
	for _, m := range records {
		if !m.Insufficient {
			usable = append(usable, m)
		}
	}
	return usable
}
