// Package report writes backtest results to disk: CSV tables for the metric
// and weight records, PNG charts for the equity curves and the efficient
// frontier.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/analyzer"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/batch"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/optimizer"
)

// Writer renders reports into an output directory.
type Writer struct {
	dir string
	log zerolog.Logger
}

// NewWriter creates the output directory if needed and returns a Writer.
func NewWriter(dir string, log zerolog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &Writer{dir: dir, log: log.With().Str("component", "report").Logger()}, nil
}

// WriteMetricsCSV writes the ranked per-symbol metrics table.
func (w *Writer) WriteMetricsCSV(name string, ranked []analyzer.PerformanceMetrics) (string, error) {
	path := filepath.Join(w.dir, name)
	rows := [][]string{{
		"rank", "symbol", "total_return", "annual_return", "volatility",
		"sharpe_ratio", "sortino_ratio", "calmar_ratio", "max_drawdown",
		"win_rate", "var", "cvar",
	}}
	for i, m := range ranked {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			m.Symbol,
			formatFloat(m.TotalReturn),
			formatFloat(m.AnnualReturn),
			formatFloat(m.Volatility),
			formatFloat(m.SharpeRatio),
			formatFloat(m.SortinoRatio),
			formatFloat(m.CalmarRatio),
			formatFloat(m.MaxDrawdown),
			formatFloat(m.WinRate),
			formatFloat(m.VaR),
			formatFloat(m.CVaR),
		})
	}
	if err := w.writeCSV(path, rows); err != nil {
		return "", err
	}
	w.log.Info().Str("path", path).Int("rows", len(ranked)).Msg("Wrote metrics table")
	return path, nil
}

// WriteOutcomesCSV writes the skip/ok outcome per symbol, so excluded
// symbols stay visible in the run artifacts.
func (w *Writer) WriteOutcomesCSV(name string, outcomes map[string]batch.SymbolResult) (string, error) {
	path := filepath.Join(w.dir, name)

	symbols := make([]string, 0, len(outcomes))
	for symbol := range outcomes {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	rows := [][]string{{"symbol", "kind", "reason", "detail"}}
	for _, symbol := range symbols {
		o := outcomes[symbol].Outcome
		rows = append(rows, []string{o.Symbol, string(o.Kind), string(o.Reason), o.Detail})
	}
	if err := w.writeCSV(path, rows); err != nil {
		return "", err
	}
	return path, nil
}

// WriteWeightsCSV writes every optimization method's weights side by side,
// one row per symbol.
func (w *Writer) WriteWeightsCSV(name string, rec *optimizer.Recommendation) (string, error) {
	path := filepath.Join(w.dir, name)

	symbolSet := map[string]bool{}
	for _, result := range rec.Results {
		for symbol := range result.Weights {
			symbolSet[symbol] = true
		}
	}
	symbols := make([]string, 0, len(symbolSet))
	for symbol := range symbolSet {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	header := []string{"symbol"}
	for _, result := range rec.Results {
		label := string(result.Method)
		if result.Fallback {
			label += "_fallback"
		}
		header = append(header, label)
	}

	rows := [][]string{header}
	for _, symbol := range symbols {
		row := []string{symbol}
		for _, result := range rec.Results {
			row = append(row, formatFloat(result.Weights[symbol]))
		}
		rows = append(rows, row)
	}
	if err := w.writeCSV(path, rows); err != nil {
		return "", err
	}
	w.log.Info().Str("path", path).Str("recommended", string(rec.Recommended)).Msg("Wrote weights table")
	return path, nil
}

// WriteEquityCSV writes the date-indexed portfolio value series of one
// symbol.
func (w *Writer) WriteEquityCSV(name string, series *domain.PriceSeries, values []float64) (string, error) {
	if series.Len() != len(values) {
		return "", fmt.Errorf("series/value length mismatch: %d vs %d", series.Len(), len(values))
	}

	path := filepath.Join(w.dir, name)
	rows := [][]string{{"date", "close", "portfolio_value"}}
	for i, bar := range series.Bars {
		rows = append(rows, []string{
			bar.Date.Format("2006-01-02"),
			formatFloat(bar.Close),
			formatFloat(values[i]),
		})
	}
	if err := w.writeCSV(path, rows); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
