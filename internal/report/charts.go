package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	charts "github.com/vicanso/go-charts/v2"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/optimizer"
)

// WriteEquityChart renders the portfolio value curves of the given symbols
// as a PNG line chart. Series must share a timeline; shorter series are
// clipped to the shortest.
func (w *Writer) WriteEquityChart(name string, universe map[string]*domain.PriceSeries, curves map[string][]float64) (string, error) {
	symbols := make([]string, 0, len(curves))
	for symbol := range curves {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	if len(symbols) == 0 {
		return "", fmt.Errorf("no equity curves to chart")
	}

	shortest := len(curves[symbols[0]])
	for _, symbol := range symbols {
		if len(curves[symbol]) < shortest {
			shortest = len(curves[symbol])
		}
	}
	if shortest == 0 {
		return "", fmt.Errorf("empty equity curve")
	}

	values := make([][]float64, len(symbols))
	for i, symbol := range symbols {
		values[i] = curves[symbol][:shortest]
	}

	// X labels come from the first symbol's dates; the chart thins them out
	// via SplitNumber.
	var labels []string
	if series, ok := universe[symbols[0]]; ok && series.Len() >= shortest {
		for _, bar := range series.Bars[:shortest] {
			labels = append(labels, bar.Date.Format("2006-01-02"))
		}
	}

	painter, err := charts.LineRender(values,
		charts.TitleTextOptionFunc("Portfolio Value"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: 8}),
		charts.LegendOptionFunc(charts.LegendOption{Data: symbols, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render equity chart: %w", err)
	}
	return w.savePNG(name, painter)
}

// WriteFrontierChart renders the efficient frontier as volatility vs
// annualized return.
func (w *Writer) WriteFrontierChart(name string, frontier []optimizer.FrontierPoint) (string, error) {
	if len(frontier) == 0 {
		return "", fmt.Errorf("empty frontier")
	}

	returns := make([]float64, len(frontier))
	labels := make([]string, len(frontier))
	for i, pt := range frontier {
		returns[i] = pt.Return * 100
		labels[i] = fmt.Sprintf("%.1f%%", pt.Volatility*100)
	}

	painter, err := charts.LineRender([][]float64{returns},
		charts.TitleTextOptionFunc("Efficient Frontier", "annualized return (%) by volatility"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: 8}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render frontier chart: %w", err)
	}
	return w.savePNG(name, painter)
}

func (w *Writer) savePNG(name string, painter *charts.Painter) (string, error) {
	data, err := painter.Bytes()
	if err != nil {
		return "", fmt.Errorf("failed to encode chart: %w", err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write chart: %w", err)
	}
	w.log.Info().Str("path", path).Msg("Wrote chart")
	return path, nil
}
