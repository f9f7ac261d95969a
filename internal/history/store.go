// Package history is the input-side collaborator: it loads daily
// price/fundamental tables from sqlite and can synthesize sample series for
// development runs. The core packages only ever see domain.PriceSeries.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
)

const dateLayout = "2006-01-02"

// Store reads and writes daily price history.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if necessary) the price database at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price database: %w", err)
	}

	s := &Store{db: db, log: log.With().Str("component", "history").Logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS daily_prices (
			symbol         TEXT NOT NULL,
			date           TEXT NOT NULL,
			close          REAL NOT NULL,
			volume         REAL NOT NULL DEFAULT 0,
			pe_ratio       REAL,
			pb_ratio       REAL,
			roe            REAL,
			debt_to_equity REAL,
			market_cap     REAL,
			dividend_yield REAL,
			PRIMARY KEY (symbol, date)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_prices_symbol ON daily_prices(symbol);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate price schema: %w", err)
	}
	return nil
}

// Symbols returns the distinct symbols in the store, sorted.
func (s *Store) Symbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// LoadSeries loads the full daily series for one symbol in date order.
// Date ordering comes from the query; the returned series still passes
// Validate so malformed rows surface instead of corrupting downstream math.
func (s *Store) LoadSeries(symbol string) (*domain.PriceSeries, error) {
	rows, err := s.db.Query(`
		SELECT date, close, volume, pe_ratio, pb_ratio, roe, debt_to_equity, market_cap, dividend_yield
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", symbol, err)
	}
	defer rows.Close()

	series := &domain.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var dateStr string
		var bar domain.PriceBar
		var pe, pb, roe, de, mc, dy sql.NullFloat64
		if err := rows.Scan(&dateStr, &bar.Close, &bar.Volume, &pe, &pb, &roe, &de, &mc, &dy); err != nil {
			return nil, fmt.Errorf("failed to scan price row for %s: %w", symbol, err)
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("bad date %q for %s: %w", dateStr, symbol, err)
		}
		bar.Date = date
		if pe.Valid || pb.Valid || roe.Valid || de.Valid || mc.Valid || dy.Valid {
			bar.Fundamentals = &domain.Fundamentals{
				PERatio:       pe.Float64,
				PBRatio:       pb.Float64,
				ROE:           roe.Float64,
				DebtToEquity:  de.Float64,
				MarketCap:     mc.Float64,
				DividendYield: dy.Float64,
			}
		}
		series.Bars = append(series.Bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices for %s: %w", symbol, err)
	}

	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("stored series failed validation: %w", err)
	}
	return series, nil
}

// LoadUniverse loads every stored symbol into a symbol -> series map.
// Symbols whose series fail to load are logged and skipped; only an empty
// result is an error.
func (s *Store) LoadUniverse() (map[string]*domain.PriceSeries, error) {
	symbols, err := s.Symbols()
	if err != nil {
		return nil, err
	}

	universe := make(map[string]*domain.PriceSeries, len(symbols))
	for _, symbol := range symbols {
		series, err := s.LoadSeries(symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping unloadable symbol")
			continue
		}
		universe[symbol] = series
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("no usable symbols in price store")
	}
	return universe, nil
}

// SaveSeries inserts or replaces a full series in one transaction.
func (s *Store) SaveSeries(series *domain.PriceSeries) error {
	if err := series.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid series: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_prices
			(symbol, date, close, volume, pe_ratio, pb_ratio, roe, debt_to_equity, market_cap, dividend_yield)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range series.Bars {
		var pe, pb, roe, de, mc, dy any
		if f := bar.Fundamentals; f != nil {
			pe, pb, roe, de, mc, dy = f.PERatio, f.PBRatio, f.ROE, f.DebtToEquity, f.MarketCap, f.DividendYield
		}
		if _, err := stmt.Exec(series.Symbol, bar.Date.Format(dateLayout), bar.Close, bar.Volume, pe, pb, roe, de, mc, dy); err != nil {
			return fmt.Errorf("failed to insert bar for %s: %w", series.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit series: %w", err)
	}

	s.log.Debug().Str("symbol", series.Symbol).Int("bars", series.Len()).Msg("Stored price series")
	return nil
}
