// Package server exposes backtest results over HTTP. Results are computed by
// a background refresh (on start and on a cron schedule) and served from
// memory; request handlers never run the pipeline themselves.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/batch"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/calculations"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/optimizer"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/robustness"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/strategy"
)

// Config holds the server parameters.
type Config struct {
	Port            int
	RefreshSchedule string // cron spec for the background refresh, default hourly
	TopN            int    // symbols fed into the optimizer, default 10
	MonteCarloSeed  uint64 // seed for the refresh-time Monte Carlo, default 1
	MonteCarlo      robustness.MonteCarloConfig
}

// Server serves cached backtest results and keeps them fresh.
type Server struct {
	cfg         Config
	runner      *batch.Runner
	opt         *optimizer.Optimizer
	tester      *robustness.Tester
	cache       *calculations.Cache
	strategyCfg strategy.Config
	universe    map[string]*domain.PriceSeries
	log         zerolog.Logger

	mu             sync.RWMutex
	lastReport     *batch.Report
	lastRec        *optimizer.Recommendation
	lastMC         *robustness.MonteCarloReport
	lastRefreshed  time.Time
	lastRefreshErr string
}

// New creates a Server. The universe is loaded once at startup; refreshes
// rerun the pipeline over it.
func New(
	cfg Config,
	runner *batch.Runner,
	opt *optimizer.Optimizer,
	tester *robustness.Tester,
	cache *calculations.Cache,
	strategyCfg strategy.Config,
	universe map[string]*domain.PriceSeries,
	log zerolog.Logger,
) *Server {
	if cfg.RefreshSchedule == "" {
		cfg.RefreshSchedule = "0 * * * *"
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if cfg.MonteCarloSeed == 0 {
		cfg.MonteCarloSeed = 1
	}
	if cfg.MonteCarlo.Trials <= 0 {
		cfg.MonteCarlo = robustness.MonteCarloConfig{
			Trials:        200,
			NoiseSigma:    0.02,
			SampleSize:    5,
			ProgressEvery: 100,
		}
	}
	return &Server{
		cfg:         cfg,
		runner:      runner,
		opt:         opt,
		tester:      tester,
		cache:       cache,
		strategyCfg: strategyCfg,
		universe:    universe,
		log:         log.With().Str("component", "server").Logger(),
	}
}

// Run refreshes once, starts the cron refresher, and serves until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.refresh(ctx)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(s.cfg.RefreshSchedule, func() {
		s.refresh(context.Background())
		if s.cache != nil {
			if _, err := s.cache.Prune(); err != nil {
				s.log.Warn().Err(err).Msg("Cache prune failed")
			}
		}
	}); err != nil {
		return fmt.Errorf("bad refresh schedule %q: %w", s.cfg.RefreshSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/metrics", s.handleMetrics)
	r.Get("/api/metrics/{symbol}", s.handleSymbolMetrics)
	r.Get("/api/summary", s.handleSummary)
	r.Get("/api/optimization", s.handleOptimization)
	r.Get("/api/robustness", s.handleRobustness)
	r.Post("/api/refresh", s.handleRefresh)

	return r
}

// refresh reruns the batch pipeline and the optimizer over the top-ranked
// symbols, then swaps the cached results in one critical section.
func (s *Server) refresh(ctx context.Context) {
	report, err := s.runner.Run(ctx, s.universe, s.strategyCfg)
	if err != nil {
		s.log.Error().Err(err).Msg("Refresh failed")
		s.mu.Lock()
		s.lastRefreshErr = err.Error()
		s.mu.Unlock()
		return
	}

	var rec *optimizer.Recommendation
	topN := s.cfg.TopN
	if topN > len(report.Ranked) {
		topN = len(report.Ranked)
	}
	if topN > 0 {
		symbols := make([]string, topN)
		for i := 0; i < topN; i++ {
			symbols[i] = report.Ranked[i].Symbol
		}
		rec, err = s.opt.OptimizeStrategyPortfolio(batch.PriceTable(s.universe, symbols))
		if err != nil {
			s.log.Warn().Err(err).Msg("Optimization failed during refresh")
		}
	}

	var mc *robustness.MonteCarloReport
	if s.tester != nil {
		signalFn := func(series *domain.PriceSeries) ([]domain.Signal, error) {
			return strategy.GenerateSignals(s.strategyCfg, series)
		}
		mc, err = s.tester.MonteCarlo(ctx, s.universe, signalFn, s.cfg.MonteCarlo,
			rand.NewSource(s.cfg.MonteCarloSeed))
		if err != nil {
			s.log.Warn().Err(err).Msg("Monte Carlo failed during refresh")
		}
	}

	s.mu.Lock()
	s.lastReport = report
	s.lastRec = rec
	if mc != nil {
		s.lastMC = mc
	}
	s.lastRefreshed = time.Now()
	s.lastRefreshErr = ""
	s.mu.Unlock()

	s.log.Info().Int("analyzed", report.Analyzed).Msg("Refresh complete")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"symbols":        len(s.universe),
		"last_refreshed": s.lastRefreshed,
		"refresh_error":  s.lastRefreshErr,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	report := s.lastReport
	s.mu.RUnlock()
	if report == nil {
		writeError(w, http.StatusServiceUnavailable, "no results yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":   report.RunID,
		"ranked":   report.Ranked,
		"analyzed": report.Analyzed,
		"skipped":  report.Skipped,
	})
}

func (s *Server) handleSymbolMetrics(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	s.mu.RLock()
	report := s.lastReport
	s.mu.RUnlock()
	if report == nil {
		writeError(w, http.StatusServiceUnavailable, "no results yet")
		return
	}

	result, ok := report.Results[symbol]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown symbol %q", symbol))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	report := s.lastReport
	s.mu.RUnlock()
	if report == nil {
		writeError(w, http.StatusServiceUnavailable, "no results yet")
		return
	}
	writeJSON(w, http.StatusOK, report.Summary)
}

func (s *Server) handleOptimization(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rec := s.lastRec
	s.mu.RUnlock()
	if rec == nil {
		writeError(w, http.StatusServiceUnavailable, "no optimization yet")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRobustness(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	mc := s.lastMC
	s.mu.RUnlock()
	if mc == nil {
		writeError(w, http.StatusServiceUnavailable, "no robustness results yet")
		return
	}
	writeJSON(w, http.StatusOK, mc)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	go s.refresh(context.Background())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh started"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
