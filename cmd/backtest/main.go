// Command backtest runs trading strategies against historical price data.
//
// Modes:
//
//	seed   generate deterministic sample data into the price store
//	run    one-shot batch backtest, optimization and robustness checks,
//	       with CSV/PNG reports written to the report directory
//	serve  keep results fresh on a schedule and serve them over HTTP
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/jaeyoung0503/quant-platform-sub000/internal/analyzer"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/batch"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/calculations"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/config"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/domain"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/history"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/optimizer"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/report"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/robustness"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/server"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/simulator"
	"github.com/jaeyoung0503/quant-platform-sub000/internal/strategy"
	"github.com/jaeyoung0503/quant-platform-sub000/pkg/logger"
)

func main() {
	mode := flag.String("mode", "run", "seed, run or serve")
	strategyKind := flag.String("strategy", "momentum", "momentum, sma_cross, rsi, value, quality or dividend")
	symbols := flag.String("symbols", "AAA,BBB,CCC,DDD,EEE,FFF,GGG,HHH", "comma-separated symbols for seed mode")
	seed := flag.Uint64("seed", 42, "random seed for seed mode and Monte Carlo")
	trials := flag.Int("trials", 1000, "Monte Carlo trial count")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	store, err := history.Open(cfg.PriceDBPath(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open price store")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "seed":
		runSeed(store, *symbols, *seed, log)
	case "run":
		runBacktest(ctx, cfg, store, strategy.Kind(*strategyKind), *seed, *trials, log)
	case "serve":
		runServer(ctx, cfg, store, strategy.Kind(*strategyKind), log)
	default:
		log.Fatal().Str("mode", *mode).Msg("Unknown mode")
	}
}

func runSeed(store *history.Store, symbolList string, seed uint64, log zerolog.Logger) {
	symbols := strings.Split(symbolList, ",")
	for i := range symbols {
		symbols[i] = strings.TrimSpace(symbols[i])
	}

	start := time.Now().AddDate(-2, 0, 0)
	if err := history.SeedSampleUniverse(store, symbols, start, seed); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed sample data")
	}
	log.Info().Int("symbols", len(symbols)).Msg("Sample data seeded")
}

func runBacktest(
	ctx context.Context,
	cfg *config.Config,
	store *history.Store,
	kind strategy.Kind,
	seed uint64,
	trials int,
	log zerolog.Logger,
) {
	universe, err := store.LoadUniverse()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load universe")
	}

	sim, an, simCfg := buildPipeline(cfg, log)
	strategyCfg := strategy.DefaultConfig()
	strategyCfg.Kind = kind

	runner := batch.New(sim, an, simCfg, batch.Config{Workers: cfg.Workers, ShowProgress: true}, log)
	batchReport, err := runner.Run(ctx, universe, strategyCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch run failed")
	}

	opt := buildOptimizer(cfg, log)
	var rec *optimizer.Recommendation
	top := analyzer.TopSymbols(batchReport.Ranked, 10)
	if len(top) > 0 {
		rec, err = opt.OptimizeStrategyPortfolio(batch.PriceTable(universe, top))
		if err != nil {
			log.Warn().Err(err).Msg("Optimization failed")
		}
	}

	tester := robustness.New(sim, an, simCfg, log)
	signalFn := func(series *domain.PriceSeries) ([]domain.Signal, error) {
		return strategy.GenerateSignals(strategyCfg, series)
	}
	mc, err := tester.MonteCarlo(ctx, universe, signalFn, robustness.MonteCarloConfig{
		Trials:        trials,
		NoiseSigma:    0.02,
		SampleSize:    5,
		ProgressEvery: 100,
	}, rand.NewSource(seed))
	if err != nil {
		log.Fatal().Err(err).Msg("Monte Carlo failed")
	}
	if !mc.NoData {
		log.Info().
			Float64("mean_return", mc.Mean).
			Float64("p5", mc.P5).
			Float64("p95", mc.P95).
			Float64("prob_positive", mc.ProbPositive).
			Msg("Monte Carlo summary")
	}

	writeReports(cfg, batchReport, rec, universe, log)
}

func runServer(ctx context.Context, cfg *config.Config, store *history.Store, kind strategy.Kind, log zerolog.Logger) {
	universe, err := store.LoadUniverse()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load universe")
	}

	cache, err := calculations.Open(cfg.CacheDBPath(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open calculations cache")
	}
	defer cache.Close()

	sim, an, simCfg := buildPipeline(cfg, log)
	strategyCfg := strategy.DefaultConfig()
	strategyCfg.Kind = kind

	opt := buildOptimizer(cfg, log)
	opt.SetCache(cache)

	runner := batch.New(sim, an, simCfg, batch.Config{Workers: cfg.Workers}, log)
	tester := robustness.New(sim, an, simCfg, log)
	srv := server.New(server.Config{Port: cfg.Port}, runner, opt, tester, cache, strategyCfg, universe, log)
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func buildPipeline(cfg *config.Config, log zerolog.Logger) (*simulator.Simulator, *analyzer.Analyzer, simulator.Config) {
	sim := simulator.New(log)
	an := analyzer.New(analyzer.Config{
		RiskFreeRate:   cfg.RiskFreeRate,
		PeriodsPerYear: cfg.PeriodsPerYear,
		VaRLevel:       0.05,
	}, log)
	simCfg := simulator.Config{
		InitialCapital:      cfg.InitialCapital,
		TransactionCostRate: cfg.TransactionCostRate,
	}
	return sim, an, simCfg
}

func buildOptimizer(cfg *config.Config, log zerolog.Logger) *optimizer.Optimizer {
	return optimizer.New(optimizer.Config{
		LookbackDays:   cfg.LookbackDays,
		PeriodsPerYear: cfg.PeriodsPerYear,
		RiskFreeRate:   cfg.RiskFreeRate,
		FrontierPoints: cfg.FrontierPoints,
	}, log)
}

func writeReports(
	cfg *config.Config,
	batchReport *batch.Report,
	rec *optimizer.Recommendation,
	universe map[string]*domain.PriceSeries,
	log zerolog.Logger,
) {
	writer, err := report.NewWriter(cfg.ReportDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create report writer")
	}

	if _, err := writer.WriteMetricsCSV("metrics.csv", batchReport.Ranked); err != nil {
		log.Error().Err(err).Msg("Failed to write metrics table")
	}
	if _, err := writer.WriteOutcomesCSV("outcomes.csv", batchReport.Results); err != nil {
		log.Error().Err(err).Msg("Failed to write outcomes table")
	}

	curves := make(map[string][]float64)
	for _, m := range batchReport.Ranked[:min(5, len(batchReport.Ranked))] {
		if result, ok := batchReport.Results[m.Symbol]; ok {
			curves[m.Symbol] = result.Values
		}
	}
	if len(curves) > 0 {
		if _, err := writer.WriteEquityChart("equity.png", universe, curves); err != nil {
			log.Error().Err(err).Msg("Failed to write equity chart")
		}
	}

	if rec != nil {
		if _, err := writer.WriteWeightsCSV("weights.csv", rec); err != nil {
			log.Error().Err(err).Msg("Failed to write weights table")
		}
		if len(rec.Frontier) > 0 {
			if _, err := writer.WriteFrontierChart("frontier.png", rec.Frontier); err != nil {
				log.Error().Err(err).Msg("Failed to write frontier chart")
			}
		}
	}

	log.Info().Str("dir", cfg.ReportDir).Msg("Reports written")
}
