// FILE: main.go
// Package main – Program entrypoint and HTTP/metrics server.
//
// Boot sequence:
//   1) loadDotEnv()               – read .env (no shell exports required)
//   2) cfg := loadConfigFromEnv() – build runtime Config via viper
//   3) initLogging()              – zerolog, pretty or JSON per cfg
//   4) wire Venue (paper or binance-futures), Quantizer, Engine
//   5) start Prometheus /metrics and /healthz server on cfg.Port
//   6) start the Price Feed and the processor loop
//   7) on SIGINT/SIGTERM, join the processor worker and shut the HTTP server down
//
// Flags:
//   -confirm-live   Required in addition to CONFIRM_LIVE=true to run with DRY_RUN=false
//
// Grounded on the teacher's main.go boot-sequence shape (flag parse -> env/config
// load -> broker wiring switch -> start metrics HTTP server -> run -> graceful
// shutdown of the HTTP server), generalized to the grid engine's Venue/Engine
// wiring and the spec's required live-confirmation gate (SPEC_FULL §6).

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	var confirmLiveFlag bool
	flag.BoolVar(&confirmLiveFlag, "confirm-live", false, "Required (together with CONFIRM_LIVE=true) to run with DRY_RUN=false")
	flag.Parse()

	initLogging(false, true) // conservative default so config loading itself can log
	loadDotEnv()
	cfg := loadConfigFromEnv()
	initLogging(cfg.LogPretty, cfg.DebugVerbose) // re-init with the operator's configured settings

	if !cfg.DryRun {
		if !cfg.ConfirmLive || !confirmLiveFlag {
			logger.Fatal().Msg("DRY_RUN=false requires both CONFIRM_LIVE=true and -confirm-live to avoid accidental live trading")
		}
	}

	journal := NewJournal(cfg.CSVFile)
	if err := journal.Init(); err != nil {
		logger.Fatal().Err(err).Msg("journal init failed")
	}

	var venue Venue
	if cfg.DryRun {
		paperFilters := Filters{
			TickSize:       decimal.NewFromFloat(0.1),
			StepSize:       decimal.NewFromFloat(0.001),
			MinQty:         decimal.NewFromFloat(0.001),
			MinNotional:    decimal.NewFromInt(5),
			PricePrecision: 1,
			QtyPrecision:   3,
		}
		paper := NewPaperVenue(cfg.Symbol, paperFilters, cfg.TakerFee)
		paper.SetLast(cfg.GridStep.Mul(decimal.NewFromInt(100))) // arbitrary seed price so an empty grid has somewhere to start
		venue = paper
	} else {
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			logger.Fatal().Msg("BINANCE_API_KEY / BINANCE_API_SECRET required when DRY_RUN=false")
		}
		venue = NewBinanceVenue(apiKey, apiSecret, cfg.UseTestnet)
	}

	alerter := NewAlerter(cfg)

	store := NewStateStore(cfg.StateFile)
	engine, err := NewEngine(cfg, venue, store, journal, alerter)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine init failed")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("serving metrics on /metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	feed := NewPriceFeed(cfg.Symbol, venue, !cfg.DryRun, cfg.PriceRefresh)
	go feed.Run(ctx, engine.Enqueue)

	engine.Start(ctx)
	awaitShutdown(engine)

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}

