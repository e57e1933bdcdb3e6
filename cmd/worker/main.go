package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-flow/internal/app"
	"github.com/jwalitptl/clinic-flow/internal/config"
	"github.com/jwalitptl/clinic-flow/pkg/logger"
	"github.com/jwalitptl/clinic-flow/pkg/metrics"
)

const healthAddr = ":8081"

func setupHealthCheck(ready func(context.Context) error, reg *prometheus.Registry, logger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(healthAddr, mux); err != nil {
			logger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.Storage.Driver != config.StoragePostgres {
		log.Fatal().Str("driver", cfg.Storage.Driver).Msg("Worker requires the postgres storage driver")
	}

	// Initialize logger
	workerLogger := app.NewLogger(cfg.Log)
	log.Logger = workerLogger.ZL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := app.OpenStore(ctx, cfg, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer closeStore()

	broker, err := app.OpenBroker(ctx, cfg, workerLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create broker")
	}
	defer broker.Close()

	m := metrics.New("outbox_processor")
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	processor := app.NewOutboxProcessor(cfg, store, broker, workerLogger, m)
	cleanup := app.NewOutboxCleanup(cfg, store, workerLogger)

	// Setup health check endpoints
	setupHealthCheck(store.Ping, reg, workerLogger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		workerLogger.ZL.Info().Msg("Shutting down...")
		cancel()
	}()

	go cleanup.Start(ctx)
	processor.Start(ctx)
}
