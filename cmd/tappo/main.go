package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tappo/tappo/internal/config"
	"github.com/tappo/tappo/internal/database"
	"github.com/tappo/tappo/internal/httpserver"
	"github.com/tappo/tappo/internal/metrics"
	"github.com/tappo/tappo/internal/middleware"
	"go.uber.org/zap"
)

const dbStatsInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting tappo",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("event_backend", cfg.Analytics.EventBackend),
		zap.String("fetcher", cfg.Reviews.Fetcher),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conns := database.Open(ctx, cfg, logger)
	defer func() {
		if err := conns.Close(); err != nil {
			logger.Warn("failed to close connections", zap.Error(err))
		}
	}()

	if conns.Postgres == nil && !cfg.IsDevelopment() {
		logger.Fatal("PostgreSQL is required outside development, refusing to serve from memory",
			zap.String("env", cfg.Server.Env),
		)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	deps, err := httpserver.NewDependencies(cfg, conns, m, reg, logger)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer deps.Geo.Close()

	server := httpserver.NewServer(deps)
	go server.RunMaintenance(ctx)
	if conns.Postgres != nil {
		go reportDBStats(ctx, conns.Postgres, m)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Reviews.JobTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func reportDBStats(ctx context.Context, db *database.PostgresDB, m *metrics.Metrics) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := db.Stats()
			m.UpdateDBStats(st.Idle, st.InUse, st.Total)
		}
	}
}
