// Package main is the entry point for the audit log consumer. It runs as
// an independent process: it subscribes to the login event stream, emits
// one structured audit entry per event, and serves Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mjheld/authstream/internal/auditor"
	"github.com/mjheld/authstream/internal/config"
	"github.com/mjheld/authstream/internal/middleware"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file (optional)")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Authstream Audit Consumer")
		fmt.Println()
		fmt.Println("Usage: auditor [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := auditor.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		logger.Error("registering metrics failed", "error", err)
		os.Exit(1)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", auditor.MetricsHandler(registry))
	metricsServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:     metricsMux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	consumer := auditor.New(logger, metrics)
	err := consumer.Run(ctx, cfg.NATSURL)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("metrics server forced to shutdown", "error", shutdownErr)
	}

	// Context cancellation is a clean shutdown; anything else, including an
	// exhausted connection retry schedule, is fatal.
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("consumer stopped")
}
