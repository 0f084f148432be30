// Package main is the entry point for the authentication API server.
package main

import (
	"context"
	"database/sql"
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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mjheld/authstream/internal/api"
	"github.com/mjheld/authstream/internal/auth"
	"github.com/mjheld/authstream/internal/backoff"
	"github.com/mjheld/authstream/internal/config"
	"github.com/mjheld/authstream/internal/db"
	"github.com/mjheld/authstream/internal/events"
	"github.com/mjheld/authstream/internal/health"
	"github.com/mjheld/authstream/internal/middleware"
	"github.com/mjheld/authstream/internal/user"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file (optional)")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Authstream API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) == 0 {
		errs = cfg.ValidateServer()
	}
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

	// The database is required: exhaust the retry schedule and exit.
	database, err := backoff.Connect(ctx, logger, "database", backoff.DatabasePolicy(), func(ctx context.Context) (*sql.DB, error) {
		return db.Open(cfg.DatabaseURL())
	})
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		logger.Error("applying migrations failed", "error", err)
		os.Exit(1)
	}
	if err := db.Seed(ctx, database, logger); err != nil {
		logger.Error("seeding default user failed", "error", err)
		os.Exit(1)
	}

	// The broker is optional at startup: the server accepts logins
	// immediately and the publisher connects in the background.
	publisher := events.NewSwappablePublisher()
	publisher.ConnectBackground(ctx, logger, cfg.NATSURL, cfg.BrokerConnectDelay)
	defer publisher.Close()

	repo := user.NewPostgresRepository(database)
	tokens := auth.NewTokenService(cfg.JWTSecret)
	authService := auth.NewService(repo, tokens, publisher, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewHTTPMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("registering HTTP metrics failed", "error", err)
		os.Exit(1)
	}

	handler := api.NewRouter(api.RouterConfig{
		Login:       api.NewLoginHandlers(authService, logger),
		Health:      api.NewHealthHandlers(health.NewDBChecker(database), health.NewBrokerChecker(publisher.Connected), logger),
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:      logger,
		HTTPMetrics: httpMetrics,
		LoginLimit:  middleware.DefaultLoginLimit(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
