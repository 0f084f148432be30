package api

import (
	"log/slog"
	"net/http"

	"github.com/mjheld/authstream/internal/middleware"
)

// RouterConfig collects the handlers and middleware inputs for the server
// mux.
type RouterConfig struct {
	Login   *LoginHandlers
	Health  *HealthHandlers
	Metrics http.Handler
	Logger  *slog.Logger

	// HTTPMetrics instruments request counts and latency. Optional.
	HTTPMetrics *middleware.HTTPMetrics

	// LoginLimit rate limits the login endpoint per client IP. Zero value
	// falls back to the default limit.
	LoginLimit middleware.RateLimitConfig
}

// NewRouter builds the HTTP handler tree: routes, per-route rate limiting,
// and the request ID / logging / metrics middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	limit := cfg.LoginLimit
	if limit.Validate() != nil {
		limit = middleware.DefaultLoginLimit()
	}
	limiter := middleware.RateLimiter(middleware.NewInMemoryRateLimitStore(), limit)

	mux.Handle("POST /api/login", limiter(http.HandlerFunc(cfg.Login.Login)))
	mux.HandleFunc("GET /health", cfg.Health.Health)
	mux.HandleFunc("GET /db-health", cfg.Health.DBHealth)
	mux.HandleFunc("GET /broker-health", cfg.Health.BrokerHealth)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	var handler http.Handler = mux
	if cfg.HTTPMetrics != nil {
		handler = middleware.Instrument(cfg.HTTPMetrics)(handler)
	}
	if cfg.Logger != nil {
		handler = middleware.Logging(cfg.Logger)(handler)
	}
	return middleware.RequestID(handler)
}
