package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mjheld/authstream/internal/middleware"
)

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 5 * time.Second

// HealthHandlers provides the liveness and dependency probe endpoints.
type HealthHandlers struct {
	dbChecker     HealthChecker
	brokerChecker HealthChecker
	logger        *slog.Logger
}

// NewHealthHandlers creates health handlers for the given checkers.
func NewHealthHandlers(dbChecker, brokerChecker HealthChecker, logger *slog.Logger) *HealthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandlers{
		dbChecker:     dbChecker,
		brokerChecker: brokerChecker,
		logger:        logger,
	}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /health (liveness probe). If the process can respond,
// it is alive.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Message:   "Auth API is running",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// DBHealth handles GET /db-health. Returns 200 when the database answers a
// ping, 500 otherwise.
func (h *HealthHandlers) DBHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.dbChecker.HealthCheck(ctx); err != nil {
		h.logger.WarnContext(ctx, "database health check failed", "error", err)
		errCtx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, errCtx, http.StatusInternalServerError, ErrCodeInternal, "Database connection failed")
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Message:   "Database connection is healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// BrokerHealth handles GET /broker-health. Returns 200 once the background
// broker connection is established, 503 while it is still pending or lost.
// A degraded broker does not take the login endpoint down with it.
func (h *HealthHandlers) BrokerHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.brokerChecker.HealthCheck(ctx); err != nil {
		h.logger.WarnContext(ctx, "broker health check failed", "error", err)
		errCtx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, errCtx, http.StatusServiceUnavailable, ErrCodeInternal, "Event broker not connected")
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Message:   "Event broker connection is healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
