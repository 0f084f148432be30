package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mjheld/authstream/internal/auth"
	"github.com/mjheld/authstream/internal/middleware"
)

// loginRequest is the POST /api/login request body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the POST /api/login success body.
type loginResponse struct {
	Message string        `json:"message"`
	Token   string        `json:"token"`
	User    auth.UserInfo `json:"user"`
}

// LoginHandlers holds dependencies for authentication endpoints.
type LoginHandlers struct {
	service *auth.Service
	logger  *slog.Logger
}

// NewLoginHandlers creates login handlers with the given auth service.
func NewLoginHandlers(service *auth.Service, logger *slog.Logger) *LoginHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginHandlers{service: service, logger: logger}
}

// Login handles POST /api/login.
//
// Success: 200 {"message": "Login successful", "token": "...", "user": {"id": 1, "username": "admin"}}
// Missing fields: 400. Unknown user or wrong password: 401 with the same
// message for both, so the response does not leak which one failed.
func (h *LoginHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Authenticate(r.Context(), req.Username, req.Password, middleware.ClientIP(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, loginResponse{
			Message: "Login successful",
			Token:   result.Token,
			User:    result.User,
		})
	case errors.Is(err, auth.ErrInvalidRequest):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidRequest, "Username and password are required")
	case errors.Is(err, auth.ErrUnauthorized):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidCredentials)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid credentials")
	default:
		h.logger.Error("login failed",
			slog.String("username", req.Username),
			slog.String("error", err.Error()))
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
	}
}
