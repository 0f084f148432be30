package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mjheld/authstream/internal/events"
	"github.com/mjheld/authstream/internal/user"
)

// Authentication errors, mapped to HTTP status codes by the API layer.
var (
	// ErrInvalidRequest: username or password missing. Rejected before
	// any datastore access.
	ErrInvalidRequest = errors.New("username and password required")

	// ErrUnauthorized: unknown username or wrong password.
	ErrUnauthorized = errors.New("invalid credentials")

	// ErrPublishFailed: the login event could not be handed to the
	// broker. Publishing is synchronous and part of the request path, so
	// this fails the login.
	ErrPublishFailed = errors.New("publishing login event failed")
)

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token string
	User  UserInfo
}

// UserInfo is the minimal user projection exposed to clients.
type UserInfo struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// Service runs the authentication transaction. All collaborators are
// injected; the service holds no global state.
type Service struct {
	repo   user.Repository
	tokens *TokenService
	pub    events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an authentication service.
func NewService(repo user.Repository, tokens *TokenService, pub events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		tokens: tokens,
		pub:    pub,
		logger: logger,
		now:    time.Now,
	}
}

// Authenticate validates the credentials, issues and persists a session
// token, and publishes a login event. The steps are not wrapped in a
// single atomic transaction: a token may be persisted even when the
// subsequent publish fails and the request is reported as failed.
func (s *Service) Authenticate(ctx context.Context, username, password, ipAddress string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidRequest
	}

	u, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, user.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return nil, ErrUnauthorized
	}

	now := s.now().UTC()
	token, err := s.tokens.Generate(u.ID, u.Username, now)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	if _, err := s.repo.InsertToken(ctx, u.ID, token); err != nil {
		return nil, fmt.Errorf("persisting session token: %w", err)
	}

	event := events.LoginEvent{
		UserID:    u.ID,
		Username:  u.Username,
		Action:    events.ActionLogin,
		Timestamp: now,
		IPAddress: ipAddress,
	}
	if err := s.pub.Publish(ctx, event); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	s.logger.Info("user logged in",
		slog.Int("user_id", u.ID),
		slog.String("action", events.ActionLogin),
		slog.String("ip_address", ipAddress))

	return &LoginResult{
		Token: token,
		User:  UserInfo{ID: u.ID, Username: u.Username},
	}, nil
}
