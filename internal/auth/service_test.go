package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mjheld/authstream/internal/events"
	"github.com/mjheld/authstream/internal/user"
)

// fakeRepo implements user.Repository with canned users and call counting.
type fakeRepo struct {
	users       map[string]*user.User
	getCalls    int
	insertCalls int
	insertErr   error
}

func (f *fakeRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	f.getCalls++
	u, ok := f.users[username]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) InsertToken(ctx context.Context, userID int, token string) (*user.SessionToken, error) {
	f.insertCalls++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return &user.SessionToken{ID: f.insertCalls, UserID: userID, Token: token, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// capturePublisher records publish attempts.
type capturePublisher struct {
	events []events.LoginEvent
	err    error
}

func (c *capturePublisher) Publish(ctx context.Context, event events.LoginEvent) error {
	c.events = append(c.events, event)
	return c.err
}

func (c *capturePublisher) Close() error { return nil }

// newTestService seeds an admin user with the bcrypt hash of admin123.
func newTestService(t *testing.T) (*Service, *fakeRepo, *capturePublisher) {
	t.Helper()
	hash, err := HashPassword("admin123")
	if err != nil {
		t.Fatalf("hashing seed password: %v", err)
	}
	repo := &fakeRepo{users: map[string]*user.User{
		"admin": {ID: 1, Username: "admin", Email: "admin@example.com", PasswordHash: hash},
	}}
	pub := &capturePublisher{}
	svc := NewService(repo, NewTokenService("test-secret"), pub, nil)
	return svc, repo, pub
}

func TestAuthenticate_Success(t *testing.T) {
	svc, repo, pub := newTestService(t)

	result, err := svc.Authenticate(context.Background(), "admin", "admin123", "192.0.2.1")
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}

	if result.User.ID != 1 || result.User.Username != "admin" {
		t.Errorf("got user %+v, want id=1 username=admin", result.User)
	}

	// The token must identify the authenticated user.
	claims, err := NewTokenService("test-secret").Validate(result.Token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.Subject != "1" {
		t.Errorf("token subject = %q, want %q", claims.Subject, "1")
	}

	// Exactly one persisted token and one publish attempt.
	if repo.insertCalls != 1 {
		t.Errorf("insertCalls = %d, want 1", repo.insertCalls)
	}
	if len(pub.events) != 1 {
		t.Fatalf("publish attempts = %d, want 1", len(pub.events))
	}
	event := pub.events[0]
	if event.UserID != 1 || event.Username != "admin" || event.Action != events.ActionLogin {
		t.Errorf("got event %+v, want userId=1 username=admin action=login", event)
	}
	if event.IPAddress != "192.0.2.1" {
		t.Errorf("got ipAddress %q, want 192.0.2.1", event.IPAddress)
	}
	if event.Timestamp.IsZero() {
		t.Error("event timestamp must be set")
	}
}

func TestAuthenticate_MissingFields(t *testing.T) {
	svc, repo, pub := newTestService(t)

	for _, tc := range []struct{ username, password string }{
		{"", "admin123"},
		{"admin", ""},
		{"", ""},
	} {
		if _, err := svc.Authenticate(context.Background(), tc.username, tc.password, "192.0.2.1"); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Authenticate(%q, %q) = %v, want ErrInvalidRequest", tc.username, tc.password, err)
		}
	}

	// Validation happens before any datastore access.
	if repo.getCalls != 0 {
		t.Errorf("repository queried %d times, want 0", repo.getCalls)
	}
	if repo.insertCalls != 0 || len(pub.events) != 0 {
		t.Error("no token or event may be produced for invalid requests")
	}
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	svc, repo, pub := newTestService(t)

	if _, err := svc.Authenticate(context.Background(), "ghost", "admin123", "192.0.2.1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got error %v, want ErrUnauthorized", err)
	}
	if repo.insertCalls != 0 || len(pub.events) != 0 {
		t.Error("failed authentication must not persist a token or publish an event")
	}
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	svc, repo, pub := newTestService(t)

	if _, err := svc.Authenticate(context.Background(), "admin", "nope", "192.0.2.1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got error %v, want ErrUnauthorized", err)
	}
	if repo.insertCalls != 0 || len(pub.events) != 0 {
		t.Error("failed authentication must not persist a token or publish an event")
	}
}

func TestAuthenticate_PublishFailure(t *testing.T) {
	svc, repo, pub := newTestService(t)
	pub.err = errors.New("broker unreachable")

	_, err := svc.Authenticate(context.Background(), "admin", "admin123", "192.0.2.1")
	if !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("got error %v, want ErrPublishFailed", err)
	}

	// Publish is attempted exactly once; no internal retry.
	if len(pub.events) != 1 {
		t.Errorf("publish attempts = %d, want 1", len(pub.events))
	}
	// The token was already persisted when the publish failed; the steps
	// are not atomic.
	if repo.insertCalls != 1 {
		t.Errorf("insertCalls = %d, want 1", repo.insertCalls)
	}
}

func TestAuthenticate_InsertFailure(t *testing.T) {
	svc, repo, pub := newTestService(t)
	repo.insertErr = errors.New("disk full")

	if _, err := svc.Authenticate(context.Background(), "admin", "admin123", "192.0.2.1"); err == nil {
		t.Fatal("expected error")
	}
	if len(pub.events) != 0 {
		t.Error("no event may be published when token persistence fails")
	}
}
