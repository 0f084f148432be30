package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mjheld/authstream/internal/backoff"
)

// ErrPublisherUnavailable is returned when publishing is attempted before
// the broker connection has been established.
var ErrPublisherUnavailable = errors.New("event publisher not connected")

// SwappablePublisher starts without a broker connection and publishes
// through whatever Publisher is swapped in later. It lets the HTTP server
// accept traffic immediately while the broker connection is established in
// the background; until then every publish fails with
// ErrPublisherUnavailable.
type SwappablePublisher struct {
	mu  sync.RWMutex
	pub Publisher
}

// NewSwappablePublisher returns a publisher with no connection yet.
func NewSwappablePublisher() *SwappablePublisher {
	return &SwappablePublisher{}
}

// Swap installs the real publisher. Safe to call while publishes are in
// flight.
func (s *SwappablePublisher) Swap(pub Publisher) {
	s.mu.Lock()
	s.pub = pub
	s.mu.Unlock()
}

// Publish delegates to the installed publisher, or fails if none is
// installed yet.
func (s *SwappablePublisher) Publish(ctx context.Context, event LoginEvent) error {
	s.mu.RLock()
	pub := s.pub
	s.mu.RUnlock()
	if pub == nil {
		return ErrPublisherUnavailable
	}
	return pub.Publish(ctx, event)
}

// Connected reports whether a publisher is installed and, if it exposes
// connection state, whether its connection is up. This is the health
// signal behind GET /broker-health.
func (s *SwappablePublisher) Connected() bool {
	s.mu.RLock()
	pub := s.pub
	s.mu.RUnlock()
	if pub == nil {
		return false
	}
	if c, ok := pub.(interface{ Connected() bool }); ok {
		return c.Connected()
	}
	return true
}

func (s *SwappablePublisher) Close() error {
	s.mu.Lock()
	pub := s.pub
	s.pub = nil
	s.mu.Unlock()
	if pub == nil {
		return nil
	}
	return pub.Close()
}

// ConnectBackground establishes the broker connection on a background
// goroutine: wait the initial delay, then retry through the backoff
// connector and swap the publisher in on success. Exhaustion is logged and
// otherwise ignored; a missing broker must never take down the HTTP
// service.
func (s *SwappablePublisher) ConnectBackground(ctx context.Context, logger *slog.Logger, url string, initialDelay time.Duration) {
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialDelay):
		}

		pub, err := backoff.Connect(ctx, logger, "broker", backoff.BrokerPolicy(), func(ctx context.Context) (Publisher, error) {
			return NewJetStreamPublisher(url)
		})
		if err != nil {
			logger.Warn("broker connection failed, continuing without event publishing",
				slog.String("url", url),
				slog.String("error", err.Error()))
			return
		}

		s.Swap(pub)
		logger.Info("broker producer connected", slog.String("url", url))
	}()
}
