// Package backoff provides bounded fixed-delay retry for establishing
// connections to external dependencies during startup.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Default retry parameters for dependency setup.
const (
	// DefaultAttempts is the maximum number of connection attempts.
	DefaultAttempts = 10

	// DefaultDatabaseDelay is the wait between datastore connection attempts.
	DefaultDatabaseDelay = 2 * time.Second

	// DefaultBrokerDelay is the wait between broker connection attempts.
	DefaultBrokerDelay = 3 * time.Second
)

// ErrExhausted is returned when all connection attempts have failed.
// Callers treat it as fatal for required dependencies and non-fatal for
// optional ones.
var ErrExhausted = errors.New("connection attempts exhausted")

// Policy describes a bounded retry schedule. The delay is fixed: attempts
// are cheap and bounded, so there is no jitter or exponential growth.
type Policy struct {
	// Attempts is the maximum number of tries. Values < 1 are treated as 1.
	Attempts int
	// Delay is the fixed wait between consecutive attempts.
	Delay time.Duration
}

// DatabasePolicy returns the default schedule for datastore connections.
func DatabasePolicy() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDatabaseDelay}
}

// BrokerPolicy returns the default schedule for broker connections.
func BrokerPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultBrokerDelay}
}

// Connect attempts the setup operation until it succeeds or the policy is
// exhausted. The resource from the first successful attempt is returned.
// Failed attempts are logged at warn level with the attempt number.
//
// On exhaustion the returned error wraps ErrExhausted together with the
// last attempt's error. Context cancellation aborts the inter-attempt
// wait and returns the context error.
func Connect[T any](ctx context.Context, logger *slog.Logger, name string, policy Policy, setup func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if logger == nil {
		logger = slog.Default()
	}
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resource, err := setup(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("connection established after retry",
					slog.String("dependency", name),
					slog.Int("attempt", attempt))
			}
			return resource, nil
		}
		lastErr = err

		logger.Warn("connection attempt failed",
			slog.String("dependency", name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.String("error", err.Error()))

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(policy.Delay):
		}
	}

	return zero, fmt.Errorf("connecting to %s after %d attempts: %w: %w", name, attempts, ErrExhausted, lastErr)
}
