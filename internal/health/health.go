// Package health provides readiness checkers for the API server's
// dependencies.
package health

import (
	"context"
	"database/sql"
	"errors"
)

// Checker reports whether a dependency is usable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// DBChecker implements health checking for SQL databases.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database over the existing pool.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// ErrBrokerDisconnected is returned while the event broker connection has
// not been established or has been lost.
var ErrBrokerDisconnected = errors.New("broker not connected")

// BrokerChecker reports the state of the event publisher connection. The
// API keeps serving logins while the broker is down, so this surfaces a
// degraded state rather than failing readiness outright.
type BrokerChecker struct {
	connected func() bool
}

// NewBrokerChecker creates a broker health checker from a connection
// status probe.
func NewBrokerChecker(connected func() bool) *BrokerChecker {
	return &BrokerChecker{connected: connected}
}

// HealthCheck returns ErrBrokerDisconnected while the probe reports no
// live connection.
func (b *BrokerChecker) HealthCheck(ctx context.Context) error {
	if b.connected == nil || !b.connected() {
		return ErrBrokerDisconnected
	}
	return nil
}
