// Package db opens the PostgreSQL connection pool, applies embedded schema
// migrations, and seeds the default credential record.
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/mjheld/authstream/internal/auth"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Seed credentials for the default admin record, created at initialization
// if absent. The password is stored as a bcrypt hash.
const (
	SeedUsername = "admin"
	SeedEmail    = "admin@example.com"
	SeedPassword = "admin123"
)

// Open connects to the database at the given URL, configures the
// connection pool, and verifies connectivity with a ping. The returned
// handle is shared by all request handlers; callers own its lifecycle.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate applies any pending embedded migrations.
func Migrate(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Seed creates the default admin user if it does not exist yet.
func Seed(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	var id int
	err := db.QueryRowContext(ctx, "SELECT id FROM users WHERE username = $1", SeedUsername).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for seed user: %w", err)
	}

	hash, err := auth.HashPassword(SeedPassword)
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3)",
		SeedUsername, SeedEmail, hash)
	if err != nil {
		return fmt.Errorf("inserting seed user: %w", err)
	}

	logger.Info("default user created", slog.String("username", SeedUsername))
	return nil
}
