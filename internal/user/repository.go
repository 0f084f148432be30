package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepository implements Repository backed by a PostgreSQL database.
// The *sql.DB handle is injected; the repository does not own its
// lifecycle.
type PostgresRepository struct {
	db *sql.DB
}

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repository on top of an open connection
// pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const getByUsernameQuery = `
SELECT id, username, email, password_hash
FROM users
WHERE username = $1`

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, getByUsernameQuery, username).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %q: %w", username, err)
	}
	return &u, nil
}

const insertTokenQuery = `
INSERT INTO user_tokens (user_id, token, expires_at)
VALUES ($1, $2, NOW() + INTERVAL '1 hour')
RETURNING id, expires_at`

func (r *PostgresRepository) InsertToken(ctx context.Context, userID int, token string) (*SessionToken, error) {
	st := SessionToken{UserID: userID, Token: token}
	err := r.db.QueryRowContext(ctx, insertTokenQuery, userID, token).
		Scan(&st.ID, &st.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("inserting session token for user %d: %w", userID, err)
	}
	return &st, nil
}
