package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// usernameConstraint is the unique constraint on users.user_name.
const usernameConstraint = "users_user_name_key"

// Store defines the interface for user data operations.
type Store interface {
	Create(ctx context.Context, username, passwordHash, allergy string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore on an open connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a user and returns the stored row. A taken username surfaces
// as the driver's unique violation on users_user_name_key.
func (s *PostgresStore) Create(ctx context.Context, username, passwordHash, allergy string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `
		INSERT INTO users (user_name, password, allergy)
		VALUES ($1, $2, $3)
		RETURNING user_id, user_name, password, allergy`,
		username, passwordHash, allergy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

// GetByUsername retrieves a user by name. It returns nil, nil when there is
// no such user.
func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		"SELECT user_id, user_name, password, allergy FROM users WHERE user_name = $1",
		username,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
