// Package postgres provides PostgreSQL implementation of the identity repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/identity"
)

const uniqueViolation = "23505"

// Repository implements identity.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetStoredCredentials loads the id and password hash for username.
func (r *Repository) GetStoredCredentials(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT user_id, username, password_hash, created_at
		FROM users
		WHERE username = $1
	`
	var (
		user domain.User
		hash string
	)
	err := r.db.QueryRow(ctx, query, username).Scan(&user.ID, &user.Username, &hash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get stored credentials: %w", err)
	}
	user.PasswordHash = domain.NewSecret(hash)
	return &user, nil
}

// CreateUser inserts a publisher account and fills in ID and CreatedAt.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (user_id, username, password_hash, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at
	`
	id := uuid.NewString()
	err := r.db.QueryRow(ctx, query, id, user.Username, user.PasswordHash.Expose()).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return identity.ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	user.ID = id
	return nil
}
