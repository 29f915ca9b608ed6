// Package postgres provides PostgreSQL implementation of the subscriptions repository.
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
	"github.com/mynaner/zero2prod/internal/subscriptions"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

// Repository implements the subscriptions.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// InsertSubscriberTx inserts a pending subscriber within a transaction.
func (r *Repository) InsertSubscriberTx(ctx context.Context, tx pgx.Tx, sub domain.NewSubscriber) (*domain.Subscriber, error) {
	query := `
		INSERT INTO subscriptions (id, email, name, subscribed_at, status)
		VALUES ($1, $2, $3, NOW(), $4)
		RETURNING subscribed_at
	`
	stored := &domain.Subscriber{
		ID:     uuid.NewString(),
		Email:  sub.Email.String(),
		Name:   sub.Name.String(),
		Status: domain.StatusPendingConfirmation,
	}

	err := tx.QueryRow(ctx, query,
		stored.ID,
		stored.Email,
		stored.Name,
		stored.Status,
	).Scan(&stored.SubscribedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, subscriptions.ErrSubscriberExists
		}
		return nil, fmt.Errorf("insert subscriber: %w", err)
	}

	return stored, nil
}

// StoreTokenTx links a confirmation token to a subscriber within a transaction.
func (r *Repository) StoreTokenTx(ctx context.Context, tx pgx.Tx, subscriberID, token string) error {
	query := `
		INSERT INTO subscription_tokens (subscription_token, subscription_id)
		VALUES ($1, $2)
	`
	if _, err := tx.Exec(ctx, query, token, subscriberID); err != nil {
		return fmt.Errorf("store subscription token: %w", err)
	}
	return nil
}

// SubscriberIDByToken resolves a confirmation token to its subscriber.
func (r *Repository) SubscriberIDByToken(ctx context.Context, token string) (string, error) {
	query := `
		SELECT subscription_id
		FROM subscription_tokens
		WHERE subscription_token = $1
	`
	var id string
	if err := r.db.QueryRow(ctx, query, token).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", subscriptions.ErrTokenNotFound
		}
		return "", fmt.Errorf("get subscriber id by token: %w", err)
	}
	return id, nil
}

// MarkConfirmed sets the subscriber status to confirmed.
func (r *Repository) MarkConfirmed(ctx context.Context, subscriberID string) error {
	query := `
		UPDATE subscriptions
		SET status = $2
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, subscriberID, domain.StatusConfirmed); err != nil {
		return fmt.Errorf("mark subscriber confirmed: %w", err)
	}
	return nil
}

// ListConfirmedEmails returns the email of every confirmed subscriber.
func (r *Repository) ListConfirmedEmails(ctx context.Context) ([]domain.ConfirmedSubscriber, error) {
	query := `
		SELECT email
		FROM subscriptions
		WHERE status = $1
		ORDER BY subscribed_at, id
	`
	rows, err := r.db.Query(ctx, query, domain.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("list confirmed subscribers: %w", err)
	}
	defer rows.Close()

	var result []domain.ConfirmedSubscriber
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan confirmed subscriber: %w", err)
		}
		result = append(result, parseConfirmed(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate confirmed subscribers: %w", err)
	}

	return result, nil
}

func parseConfirmed(raw string) domain.ConfirmedSubscriber {
	email, err := domain.ParseSubscriberEmail(raw)
	return domain.ConfirmedSubscriber{Raw: raw, Email: email, Err: err}
}
