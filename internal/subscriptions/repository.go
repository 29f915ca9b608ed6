package subscriptions

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/mynaner/zero2prod/internal/domain"
)

// Repository defines the interface for subscription data operations.
type Repository interface {
	// Transaction methods
	BeginTx(ctx context.Context) (pgx.Tx, error)
	// InsertSubscriberTx stores a pending subscriber and returns the stored row.
	// A duplicate email yields ErrSubscriberExists.
	InsertSubscriberTx(ctx context.Context, tx pgx.Tx, sub domain.NewSubscriber) (*domain.Subscriber, error)
	StoreTokenTx(ctx context.Context, tx pgx.Tx, subscriberID, token string) error

	// SubscriberIDByToken returns ErrTokenNotFound when no row matches.
	SubscriberIDByToken(ctx context.Context, token string) (string, error)
	// MarkConfirmed is idempotent.
	MarkConfirmed(ctx context.Context, subscriberID string) error
	// ListConfirmedEmails re-parses every stored email; rows that no longer
	// parse are returned with Err set.
	ListConfirmedEmails(ctx context.Context) ([]domain.ConfirmedSubscriber, error)
}
