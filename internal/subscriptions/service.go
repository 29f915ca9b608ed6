// Package subscriptions implements the subscribe and confirm workflow.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jackc/pgx/v5"

	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/notifications"
)

// ConfirmPath is the route that consumes confirmation tokens.
const ConfirmPath = "/subscriptions/confirm"

// TokenParam is the query parameter carrying the confirmation token.
const TokenParam = "subscription_token"

// ConfirmationRenderer renders the confirmation email.
type ConfirmationRenderer interface {
	RenderConfirmation(to domain.SubscriberEmail, name domain.SubscriberName, link string) (notifications.Message, error)
}

// Service handles subscription business logic.
type Service struct {
	repo     Repository
	sender   notifications.Sender
	renderer ConfirmationRenderer
	baseURL  string
	logger   *slog.Logger

	newToken func() (string, error)
}

// NewService creates a new subscription service. baseURL prefixes the
// confirmation link.
func NewService(repo Repository, sender notifications.Sender, renderer ConfirmationRenderer, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		sender:   sender,
		renderer: renderer,
		baseURL:  baseURL,
		logger:   logger,
		newToken: GenerateToken,
	}
}

// SubscribeInput is the raw applicant data.
type SubscribeInput struct {
	Name  string
	Email string
}

// Subscribe validates the applicant, stores a pending subscriber together
// with its confirmation token in one transaction and then emails the
// confirmation link. A failed send is reported as ErrNotification; the
// stored subscription is kept.
func (s *Service) Subscribe(ctx context.Context, input SubscribeInput) (*domain.Subscriber, error) {
	sub, err := domain.ParseNewSubscriber(input.Name, input.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSubscriber, err)
	}

	stored, token, err := s.storePending(ctx, sub)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("subscriber_id", stored.ID)
	logger.Info("new subscriber saved")

	link, err := ConfirmationLink(s.baseURL, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotification, err)
	}

	msg, err := s.renderer.RenderConfirmation(sub.Email, sub.Name, link)
	if err != nil {
		return nil, fmt.Errorf("%w: render: %w", ErrNotification, err)
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotification, err)
	}

	logger.Info("confirmation email sent", "transport", s.sender.Transport())
	return stored, nil
}

// storePending runs insert, token generation and token storage in a single
// transaction. Nothing is persisted unless every step succeeds.
func (s *Service) storePending(ctx context.Context, sub domain.NewSubscriber) (*domain.Subscriber, string, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: begin transaction: %w", ErrStorage, err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Error("failed to rollback transaction", "error", err)
		}
	}()

	stored, err := s.repo.InsertSubscriberTx(ctx, tx, sub)
	if err != nil {
		if errors.Is(err, ErrSubscriberExists) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: insert subscriber: %w", ErrStorage, err)
	}

	token, err := s.newToken()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := s.repo.StoreTokenTx(ctx, tx, stored.ID, token); err != nil {
		return nil, "", fmt.Errorf("%w: store token: %w", ErrStorage, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("%w: commit: %w", ErrStorage, err)
	}

	return stored, token, nil
}

// Confirm marks the subscriber owning token as confirmed. Malformed and
// unknown tokens both yield ErrTokenNotFound. Confirming twice succeeds.
func (s *Service) Confirm(ctx context.Context, token string) error {
	if !IsWellFormedToken(token) {
		return ErrTokenNotFound
	}

	id, err := s.repo.SubscriberIDByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return err
		}
		return fmt.Errorf("%w: lookup token: %w", ErrStorage, err)
	}

	if err := s.repo.MarkConfirmed(ctx, id); err != nil {
		return fmt.Errorf("%w: mark confirmed: %w", ErrStorage, err)
	}

	s.logger.Info("subscriber confirmed", "subscriber_id", id)
	return nil
}

// ConfirmationLink builds {baseURL}/subscriptions/confirm?subscription_token=<token>.
func ConfirmationLink(baseURL, token string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	link := base.JoinPath(ConfirmPath)
	q := link.Query()
	q.Set(TokenParam, token)
	link.RawQuery = q.Encode()
	return link.String(), nil
}
