// Package newsletters publishes issues to confirmed subscribers.
package newsletters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/notifications"
	"github.com/mynaner/zero2prod/internal/pkg/metrics"
)

// Service errors.
var (
	ErrDelivery = errors.New("newsletter delivery failed")
	ErrStorage  = errors.New("failed to load subscribers")
)

// Authenticator verifies publisher credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, creds domain.Credentials) (string, error)
}

// RecipientSource lists confirmed subscribers.
type RecipientSource interface {
	ListConfirmedEmails(ctx context.Context) ([]domain.ConfirmedSubscriber, error)
}

// Issue is a newsletter edition.
type Issue struct {
	Title    string
	HTMLBody string
	TextBody string
}

// Report summarizes a completed publication.
type Report struct {
	Delivered int `json:"delivered"`
	Skipped   int `json:"skipped"`
}

// DeliveryError names the recipient whose send aborted the batch.
type DeliveryError struct {
	Recipient string
	Delivered int
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: send to %s after %d delivered: %v", ErrDelivery, e.Recipient, e.Delivered, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{ErrDelivery, e.Err}
}

// Service handles newsletter publication.
type Service struct {
	auth       Authenticator
	recipients RecipientSource
	sender     notifications.Sender
	logger     *slog.Logger
}

// NewService creates a new newsletters service.
func NewService(auth Authenticator, recipients RecipientSource, sender notifications.Sender, logger *slog.Logger) *Service {
	return &Service{
		auth:       auth,
		recipients: recipients,
		sender:     sender,
		logger:     logger,
	}
}

// Publish authenticates the publisher and sends issue to every confirmed
// subscriber in turn. Stored addresses that no longer validate are skipped.
// The first failed send stops the batch and is returned as *DeliveryError.
func (s *Service) Publish(ctx context.Context, creds domain.Credentials, issue Issue) (*Report, error) {
	logger := s.logger.With("username", creds.Username)

	userID, err := s.auth.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}
	logger = logger.With("user_id", userID)

	list, err := s.recipients.ListConfirmedEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	report := &Report{}
	for _, r := range list {
		if r.Err != nil {
			logger.Warn("skipping a confirmed subscriber, stored contact details are invalid",
				"error", r.Err,
			)
			metrics.NewsletterRecipients.WithLabelValues("skipped").Inc()
			report.Skipped++
			continue
		}

		msg := notifications.Message{
			To:       r.Email,
			Subject:  issue.Title,
			HTMLBody: issue.HTMLBody,
			TextBody: issue.TextBody,
			Kind:     notifications.KindNewsletter,
		}
		if err := s.sender.Send(ctx, msg); err != nil {
			metrics.NewsletterRecipients.WithLabelValues("failed").Inc()
			return nil, &DeliveryError{Recipient: r.Email.String(), Delivered: report.Delivered, Err: err}
		}
		metrics.NewsletterRecipients.WithLabelValues("delivered").Inc()
		report.Delivered++
	}

	logger.Info("newsletter issue published",
		"title", issue.Title,
		"delivered", report.Delivered,
		"skipped", report.Skipped,
	)
	return report, nil
}
