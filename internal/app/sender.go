package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mynaner/zero2prod/internal/config"
	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/notifications"
	"github.com/mynaner/zero2prod/internal/notifications/postmark"
	"github.com/mynaner/zero2prod/internal/notifications/ses"
	"github.com/mynaner/zero2prod/internal/notifications/smtp"
)

// newSender builds the transport selected by cfg.Transport.
func newSender(ctx context.Context, cfg config.EmailClientConfig, logger *slog.Logger) (notifications.Sender, error) {
	from, err := domain.ParseSubscriberEmail(cfg.SenderEmail)
	if err != nil {
		return nil, fmt.Errorf("sender email: %w", err)
	}

	logger = logger.With("transport", cfg.Transport)

	var sender notifications.Sender
	switch cfg.Transport {
	case config.TransportPostmark:
		sender, err = newPostmark(postmark.Config{
			BaseURL:            cfg.BaseURL,
			Sender:             from,
			AuthorizationToken: domain.NewSecret(cfg.AuthorizationToken),
			Timeout:            cfg.Timeout,
		}, logger)
	case config.TransportSMTP:
		sender, err = newSMTP(smtp.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: domain.NewSecret(cfg.SMTPPassword),
			Sender:   from,
			Timeout:  cfg.Timeout,
		}, logger)
	case config.TransportSES:
		sender, err = newSES(ctx, ses.Config{
			Region:          cfg.SESRegion,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: domain.NewSecret(cfg.SESSecretAccessKey),
			Endpoint:        cfg.SESEndpoint,
			Sender:          from,
			Timeout:         cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown email transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, err
	}
	return sender, nil
}

func newPostmark(cfg postmark.Config, logger *slog.Logger) (notifications.Sender, error) {
	s, err := postmark.NewSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newSMTP(cfg smtp.Config, logger *slog.Logger) (notifications.Sender, error) {
	s, err := smtp.NewSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newSES(ctx context.Context, cfg ses.Config, logger *slog.Logger) (notifications.Sender, error) {
	s, err := ses.NewSender(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}
