// Package postmark sends email through the Postmark HTTP API.
package postmark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/notifications"
)

const (
	transportName  = "postmark"
	defaultTimeout = 10 * time.Second
	// TokenHeader carries the server token on every request.
	TokenHeader = "X-Postmark-Server-Token"
	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// Config holds Postmark sender configuration.
type Config struct {
	BaseURL            string
	Sender             domain.SubscriberEmail
	AuthorizationToken domain.Secret
	Timeout            time.Duration
}

// Sender implements notifications.Sender on top of the Postmark
// /email endpoint.
type Sender struct {
	config     Config
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSender creates a new Postmark sender.
func NewSender(config Config, logger *slog.Logger) (*Sender, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("postmark: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("postmark: base url %q must be absolute", config.BaseURL)
	}
	if config.AuthorizationToken.IsEmpty() {
		return nil, errors.New("postmark: authorization token is required")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config:   config,
		endpoint: base.JoinPath("email").String(),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}, nil
}

// Transport returns the transport name.
func (s *Sender) Transport() string {
	return transportName
}

// sendEmailRequest mirrors the Postmark API field names.
type sendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// Send posts msg to {base_url}/email. Any non-2xx response is an error.
func (s *Sender) Send(ctx context.Context, msg notifications.Message) error {
	if msg.To.String() == "" {
		return notifications.ErrNoRecipient
	}

	body, err := json.Marshal(sendEmailRequest{
		From:     s.config.Sender.String(),
		To:       msg.To.String(),
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(TokenHeader, s.config.AuthorizationToken.Expose())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &notifications.StatusError{
			Transport: transportName,
			Code:      resp.StatusCode,
			Body:      string(errBody),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	s.logger.Debug("email sent", "transport", transportName, "kind", msg.Kind)
	return nil
}
