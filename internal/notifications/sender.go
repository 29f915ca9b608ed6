// Package notifications delivers transactional email: confirmation links to
// new subscribers and newsletter issues to confirmed ones. Transports live
// in subpackages (postmark, smtp, ses).
package notifications

import (
	"context"

	"github.com/mynaner/zero2prod/internal/domain"
)

// Kind classifies a message for metrics and logs.
type Kind string

// Message kinds.
const (
	KindConfirmation Kind = "confirmation"
	KindNewsletter   Kind = "newsletter"
)

// Message is a single email to a single recipient.
type Message struct {
	To       domain.SubscriberEmail
	Subject  string
	HTMLBody string
	TextBody string
	Kind     Kind
}

// Sender delivers a message through one transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Transport names the implementation, e.g. "postmark".
	Transport() string
}
