package domain

import (
	"log/slog"
	"time"
)

const redacted = "[REDACTED]"

// Secret holds a sensitive string. It prints as [REDACTED] through fmt
// and slog; call Expose to read the value.
type Secret struct {
	value string
}

// NewSecret wraps s.
func NewSecret(s string) Secret {
	return Secret{value: s}
}

// Expose returns the wrapped value.
func (s Secret) Expose() string {
	return s.value
}

// IsEmpty reports whether the secret is empty.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}

func (s Secret) String() string { return redacted }

// GoString keeps %#v from printing the value.
func (s Secret) GoString() string { return redacted }

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

// Credentials is a username/password pair presented by a publisher.
// It lives for a single request and is never persisted.
type Credentials struct {
	Username string
	Password Secret
}

// User is an account allowed to publish newsletter issues.
type User struct {
	ID           string
	Username     string
	PasswordHash Secret
	CreatedAt    time.Time
}
