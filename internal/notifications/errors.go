package notifications

import (
	"errors"
	"fmt"
)

// ErrNoRecipient is returned when a message has no recipient address.
var ErrNoRecipient = errors.New("message has no recipient")

// StatusError is returned by HTTP based transports when the provider
// answers with a non-2xx status.
type StatusError struct {
	Transport string
	Code      int
	Body      string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Transport, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Transport, e.Code, e.Body)
}
