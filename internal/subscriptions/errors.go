package subscriptions

import "errors"

// Service errors.
var (
	ErrInvalidSubscriber = errors.New("invalid subscriber")
	ErrSubscriberExists  = errors.New("email is already subscribed")
	ErrStorage           = errors.New("subscription storage failure")
	ErrNotification      = errors.New("failed to send confirmation email")
	ErrTokenNotFound     = errors.New("unknown subscription token")
)
