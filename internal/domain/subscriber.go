package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// Contact validation errors.
var (
	ErrInvalidEmail = errors.New("invalid subscriber email")
	ErrInvalidName  = errors.New("invalid subscriber name")
)

// MaxSubscriberNameLength is measured in grapheme clusters.
const MaxSubscriberNameLength = 256

const forbiddenNameChars = `/()"<>\{}`

var emailValidator = validator.New()

// SubscriptionStatus represents the lifecycle state of a subscriber.
type SubscriptionStatus string

// Subscription statuses.
const (
	StatusPendingConfirmation SubscriptionStatus = "pending_confirmation"
	StatusConfirmed           SubscriptionStatus = "confirmed"
)

// SubscriberEmail is an email address that passed validation.
// The zero value is not a valid address.
type SubscriberEmail struct {
	value string
}

// ParseSubscriberEmail validates raw and returns it as a SubscriberEmail.
func ParseSubscriberEmail(raw string) (SubscriberEmail, error) {
	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return SubscriberEmail{}, fmt.Errorf("%w: %q contains whitespace", ErrInvalidEmail, raw)
	}

	at := strings.LastIndex(raw, "@")
	if at <= 0 || at == len(raw)-1 {
		return SubscriberEmail{}, fmt.Errorf("%w: %q is not a valid subscriber email", ErrInvalidEmail, raw)
	}

	if err := emailValidator.Var(raw, "required,email"); err != nil {
		return SubscriberEmail{}, fmt.Errorf("%w: %q is not a valid subscriber email", ErrInvalidEmail, raw)
	}

	return SubscriberEmail{value: raw}, nil
}

// String returns the address.
func (e SubscriberEmail) String() string {
	return e.value
}

// SubscriberName is a display name that passed validation.
type SubscriberName struct {
	value string
}

// ParseSubscriberName validates raw and returns it as a SubscriberName.
// The name is normalized to NFC before its length is counted, so composed
// and decomposed spellings of the same name are treated alike.
func ParseSubscriberName(raw string) (SubscriberName, error) {
	name := norm.NFC.String(raw)

	if strings.TrimSpace(name) == "" {
		return SubscriberName{}, fmt.Errorf("%w: name is empty", ErrInvalidName)
	}

	if uniseg.GraphemeClusterCount(name) > MaxSubscriberNameLength {
		return SubscriberName{}, fmt.Errorf("%w: name is longer than %d characters", ErrInvalidName, MaxSubscriberNameLength)
	}

	if i := strings.IndexAny(name, forbiddenNameChars); i >= 0 {
		return SubscriberName{}, fmt.Errorf("%w: name contains forbidden character %q", ErrInvalidName, name[i])
	}

	return SubscriberName{value: name}, nil
}

// String returns the name.
func (n SubscriberName) String() string {
	return n.value
}

// NewSubscriber is a validated subscription request that has not been persisted yet.
type NewSubscriber struct {
	Email SubscriberEmail
	Name  SubscriberName
}

// ParseNewSubscriber validates raw form input.
func ParseNewSubscriber(name, email string) (NewSubscriber, error) {
	parsedEmail, err := ParseSubscriberEmail(email)
	if err != nil {
		return NewSubscriber{}, err
	}

	parsedName, err := ParseSubscriberName(name)
	if err != nil {
		return NewSubscriber{}, err
	}

	return NewSubscriber{Email: parsedEmail, Name: parsedName}, nil
}

// Subscriber represents a persisted subscription.
type Subscriber struct {
	ID           string             `json:"id"`
	Email        string             `json:"email"`
	Name         string             `json:"name"`
	SubscribedAt time.Time          `json:"subscribed_at"`
	Status       SubscriptionStatus `json:"status"`
}

// ConfirmedSubscriber is a confirmed subscriber read back from storage.
// Err is set when the stored address no longer passes validation; Email is
// then the zero value and Raw holds what was stored.
type ConfirmedSubscriber struct {
	Raw   string
	Email SubscriberEmail
	Err   error
}
