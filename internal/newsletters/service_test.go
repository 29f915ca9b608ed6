package newsletters

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/identity"
	"github.com/mynaner/zero2prod/internal/notifications"
)

// mockAuthenticator accepts a single username/password pair.
type mockAuthenticator struct {
	username string
	password string
	err      error
	calls    int
}

func (m *mockAuthenticator) Authenticate(_ context.Context, creds domain.Credentials) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if creds.Username != m.username || creds.Password.Expose() != m.password {
		return "", identity.ErrAuthFailed
	}
	return "user-1", nil
}

// mockRecipients implements RecipientSource.
type mockRecipients struct {
	list  []domain.ConfirmedSubscriber
	err   error
	calls int
}

func (m *mockRecipients) ListConfirmedEmails(_ context.Context) ([]domain.ConfirmedSubscriber, error) {
	m.calls++
	return m.list, m.err
}

// mockSender records messages and fails for the addresses in failFor.
type mockSender struct {
	mu      sync.Mutex
	sent    []notifications.Message
	failFor map[string]error
}

func (m *mockSender) Send(_ context.Context, msg notifications.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failFor[msg.To.String()]; ok {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockSender) Transport() string { return "mock" }

func confirmed(t *testing.T, emails ...string) []domain.ConfirmedSubscriber {
	t.Helper()
	out := make([]domain.ConfirmedSubscriber, 0, len(emails))
	for _, raw := range emails {
		email, err := domain.ParseSubscriberEmail(raw)
		if err != nil {
			out = append(out, domain.ConfirmedSubscriber{Raw: raw, Err: err})
			continue
		}
		out = append(out, domain.ConfirmedSubscriber{Raw: raw, Email: email})
	}
	return out
}

var testIssue = Issue{
	Title:    "Newsletter title",
	HTMLBody: "<p>Newsletter body as HTML</p>",
	TextBody: "Newsletter body as plain text",
}

type fixture struct {
	svc        *Service
	auth       *mockAuthenticator
	recipients *mockRecipients
	sender     *mockSender
}

func newFixture(t *testing.T, emails ...string) *fixture {
	t.Helper()
	f := &fixture{
		auth:       &mockAuthenticator{username: "publisher", password: "correct horse"},
		recipients: &mockRecipients{list: confirmed(t, emails...)},
		sender:     &mockSender{failFor: map[string]error{}},
	}
	f.svc = NewService(f.auth, f.recipients, f.sender, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func goodCreds() domain.Credentials {
	return domain.Credentials{Username: "publisher", Password: domain.NewSecret("correct horse")}
}

func TestPublish_DeliversToEveryConfirmedSubscriber(t *testing.T) {
	f := newFixture(t, "a@example.com", "b@example.com")

	report, err := f.svc.Publish(context.Background(), goodCreds(), testIssue)

	require.NoError(t, err)
	assert.Equal(t, &Report{Delivered: 2}, report)
	require.Len(t, f.sender.sent, 2)
	for _, msg := range f.sender.sent {
		assert.Equal(t, testIssue.Title, msg.Subject)
		assert.Equal(t, testIssue.HTMLBody, msg.HTMLBody)
		assert.Equal(t, testIssue.TextBody, msg.TextBody)
		assert.Equal(t, notifications.KindNewsletter, msg.Kind)
	}
	assert.Equal(t, "a@example.com", f.sender.sent[0].To.String())
	assert.Equal(t, "b@example.com", f.sender.sent[1].To.String())
}

func TestPublish_NoSubscribers(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.Publish(context.Background(), goodCreds(), testIssue)

	require.NoError(t, err)
	assert.Equal(t, &Report{}, report)
	assert.Empty(t, f.sender.sent)
}

func TestPublish_SkipsInvalidStoredEmails(t *testing.T) {
	f := newFixture(t, "a@example.com", "not-an-email", "c@example.com")

	report, err := f.svc.Publish(context.Background(), goodCreds(), testIssue)

	require.NoError(t, err)
	assert.Equal(t, &Report{Delivered: 2, Skipped: 1}, report)
	assert.Len(t, f.sender.sent, 2)
}

func TestPublish_AuthFailureSendsNothing(t *testing.T) {
	tests := []struct {
		name  string
		creds domain.Credentials
	}{
		{"wrong password", domain.Credentials{Username: "publisher", Password: domain.NewSecret("wrong")}},
		{"unknown user", domain.Credentials{Username: "someone", Password: domain.NewSecret("correct horse")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "a@example.com")

			report, err := f.svc.Publish(context.Background(), tt.creds, testIssue)

			assert.Nil(t, report)
			assert.ErrorIs(t, err, identity.ErrAuthFailed)
			assert.Zero(t, f.recipients.calls)
			assert.Empty(t, f.sender.sent)
		})
	}
}

func TestPublish_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.recipients.err = errors.New("connection refused")

	_, err := f.svc.Publish(context.Background(), goodCreds(), testIssue)

	assert.ErrorIs(t, err, ErrStorage)
	assert.Empty(t, f.sender.sent)
}

func TestPublish_FailFastOnSendError(t *testing.T) {
	f := newFixture(t, "a@example.com", "b@example.com", "c@example.com")
	sendErr := errors.New("unexpected status 500")
	f.sender.failFor["b@example.com"] = sendErr

	report, err := f.svc.Publish(context.Background(), goodCreds(), testIssue)

	assert.Nil(t, report)
	require.ErrorIs(t, err, ErrDelivery)
	assert.ErrorIs(t, err, sendErr)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, "b@example.com", deliveryErr.Recipient)
	assert.Equal(t, 1, deliveryErr.Delivered)
	assert.Contains(t, err.Error(), "b@example.com")

	require.Len(t, f.sender.sent, 1, "c@example.com must not be attempted")
	assert.Equal(t, "a@example.com", f.sender.sent[0].To.String())
}
