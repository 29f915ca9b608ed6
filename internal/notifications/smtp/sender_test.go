package smtp

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/notifications"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustEmail(t *testing.T, s string) domain.SubscriberEmail {
	t.Helper()
	e, err := domain.ParseSubscriberEmail(s)
	require.NoError(t, err)
	return e
}

func TestNewSender_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "without host",
			config:  Config{Sender: mustEmail(t, "test@example.com")},
			wantErr: "host is required",
		},
		{
			name:    "without sender",
			config:  Config{Host: "smtp.example.com"},
			wantErr: "sender address is required",
		},
		{
			name:   "valid config",
			config: Config{Host: "smtp.example.com", Sender: mustEmail(t, "test@example.com")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(tt.config, discardLogger())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, sender)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, defaultPort, sender.config.Port)
			assert.Equal(t, defaultTimeout, sender.config.Timeout)
			assert.Equal(t, "smtp", sender.Transport())
		})
	}
}

func TestNewSender_AuthSetup(t *testing.T) {
	base := Config{Host: "smtp.example.com", Sender: mustEmail(t, "test@example.com")}

	withCreds := base
	withCreds.User = "user"
	withCreds.Password = domain.NewSecret("pass")
	sender, err := NewSender(withCreds, discardLogger())
	require.NoError(t, err)
	assert.NotNil(t, sender.auth)

	sender, err = NewSender(base, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, sender.auth)
}

func TestSender_BuildMessage(t *testing.T) {
	sender, err := NewSender(Config{
		Host:   "smtp.example.com",
		Sender: mustEmail(t, "newsletter@example.com"),
	}, discardLogger())
	require.NoError(t, err)
	sender.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	raw, err := sender.buildMessage(notifications.Message{
		To:       mustEmail(t, "994386502@qq.com"),
		Subject:  "Привет, issue #1",
		HTMLBody: "<p>Hello, world</p>",
		TextBody: "Hello, world",
	})
	require.NoError(t, err)

	m, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "newsletter@example.com", m.Header.Get("From"))
	assert.Equal(t, "994386502@qq.com", m.Header.Get("To"))
	subject, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Привет, issue #1", subject)
	assert.NotEmpty(t, m.Header.Get("Message-ID"))

	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(m.Body, params["boundary"])
	var types, bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p) // quoted-printable is decoded by NextPart
		require.NoError(t, err)
		types = append(types, strings.Split(p.Header.Get("Content-Type"), ";")[0])
		bodies = append(bodies, string(b))
	}

	assert.Equal(t, []string{"text/plain", "text/html"}, types)
	assert.Equal(t, []string{"Hello, world", "<p>Hello, world</p>"}, bodies)
}

func TestSender_Send_NoRecipient(t *testing.T) {
	sender, err := NewSender(Config{Host: "127.0.0.1", Sender: mustEmail(t, "a@example.com")}, discardLogger())
	require.NoError(t, err)

	err = sender.Send(context.Background(), notifications.Message{})
	assert.ErrorIs(t, err, notifications.ErrNoRecipient)
}

func TestSender_Send_DialFailure(t *testing.T) {
	sender, err := NewSender(Config{
		Host:    "127.0.0.1",
		Port:    1, // nothing listens here
		Sender:  mustEmail(t, "a@example.com"),
		Timeout: time.Second,
	}, discardLogger())
	require.NoError(t, err)

	err = sender.Send(context.Background(), notifications.Message{To: mustEmail(t, "b@example.com")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial smtp")
}
