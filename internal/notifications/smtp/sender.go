// Package smtp sends email over SMTP with STARTTLS when the server offers it.
package smtp

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/notifications"
)

const (
	transportName  = "smtp"
	defaultPort    = 587
	defaultTimeout = 10 * time.Second
)

// Config holds SMTP sender configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password domain.Secret
	Sender   domain.SubscriberEmail
	Timeout  time.Duration
}

// Sender implements notifications.Sender over SMTP.
type Sender struct {
	config Config
	auth   smtp.Auth
	logger *slog.Logger
	now    func() time.Time
}

// NewSender creates a new SMTP sender.
func NewSender(config Config, logger *slog.Logger) (*Sender, error) {
	if config.Host == "" {
		return nil, errors.New("smtp sender: host is required")
	}
	if config.Sender.String() == "" {
		return nil, errors.New("smtp sender: sender address is required")
	}
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	var auth smtp.Auth
	if config.User != "" && !config.Password.IsEmpty() {
		auth = smtp.PlainAuth("", config.User, config.Password.Expose(), config.Host)
	}

	logger.Info("smtp sender configured",
		"smtp_host", config.Host,
		"smtp_port", config.Port,
		"from_address", config.Sender.String(),
		"auth", auth != nil,
	)

	return &Sender{
		config: config,
		auth:   auth,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Transport returns the transport name.
func (s *Sender) Transport() string {
	return transportName
}

// Send delivers msg as a multipart/alternative email.
func (s *Sender) Send(ctx context.Context, msg notifications.Message) error {
	if msg.To.String() == "" {
		return notifications.ErrNoRecipient
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	data, err := s.buildMessage(msg)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	tlsConfig := &tls.Config{
		ServerName: s.config.Host,
		MinVersion: tls.VersionTLS12,
	}

	if err := s.sendWithSTARTTLS(ctx, addr, tlsConfig, msg.To.String(), data); err != nil {
		return err
	}

	s.logger.Debug("email sent", "transport", transportName, "kind", msg.Kind)
	return nil
}

// buildMessage renders headers and a multipart/alternative body with a
// text part followed by an HTML part.
func (s *Sender) buildMessage(msg notifications.Message) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", msg.TextBody},
		{"text/html; charset=utf-8", msg.HTMLBody},
	} {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", part.contentType)
		header.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := mw.CreatePart(header)
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	// Headers in deterministic order
	fmt.Fprintf(&out, "From: %s\r\n", s.config.Sender.String())
	fmt.Fprintf(&out, "To: %s\r\n", msg.To.String())
	fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&out, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&out, "Message-ID: <%s@%s>\r\n", messageID(), s.config.Host)
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	out.WriteString("\r\n")
	out.Write(body.Bytes())

	return out.Bytes(), nil
}

func messageID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// sendWithSTARTTLS upgrades the connection when the server advertises
// STARTTLS and authenticates when credentials are configured.
func (s *Sender) sendWithSTARTTLS(ctx context.Context, addr string, tlsConfig *tls.Config, rcpt string, msg []byte) error {
	dialer := &net.Dialer{Timeout: s.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(s.config.Sender.String()); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(rcpt); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return client.Quit()
}
