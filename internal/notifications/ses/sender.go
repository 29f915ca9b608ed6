// Package ses sends email through Amazon SES (API v2).
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/notifications"
)

const (
	transportName  = "ses"
	charset        = "UTF-8"
	defaultTimeout = 10 * time.Second
)

// API is the subset of the SES v2 client used by Sender.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Config holds SES sender configuration.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey domain.Secret
	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string
	Sender   domain.SubscriberEmail
	// Timeout bounds a single SendEmail call.
	Timeout time.Duration
}

// Sender implements notifications.Sender on top of SES SendEmail.
type Sender struct {
	client  API
	from    domain.SubscriberEmail
	timeout time.Duration
	logger  *slog.Logger
}

// NewSender builds an SES client from config. Static credentials are used
// when both key parts are set; otherwise the default AWS credential chain
// applies.
func NewSender(ctx context.Context, config Config, logger *slog.Logger) (*Sender, error) {
	if config.Region == "" {
		return nil, errors.New("ses sender: region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" && !config.SecretAccessKey.IsEmpty() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey.Expose(), ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses sender: load aws config: %w", err)
	}

	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})

	logger.Info("ses sender configured",
		"region", config.Region,
		"endpoint", config.Endpoint,
		"timeout", config.Timeout,
		"from_address", config.Sender.String(),
	)

	return NewSenderWithClient(client, config, logger), nil
}

// NewSenderWithClient creates a sender around an existing client. Only
// Sender and Timeout are read from config.
func NewSenderWithClient(client API, config Config, logger *slog.Logger) *Sender {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &Sender{client: client, from: config.Sender, timeout: config.Timeout, logger: logger}
}

// Transport returns the transport name.
func (s *Sender) Transport() string {
	return transportName
}

// Send delivers msg with a simple (non-raw) SES message.
func (s *Sender) Send(ctx context.Context, msg notifications.Message) error {
	if msg.To.String() == "" {
		return notifications.ErrNoRecipient
	}

	body := &types.Body{}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String(charset)}
	}
	if msg.TextBody != "" {
		body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String(charset)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from.String()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To.String()}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body:    body,
			},
		},
	}
	if msg.Kind != "" {
		input.EmailTags = []types.MessageTag{
			{Name: aws.String("kind"), Value: aws.String(string(msg.Kind))},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}

	s.logger.Debug("email sent",
		"transport", transportName,
		"kind", msg.Kind,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}
