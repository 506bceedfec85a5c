package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
)

const (
	sesMaxRetries     = 3
	sesBaseRetryDelay = 1 * time.Second
)

// SESConfig configures delivery through AWS SES v2
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SendEmailAPI is the SES v2 SendEmail operation
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport sends mail with the SES v2 API
type SESTransport struct {
	client    SendEmailAPI
	baseDelay time.Duration
}

// NewSES loads AWS configuration and creates an SES transport. Static
// credentials are used when both keys are set, the default chain otherwise.
func NewSES(ctx context.Context, cfg SESConfig) (*SESTransport, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESWithClient(sesv2.NewFromConfig(awsCfg)), nil
}

// NewSESWithClient creates an SES transport around client
func NewSESWithClient(client SendEmailAPI) *SESTransport {
	return &SESTransport{client: client, baseDelay: sesBaseRetryDelay}
}

// Send delivers mail, as raw MIME when it has attachments. Failed calls are
// retried with exponential backoff.
func (t *SESTransport) Send(ctx context.Context, mail *email.OutgoingMail) error {
	input, err := buildSESInput(mail)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= sesMaxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying SES API request", slog.Int("attempt", attempt))
			if err := sleepWithContext(ctx, t.baseDelay<<(attempt-1)); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		_, err := t.client.SendEmail(ctx, input)
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("SES API error", slog.Int("attempt", attempt), slog.Any("error", err))
	}

	return fmt.Errorf("SES API request failed after %d retries: %w", sesMaxRetries, lastErr)
}

// Name returns the transport name
func (t *SESTransport) Name() string {
	return "ses"
}

func buildSESInput(mail *email.OutgoingMail) (*sesv2.SendEmailInput, error) {
	if len(mail.Attachments) > 0 {
		raw, err := BuildMIME(mail)
		if err != nil {
			return nil, fmt.Errorf("failed to build raw message: %w", err)
		}
		return &sesv2.SendEmailInput{
			Content: &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
		}, nil
	}

	subject := mail.Subject
	if subject == "" {
		subject = defaultSubject
	}

	body := &types.Body{}
	if mail.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(mail.HTMLBody), Charset: aws.String("UTF-8")}
	}
	if mail.TextBody != "" || mail.HTMLBody == "" {
		body.Text = &types.Content{Data: aws.String(mail.TextBody), Charset: aws.String("UTF-8")}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(mail.From.Header()),
		Destination:      &types.Destination{ToAddresses: []string{mail.To.Header()}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
	if !mail.ReplyTo.IsZero() {
		input.ReplyToAddresses = []string{mail.ReplyTo.Header()}
	}
	return input, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
