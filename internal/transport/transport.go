// Package transport delivers outgoing mail built by the relay pipelines.
package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
)

// Transport is a mail delivery backend
type Transport interface {
	// Send delivers one message. Implementations may retry internally.
	Send(ctx context.Context, mail *email.OutgoingMail) error

	// Name returns the transport name used in logs and metrics
	Name() string
}

// Config selects and configures a transport
type Config struct {
	// Kind is one of "log", "smtp", "ses", "amqp"
	Kind string

	SMTP SMTPConfig
	SES  SESConfig
	AMQP AMQPConfig
}

// New creates the transport selected by cfg.Kind
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Transport, error) {
	switch cfg.Kind {
	case "", "log":
		return NewLog(logger), nil
	case "smtp":
		return NewSMTP(cfg.SMTP), nil
	case "ses":
		return NewSES(ctx, cfg.SES)
	case "amqp":
		return DialAMQP(cfg.AMQP)
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Kind)
	}
}
