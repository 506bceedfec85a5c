package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
)

// SMTPConfig configures delivery through an upstream SMTP relay
type SMTPConfig struct {
	Addr     string
	Username string
	Password string
	// ImplicitTLS connects with TLS from the start (port 465). Otherwise
	// STARTTLS is used when the server offers it.
	ImplicitTLS bool
}

type sendMailFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// SMTPTransport submits mail to an upstream SMTP server
type SMTPTransport struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
}

// NewSMTP creates an SMTP transport
func NewSMTP(cfg SMTPConfig) *SMTPTransport {
	send := smtp.SendMail
	if cfg.ImplicitTLS {
		send = smtp.SendMailTLS
	}
	return &SMTPTransport{cfg: cfg, sendMail: send}
}

// Send composes the message and submits it
func (t *SMTPTransport) Send(ctx context.Context, mail *email.OutgoingMail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := BuildMIME(mail)
	if err != nil {
		return err
	}

	var auth sasl.Client
	if t.cfg.Username != "" {
		auth = sasl.NewPlainClient("", t.cfg.Username, t.cfg.Password)
	}

	if err := t.sendMail(t.cfg.Addr, auth, mail.From.Email, mail.Recipients(), bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", t.cfg.Addr, err)
	}
	return nil
}

// Name returns the transport name
func (t *SMTPTransport) Name() string {
	return "smtp"
}
