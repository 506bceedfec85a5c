package transport

import (
	"context"
	"log/slog"

	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
)

// LogTransport writes outgoing mail to the log instead of delivering it
type LogTransport struct {
	logger *slog.Logger
}

// NewLog creates a log transport
func NewLog(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

// Send logs the message envelope and sizes
func (t *LogTransport) Send(_ context.Context, mail *email.OutgoingMail) error {
	t.logger.Info("outgoing mail",
		slog.String("transport", "log"),
		slog.String("message_id", mail.MessageID),
		slog.String("from", mail.From.Header()),
		slog.String("to", mail.To.Header()),
		slog.String("reply_to", mail.ReplyTo.Email),
		slog.String("subject", mail.Subject),
		slog.Int("text_bytes", len(mail.TextBody)),
		slog.Int("html_bytes", len(mail.HTMLBody)),
		slog.Int("attachments", len(mail.Attachments)),
	)
	return nil
}

// Name returns the transport name
func (t *LogTransport) Name() string {
	return "log"
}
