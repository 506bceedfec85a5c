package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
	"github.com/welldanyogia/webrana-mailfunnel/internal/metrics"
)

// deliver hands mail to the transport and records the outcome. It does not retry.
func deliver(ctx context.Context, t Transport, mail *email.OutgoingMail, log *slog.Logger) error {
	start := time.Now()
	err := t.Send(ctx, mail)
	metrics.TransportDuration.WithLabelValues(t.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.TransportSend.WithLabelValues(t.Name(), "error").Inc()
		log.Error("transport send failed",
			slog.String("transport", t.Name()),
			slog.String("message_id", mail.MessageID),
			slog.Any("error", err),
		)
		return err
	}

	metrics.TransportSend.WithLabelValues(t.Name(), "ok").Inc()
	log.Debug("mail handed to transport",
		slog.String("transport", t.Name()),
		slog.String("message_id", mail.MessageID),
		slog.String("to", mail.To.Email),
	)
	return nil
}
