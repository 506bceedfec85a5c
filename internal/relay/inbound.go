package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
	"github.com/welldanyogia/webrana-mailfunnel/internal/metrics"
	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
)

// InboundPipeline validates mail sent to masked addresses and forwards what
// passes to the owner mailbox.
type InboundPipeline struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
}

// NewInboundPipeline creates an inbound pipeline. A zero SpamThreshold uses
// DefaultSpamThreshold and is logged at startup.
func NewInboundPipeline(cfg Config, deps Deps) *InboundPipeline {
	log := deps.logger().With(slog.String("pipeline", "inbound"))
	if cfg.SpamThreshold == 0 {
		cfg.SpamThreshold = DefaultSpamThreshold
		log.Info("spam threshold not set, using default", slog.Float64("spam_threshold", cfg.SpamThreshold))
	}
	return &InboundPipeline{cfg: cfg, deps: deps, log: log}
}

// SpamThreshold returns the threshold in effect
func (p *InboundPipeline) SpamThreshold() float64 {
	return p.cfg.SpamThreshold
}

// Process runs one envelope through the blocklist and spam checks, records
// the audit entry and, when accepted, forwards the message. The audit entry
// is written before the forward is attempted.
func (p *InboundPipeline) Process(ctx context.Context, env *email.Envelope) (*Result, error) {
	if err := validEnvelope(env); err != nil {
		return nil, err
	}
	p.log.Info("received message for provider "+env.Provider, env.LogAttrs()...)

	address, err := p.deps.Registry.Resolve(ctx, env.ToEmail)
	if err != nil {
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}

	record := &models.Message{
		Subject:           env.Subject,
		From:              env.From(),
		AddressID:         &address.ID,
		Provider:          env.Provider,
		ProviderMessageID: env.MessageID,
	}

	score := env.SpamScore
	if score == "" {
		score, _ = ExtractSpamScore(env.Headers)
	}
	if score != "" {
		record.SpamScore = &score
	}

	if address.IsBlocked {
		record.Reject(models.ReasonAddressBlocked)
	} else if p.isSpam(score) {
		record.Reject(models.ReasonSpamScore)
	}

	if err := p.deps.Audit.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("record message: %w", err)
	}
	if p.deps.Notifier != nil {
		p.deps.Notifier.NotifyAudit(record)
	}

	if record.IsRejected {
		metrics.Inbound.WithLabelValues(env.Provider, string(Rejected), string(*record.Reason)).Inc()
		p.log.Info("message rejected",
			slog.Uint64("audit_id", uint64(record.ID)),
			slog.String("to", address.Email),
			slog.String("reason", string(*record.Reason)),
		)
		return &Result{Disposition: Rejected, Reason: *record.Reason, AuditID: record.ID, Record: record}, nil
	}

	mail := p.buildForward(env, address.Email)
	if err := deliver(ctx, p.deps.Transport, mail, p.log); err != nil {
		return nil, fmt.Errorf("forward message: %w", err)
	}

	metrics.Inbound.WithLabelValues(env.Provider, string(Forwarded), "").Inc()
	p.log.Info("message forwarded",
		slog.Uint64("audit_id", uint64(record.ID)),
		slog.String("to", address.Email),
		slog.String("message_id", mail.MessageID),
	)
	return &Result{Disposition: Forwarded, AuditID: record.ID, MessageID: mail.MessageID, Record: record, Mail: mail}, nil
}

func (p *InboundPipeline) isSpam(score string) bool {
	spam, err := ExceedsThreshold(score, p.cfg.SpamThreshold)
	if err != nil {
		p.log.Warn("ignoring spam score", slog.Any("error", err))
	}
	return spam
}

// buildForward builds the message for the owner mailbox. Replies to it go to
// a relay address encoding the original recipient and sender.
func (p *InboundPipeline) buildForward(env *email.Envelope, recipient string) *email.OutgoingMail {
	mail := &email.OutgoingMail{
		From:        email.Address{Name: ViaName(env.FromDisplayName, env.FromEmail, recipient), Email: p.cfg.FromAddress},
		To:          email.Address{Name: p.cfg.RecipientName, Email: p.cfg.RecipientEmail},
		Subject:     env.Subject,
		TextBody:    env.TextBody,
		HTMLBody:    env.HTMLBody,
		MessageID:   newMessageID(p.deps.Codec.Domain()),
		Attachments: env.Attachments,
	}

	replyTo, err := p.deps.Codec.Encode(recipient, env.FromEmail)
	if err != nil {
		p.log.Warn("forwarding without reply address",
			slog.String("to", recipient),
			slog.String("from", env.FromEmail),
			slog.Any("error", err),
		)
		return mail
	}
	mail.ReplyTo = email.Address{Email: replyTo}
	return mail
}

// ViaName is the display name forwarded mail appears to come from:
// "Name 'sender@x' via recipient@y", or "sender@x via recipient@y" when the
// sender gave no display name.
func ViaName(senderName, senderEmail, recipient string) string {
	if senderName == "" {
		return senderEmail + " via " + recipient
	}
	return fmt.Sprintf("%s '%s' via %s", senderName, senderEmail, recipient)
}
