package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
	"github.com/welldanyogia/webrana-mailfunnel/internal/metrics"
	"github.com/welldanyogia/webrana-mailfunnel/internal/token"
)

// OutboundPipeline relays replies the owner sends to relay addresses back to
// the original senders.
type OutboundPipeline struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
}

// NewOutboundPipeline creates an outbound pipeline
func NewOutboundPipeline(cfg Config, deps Deps) *OutboundPipeline {
	return &OutboundPipeline{cfg: cfg, deps: deps, log: deps.logger().With(slog.String("pipeline", "outbound"))}
}

// Process decodes the relay address, checks the reply comes from the owner
// mailbox and relays it. Undecodable addresses and foreign or malformed
// senders are dropped without error and without an audit record.
func (p *OutboundPipeline) Process(ctx context.Context, env *email.Envelope) (*Result, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrInvalidEnvelope)
	}
	p.log.Info("received reply for provider "+env.Provider, env.LogAttrs()...)

	recipient, sender, err := p.deps.Codec.Decode(env.ToEmail)
	if err != nil {
		kind := token.KindOf(err)
		if kind == "" {
			return nil, fmt.Errorf("decode relay address: %w", err)
		}
		metrics.TokenDecodeFailures.WithLabelValues(string(kind)).Inc()
		metrics.Outbound.WithLabelValues(env.Provider, string(NotAReply)).Inc()
		if kind == token.KindAuthFailed && p.deps.Security != nil {
			p.deps.Security.ForgedToken(env.Provider, env.FromEmail, env.ToEmail)
		}
		p.log.Debug("not a reply", slog.String("to", env.ToEmail), slog.Any("error", err))
		return &Result{Disposition: NotAReply, DecodeErr: err}, nil
	}

	if !sameMailbox(env.FromEmail, p.cfg.RecipientEmail) {
		metrics.Outbound.WithLabelValues(env.Provider, string(Unauthorized)).Inc()
		if p.deps.Security != nil {
			p.deps.Security.UnauthorizedReply(env.Provider, env.FromEmail, env.ToEmail)
		}
		return &Result{Disposition: Unauthorized}, nil
	}

	mail := &email.OutgoingMail{
		From:        email.Address{Email: recipient},
		To:          email.Address{Email: sender},
		Subject:     env.Subject,
		TextBody:    env.TextBody,
		HTMLBody:    env.HTMLBody,
		MessageID:   newMessageID(p.deps.Codec.Domain()),
		Attachments: env.Attachments,
	}
	if err := deliver(ctx, p.deps.Transport, mail, p.log); err != nil {
		return nil, fmt.Errorf("relay reply: %w", err)
	}

	metrics.Outbound.WithLabelValues(env.Provider, string(Relayed)).Inc()
	p.log.Info("reply relayed",
		slog.String("from", recipient),
		slog.String("to", sender),
		slog.String("message_id", mail.MessageID),
	)
	return &Result{Disposition: Relayed, MessageID: mail.MessageID, Mail: mail}, nil
}
