// Package relay implements the inbound and outbound mail pipelines. Both work
// on canonical envelopes and hold no state between calls: the reply route of a
// forwarded message lives entirely in its relay address.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
	"github.com/welldanyogia/webrana-mailfunnel/internal/logger"
	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
)

// ErrInvalidEnvelope is returned for envelopes missing a usable sender or recipient
var ErrInvalidEnvelope = errors.New("invalid envelope")

// AddressRegistry resolves masked addresses, creating them on first sighting
type AddressRegistry interface {
	Resolve(ctx context.Context, email string) (*models.Address, error)
}

// AuditLog appends audit records
type AuditLog interface {
	Create(ctx context.Context, message *models.Message) error
}

// ReplyCodec turns (recipient, sender) pairs into relay addresses and back
type ReplyCodec interface {
	Encode(recipient, sender string) (string, error)
	Decode(addr string) (recipient, sender string, err error)
	Domain() string
}

// Transport delivers a built message
type Transport interface {
	Send(ctx context.Context, mail *email.OutgoingMail) error
	Name() string
}

// AuditNotifier is told about every audit record after it is stored
type AuditNotifier interface {
	NotifyAudit(message *models.Message)
}

// Config is the owner-facing configuration of the pipelines
type Config struct {
	// RecipientEmail is the protected real mailbox
	RecipientEmail string
	RecipientName  string
	// FromAddress is the system address forwarded mail is sent from
	FromAddress string
	// SpamThreshold is the score at and above which inbound mail is
	// rejected. Zero selects DefaultSpamThreshold; config.Load refuses
	// non-positive values, so only a Config built in code ends up here.
	SpamThreshold float64
}

// DefaultSpamThreshold is the score at and above which inbound mail is rejected
const DefaultSpamThreshold = 5.0

// Deps holds the collaborators of a pipeline
type Deps struct {
	Registry  AddressRegistry
	Audit     AuditLog
	Codec     ReplyCodec
	Transport Transport
	Notifier  AuditNotifier
	Security  *logger.SecurityLogger
	Logger    *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Disposition is the outcome of one pipeline run
type Disposition string

const (
	Forwarded    Disposition = "forwarded"
	Rejected     Disposition = "rejected"
	Relayed      Disposition = "relayed"
	NotAReply    Disposition = "not_a_reply"
	Unauthorized Disposition = "unauthorized"
)

// Result describes what a pipeline did with an envelope. Expected business
// outcomes are results, only infrastructure failures are errors.
type Result struct {
	Disposition Disposition         `json:"disposition"`
	Reason      models.RejectReason `json:"reason,omitempty"`
	AuditID     uint                `json:"audit_id,omitempty"`
	MessageID   string              `json:"message_id,omitempty"`

	Record    *models.Message     `json:"-"`
	Mail      *email.OutgoingMail `json:"-"`
	DecodeErr error               `json:"-"`
}

// newMessageID returns a Message-ID in the relay domain
func newMessageID(domain string) string {
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

func sameMailbox(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func validEnvelope(env *email.Envelope) error {
	if env == nil {
		return fmt.Errorf("%w: nil envelope", ErrInvalidEnvelope)
	}
	if !strings.Contains(env.ToEmail, "@") {
		return fmt.Errorf("%w: recipient %q", ErrInvalidEnvelope, env.ToEmail)
	}
	if !strings.Contains(env.FromEmail, "@") {
		return fmt.Errorf("%w: sender %q", ErrInvalidEnvelope, env.FromEmail)
	}
	return nil
}
