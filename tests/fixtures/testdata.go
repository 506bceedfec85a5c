package fixtures

import (
	"net/textproto"
	"time"

	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
)

// Shared test values
const (
	OwnerEmail   = "owner@example.net"
	OwnerName    = "Mailbox Owner"
	FromAddress  = "funnel@relay.example.com"
	RelayDomain  = "relay.example.com"
	RelaySecret  = "0123456789abcdef0123456789abcdef"
	SenderEmail  = "sender@example.com"
	SenderName   = "Test Sender"
	MaskedEmail  = "receiver@example.com"
	TestProvider = "phpunit"
)

// DomainBuilder creates test Domain instances with fluent API
type DomainBuilder struct {
	domain models.Domain
}

// NewDomainBuilder creates a new DomainBuilder with sensible defaults
func NewDomainBuilder() *DomainBuilder {
	now := time.Now()
	return &DomainBuilder{
		domain: models.Domain{
			ID:        1,
			Name:      "example.com",
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (b *DomainBuilder) WithID(id uint) *DomainBuilder {
	b.domain.ID = id
	return b
}

func (b *DomainBuilder) WithName(name string) *DomainBuilder {
	b.domain.Name = name
	return b
}

func (b *DomainBuilder) WithActive(active bool) *DomainBuilder {
	b.domain.IsActive = active
	return b
}

// Build returns the constructed Domain
func (b *DomainBuilder) Build() *models.Domain {
	d := b.domain
	return &d
}

// AddressBuilder creates test Address instances with fluent API
type AddressBuilder struct {
	address models.Address
}

// NewAddressBuilder creates a new AddressBuilder with sensible defaults
func NewAddressBuilder() *AddressBuilder {
	now := time.Now()
	return &AddressBuilder{
		address: models.Address{
			ID:        1,
			Email:     MaskedEmail,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (b *AddressBuilder) WithID(id uint) *AddressBuilder {
	b.address.ID = id
	return b
}

func (b *AddressBuilder) WithEmail(email string) *AddressBuilder {
	b.address.Email = email
	return b
}

func (b *AddressBuilder) WithBlocked(blocked bool) *AddressBuilder {
	b.address.IsBlocked = blocked
	return b
}

func (b *AddressBuilder) WithDomainID(id uint) *AddressBuilder {
	b.address.DomainID = &id
	return b
}

// Build returns the constructed Address
func (b *AddressBuilder) Build() *models.Address {
	a := b.address
	return &a
}

// MessageBuilder creates test audit records with fluent API
type MessageBuilder struct {
	message models.Message
}

// NewMessageBuilder creates a new MessageBuilder for an accepted message
func NewMessageBuilder() *MessageBuilder {
	addressID := uint(1)
	return &MessageBuilder{
		message: models.Message{
			ID:        1,
			Subject:   "Test Subject",
			From:      SenderName + " <" + SenderEmail + ">",
			AddressID: &addressID,
			Provider:  TestProvider,
			CreatedAt: time.Now(),
		},
	}
}

func (b *MessageBuilder) WithID(id uint) *MessageBuilder {
	b.message.ID = id
	return b
}

func (b *MessageBuilder) WithSubject(subject string) *MessageBuilder {
	b.message.Subject = subject
	return b
}

func (b *MessageBuilder) WithSpamScore(score string) *MessageBuilder {
	b.message.SpamScore = &score
	return b
}

func (b *MessageBuilder) WithReason(reason models.RejectReason) *MessageBuilder {
	b.message.Reject(reason)
	return b
}

// Build returns the constructed Message
func (b *MessageBuilder) Build() *models.Message {
	m := b.message
	return &m
}

// EnvelopeBuilder creates canonical envelopes with fluent API
type EnvelopeBuilder struct {
	env email.Envelope
}

// NewEnvelopeBuilder creates an inbound envelope from SenderName <SenderEmail> to MaskedEmail
func NewEnvelopeBuilder() *EnvelopeBuilder {
	return &EnvelopeBuilder{
		env: email.Envelope{
			Provider:        TestProvider,
			FromDisplayName: SenderName,
			FromEmail:       SenderEmail,
			ToEmail:         MaskedEmail,
			Subject:         "Test Subject",
			TextBody:        "Test text",
			HTMLBody:        "<p>Test HTML</p>",
			Headers:         textproto.MIMEHeader{},
		},
	}
}

func (b *EnvelopeBuilder) WithProvider(provider string) *EnvelopeBuilder {
	b.env.Provider = provider
	return b
}

func (b *EnvelopeBuilder) WithFrom(name, addr string) *EnvelopeBuilder {
	b.env.FromDisplayName = name
	b.env.FromEmail = addr
	return b
}

func (b *EnvelopeBuilder) WithTo(addr string) *EnvelopeBuilder {
	b.env.ToEmail = addr
	return b
}

func (b *EnvelopeBuilder) WithSpamScore(score string) *EnvelopeBuilder {
	b.env.SpamScore = score
	return b
}

func (b *EnvelopeBuilder) WithHeader(name, value string) *EnvelopeBuilder {
	b.env.Headers.Add(name, value)
	return b
}

func (b *EnvelopeBuilder) WithAttachment(a email.Attachment) *EnvelopeBuilder {
	b.env.Attachments = append(b.env.Attachments, a)
	return b
}

// Build returns the constructed Envelope
func (b *EnvelopeBuilder) Build() *email.Envelope {
	env := b.env
	env.Headers = textproto.MIMEHeader{}
	for k, v := range b.env.Headers {
		env.Headers[k] = append([]string(nil), v...)
	}
	return &env
}
