// Package email defines the provider-agnostic mail values passed between the
// webhook boundary, the relay pipelines and the mail transports.
package email

import (
	"net/textproto"
)

// Envelope is the canonical shape of one inbound or outbound webhook event,
// whatever provider delivered it.
type Envelope struct {
	// Provider names the boundary that produced the envelope (postmark, sendgrid, smtp)
	Provider string

	FromDisplayName string
	FromEmail       string
	// RawFrom is the sender exactly as the provider presented it. When empty it
	// is derived from FromDisplayName and FromEmail.
	RawFrom string

	ToEmail       string
	ToDisplayName string

	Subject  string
	TextBody string
	HTMLBody string

	// SpamScore is the normalized numeric string, empty when the provider
	// reported no score.
	SpamScore string
	Headers   textproto.MIMEHeader

	// MessageID is the provider's identifier for the delivery, informational only
	MessageID   string
	Attachments []Attachment
}

// Attachment is a file carried along with a message
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// From returns the raw sender string recorded in the audit log
func (e *Envelope) From() string {
	if e.RawFrom != "" {
		return e.RawFrom
	}
	return FormatAddress(e.FromDisplayName, e.FromEmail)
}

// Header returns the first value of the named header, case-insensitively
func (e *Envelope) Header(name string) string {
	if e.Headers == nil {
		return ""
	}
	return e.Headers.Get(name)
}

// LogAttrs returns the envelope fields worth logging on receipt. Bodies and
// attachment contents are left out.
func (e *Envelope) LogAttrs() []any {
	return []any{
		"provider", e.Provider,
		"from", e.From(),
		"to", e.ToEmail,
		"subject", e.Subject,
		"spam_score", e.SpamScore,
		"message_id", e.MessageID,
		"attachments", len(e.Attachments),
	}
}
