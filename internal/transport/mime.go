package transport

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
)

const defaultSubject = "(no subject)"

// BuildMIME composes the RFC 5322 message for mail
func BuildMIME(mail *email.OutgoingMail) ([]byte, error) {
	subject := mail.Subject
	if subject == "" {
		subject = defaultSubject
	}

	b := enmime.Builder().
		From(mail.From.Name, mail.From.Email).
		To(mail.To.Name, mail.To.Email).
		Subject(subject).
		Date(time.Now())

	if !mail.ReplyTo.IsZero() {
		b = b.ReplyTo(mail.ReplyTo.Name, mail.ReplyTo.Email)
	}
	if mail.MessageID != "" {
		b = b.Header("Message-ID", mail.MessageID)
	}
	if mail.TextBody != "" || mail.HTMLBody == "" {
		b = b.Text([]byte(mail.TextBody))
	}
	if mail.HTMLBody != "" {
		b = b.HTML([]byte(mail.HTMLBody))
	}
	for _, att := range mail.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		b = b.AddAttachment(att.Content, contentType, att.Filename)
	}

	root, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}
