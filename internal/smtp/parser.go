package smtp

import (
	"io"
	"net/textproto"

	"github.com/jhillyerd/enmime"
	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
)

// Provider is the envelope provider name of mail received over SMTP
const Provider = "smtp"

// ParseMessage parses a raw RFC 5322 message into an envelope. The recipient
// is left empty; it comes from RCPT TO, not from the headers.
func ParseMessage(r io.Reader) (*email.Envelope, error) {
	msg, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, err
	}

	env := &email.Envelope{
		Provider:  Provider,
		RawFrom:   msg.GetHeader("From"),
		Subject:   msg.GetHeader("Subject"),
		TextBody:  msg.Text,
		HTMLBody:  msg.HTML,
		MessageID: msg.GetHeader("Message-ID"),
		Headers:   textproto.MIMEHeader{},
	}
	env.FromDisplayName, env.FromEmail = email.ParseAddress(env.RawFrom)

	for _, key := range msg.GetHeaderKeys() {
		for _, v := range msg.GetHeaderValues(key) {
			env.Headers.Add(key, v)
		}
	}

	for _, parts := range [][]*enmime.Part{msg.Attachments, msg.Inlines} {
		for _, part := range parts {
			if part.FileName == "" {
				continue
			}
			env.Attachments = append(env.Attachments, email.Attachment{
				Filename:    part.FileName,
				ContentType: part.ContentType,
				Content:     part.Content,
			})
		}
	}

	return env, nil
}

// forRecipient returns a copy of env addressed to rcpt. The MAIL FROM path is
// used when the headers carry no sender.
func forRecipient(env *email.Envelope, mailFrom, rcpt string) *email.Envelope {
	e := *env
	e.ToEmail = rcpt
	e.ToDisplayName = ""
	if e.FromEmail == "" {
		e.FromEmail = mailFrom
	}
	return &e
}
