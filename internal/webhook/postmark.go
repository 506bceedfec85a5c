package webhook

import (
	"encoding/base64"
	"fmt"
	"net/textproto"

	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
)

// PostmarkAddress is one entry of FromFull/ToFull
type PostmarkAddress struct {
	Email       string `json:"Email"`
	Name        string `json:"Name"`
	MailboxHash string `json:"MailboxHash"`
}

// PostmarkHeader is one raw header of the message
type PostmarkHeader struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// PostmarkAttachment carries base64 content
type PostmarkAttachment struct {
	Name          string `json:"Name"`
	Content       string `json:"Content"`
	ContentType   string `json:"ContentType"`
	ContentLength int    `json:"ContentLength"`
}

// PostmarkPayload is the Postmark inbound webhook body
type PostmarkPayload struct {
	From              string               `json:"From"`
	FromName          string               `json:"FromName"`
	FromFull          PostmarkAddress      `json:"FromFull"`
	To                string               `json:"To"`
	ToFull            []PostmarkAddress    `json:"ToFull"`
	OriginalRecipient string               `json:"OriginalRecipient"`
	Subject           string               `json:"Subject"`
	MessageID         string               `json:"MessageID"`
	TextBody          string               `json:"TextBody"`
	HtmlBody          string               `json:"HtmlBody"`
	Headers           []PostmarkHeader     `json:"Headers"`
	Attachments       []PostmarkAttachment `json:"Attachments"`
}

// ParsePostmark decodes a Postmark JSON body into an envelope
func ParsePostmark(body []byte) (*email.Envelope, error) {
	var p PostmarkPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p.Envelope()
}

// Envelope converts the payload
func (p *PostmarkPayload) Envelope() (*email.Envelope, error) {
	env := &email.Envelope{
		Provider:  ProviderPostmark,
		Subject:   p.Subject,
		TextBody:  p.TextBody,
		HTMLBody:  p.HtmlBody,
		MessageID: p.MessageID,
		Headers:   textproto.MIMEHeader{},
	}

	env.FromEmail, env.FromDisplayName = p.FromFull.Email, p.FromFull.Name
	if env.FromEmail == "" {
		name, addr := email.ParseAddress(p.From)
		env.FromEmail = addr
		if env.FromDisplayName == "" {
			env.FromDisplayName = name
		}
	}
	if env.FromDisplayName == "" {
		env.FromDisplayName = p.FromName
	}
	env.RawFrom = email.FormatAddress(env.FromDisplayName, env.FromEmail)

	switch {
	case len(p.ToFull) > 0 && p.ToFull[0].Email != "":
		env.ToEmail, env.ToDisplayName = p.ToFull[0].Email, p.ToFull[0].Name
	case p.To != "":
		env.ToDisplayName, env.ToEmail = firstAddress(p.To)
	default:
		env.ToEmail = p.OriginalRecipient
	}

	for _, h := range p.Headers {
		if h.Name != "" {
			env.Headers.Add(h.Name, h.Value)
		}
	}

	for _, a := range p.Attachments {
		content, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: attachment %q: %v", ErrInvalidPayload, a.Name, err)
		}
		env.Attachments = append(env.Attachments, email.Attachment{
			Filename:    a.Name,
			ContentType: a.ContentType,
			Content:     content,
		})
	}

	return finish(env)
}
