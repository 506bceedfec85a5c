package webhook

import (
	"bufio"
	"bytes"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
)

// SendgridPayload is the Sendgrid Inbound Parse body, posted either as a
// multipart form or as JSON. In raw mode the full message is in Email.
type SendgridPayload struct {
	Headers   string    `form:"headers" json:"headers"`
	To        string    `form:"to" json:"to"`
	From      string    `form:"from" json:"from"`
	Subject   string    `form:"subject" json:"subject"`
	Text      string    `form:"text" json:"text"`
	HTML      string    `form:"html" json:"html"`
	Envelope  string    `form:"envelope" json:"envelope"`
	SpamScore SpamScore `form:"spam_score" json:"spam_score"`
	Email     string    `form:"email" json:"email"`

	// Attachments are read from the multipart files by the HTTP layer
	Attachments []email.Attachment `form:"-" json:"-"`
}

// SpamScore is the spam_score field. JSON payloads carry it as a number or
// as a string; either way the raw numeric text is kept.
type SpamScore string

// UnmarshalJSON accepts a number, a string or null
func (s *SpamScore) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*s = ""
	case data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("spam_score: %w", err)
		}
		*s = SpamScore(str)
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return fmt.Errorf("spam_score: %s is not a number", data)
		}
		*s = SpamScore(data)
	}
	return nil
}

// sendgridEnvelope is the SMTP envelope JSON; to is a string or a list
type sendgridEnvelope struct {
	To   any    `json:"to"`
	From string `json:"from"`
}

func (e *sendgridEnvelope) firstTo() string {
	switch to := e.To.(type) {
	case string:
		return to
	case []any:
		for _, v := range to {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// ToEnvelope converts the payload
func (p *SendgridPayload) ToEnvelope() (*email.Envelope, error) {
	env := &email.Envelope{
		Provider:    ProviderSendgrid,
		Subject:     p.Subject,
		TextBody:    p.Text,
		HTMLBody:    p.HTML,
		Headers:     parseHeaderBlock(p.Headers),
		Attachments: p.Attachments,
	}

	from, to := p.From, p.To
	if p.Email != "" {
		if err := p.fillFromRaw(env, &from, &to); err != nil {
			return nil, err
		}
	}

	env.RawFrom = strings.TrimSpace(from)
	env.FromDisplayName, env.FromEmail = email.ParseAddress(from)
	env.ToDisplayName, env.ToEmail = firstAddress(to)

	if p.Envelope != "" {
		var smtpEnv sendgridEnvelope
		if err := json.Unmarshal([]byte(p.Envelope), &smtpEnv); err != nil {
			return nil, fmt.Errorf("%w: envelope: %v", ErrInvalidPayload, err)
		}
		if rcpt := smtpEnv.firstTo(); rcpt != "" {
			env.ToEmail = rcpt
		}
		if env.FromEmail == "" {
			env.FromEmail = smtpEnv.From
		}
	}

	if score := strings.TrimSpace(string(p.SpamScore)); score != "" {
		env.Headers.Set("X-Spam-Score", score)
		env.SpamScore = score
	}

	return finish(env)
}

// fillFromRaw parses the raw MIME message sent in raw mode
func (p *SendgridPayload) fillFromRaw(env *email.Envelope, from, to *string) error {
	raw, err := enmime.ReadEnvelope(strings.NewReader(p.Email))
	if err != nil {
		return fmt.Errorf("%w: raw message: %v", ErrInvalidPayload, err)
	}

	if *from == "" {
		*from = raw.GetHeader("From")
	}
	if *to == "" {
		*to = raw.GetHeader("To")
	}
	if env.Subject == "" {
		env.Subject = raw.GetHeader("Subject")
	}
	if env.TextBody == "" {
		env.TextBody = raw.Text
	}
	if env.HTMLBody == "" {
		env.HTMLBody = raw.HTML
	}
	for _, key := range raw.GetHeaderKeys() {
		if env.Headers.Get(key) == "" {
			for _, v := range raw.GetHeaderValues(key) {
				env.Headers.Add(key, v)
			}
		}
	}
	for _, parts := range [][]*enmime.Part{raw.Attachments, raw.Inlines} {
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
	return nil
}

// parseHeaderBlock parses a raw header block. Lines that do not parse are
// dropped along with everything after them.
func parseHeaderBlock(block string) textproto.MIMEHeader {
	block = strings.TrimSpace(block)
	if block == "" {
		return textproto.MIMEHeader{}
	}
	r := textproto.NewReader(bufio.NewReader(strings.NewReader(block + "\r\n\r\n")))
	h, _ := r.ReadMIMEHeader()
	if h == nil {
		h = textproto.MIMEHeader{}
	}
	return h
}
