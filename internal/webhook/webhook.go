// Package webhook converts provider inbound-mail payloads into canonical
// envelopes. Nothing outside this package sees provider field names.
package webhook

import (
	"errors"
	"net/textproto"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
	"github.com/welldanyogia/webrana-mailfunnel/internal/relay"
	"github.com/welldanyogia/webrana-mailfunnel/internal/validator"
)

// maxSubjectLength is the RFC 5322 line limit
const maxSubjectLength = 998

// Provider names
const (
	ProviderPostmark = "postmark"
	ProviderSendgrid = "sendgrid"
)

// ErrInvalidPayload is returned for payloads that cannot produce a usable envelope
var ErrInvalidPayload = errors.New("invalid webhook payload")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// finish fills the derived envelope fields and checks the required ones
func finish(env *email.Envelope) (*email.Envelope, error) {
	env.FromEmail = strings.TrimSpace(env.FromEmail)
	env.ToEmail = strings.TrimSpace(env.ToEmail)
	if env.FromEmail == "" {
		return nil, errors.Join(ErrInvalidPayload, errors.New("missing sender"))
	}
	if env.ToEmail == "" {
		return nil, errors.Join(ErrInvalidPayload, errors.New("missing recipient"))
	}
	env.Subject = validator.SanitizeString(env.Subject, maxSubjectLength)
	for i := range env.Attachments {
		env.Attachments[i].Filename = validator.SanitizeFilename(env.Attachments[i].Filename)
	}
	if env.Headers == nil {
		env.Headers = textproto.MIMEHeader{}
	}
	if env.SpamScore == "" {
		env.SpamScore, _ = relay.ExtractSpamScore(env.Headers)
	}
	if env.MessageID == "" {
		env.MessageID = env.Headers.Get("Message-ID")
	}
	return env, nil
}

// firstAddress returns the first mailbox of a possibly comma-separated address list
func firstAddress(list string) (name, addr string) {
	list = strings.TrimSpace(list)
	if list == "" {
		return "", ""
	}
	if i := strings.Index(list, ">,"); i >= 0 {
		list = list[:i+1]
	} else if !strings.Contains(list, "<") {
		list, _, _ = strings.Cut(list, ",")
	}
	return email.ParseAddress(list)
}
