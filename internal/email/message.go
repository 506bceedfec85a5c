package email

import "net/mail"

// Address is a mailbox with an optional display name
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// String formats the address for a header
func (a Address) String() string {
	return FormatAddress(a.Name, a.Email)
}

// Header formats the address for a mail header, RFC 2047 encoding the name when needed
func (a Address) Header() string {
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

// IsZero reports whether no address is set
func (a Address) IsZero() bool {
	return a.Email == ""
}

// OutgoingMail is the fully-populated message a relay pipeline hands to a
// transport. It is built once per pipeline run and not modified afterwards.
type OutgoingMail struct {
	From        Address      `json:"from"`
	To          Address      `json:"to"`
	ReplyTo     Address      `json:"reply_to,omitempty"`
	Subject     string       `json:"subject"`
	TextBody    string       `json:"text_body,omitempty"`
	HTMLBody    string       `json:"html_body,omitempty"`
	MessageID   string       `json:"message_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Recipients returns the envelope recipients of the mail
func (m *OutgoingMail) Recipients() []string {
	return []string{m.To.Email}
}
