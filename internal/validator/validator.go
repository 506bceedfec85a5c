// Package validator checks the mailboxes and domains the relay is configured
// with or asked to mask, and sanitizes text taken from inbound webhooks.
package validator

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation errors
var (
	ErrInvalidEmail  = errors.New("invalid email format")
	ErrInvalidDomain = errors.New("invalid domain format")
	ErrInputTooLong  = errors.New("input exceeds maximum length")
	ErrEmptyInput    = errors.New("input cannot be empty")
	ErrRelayLoop     = errors.New("mailbox is under the relay domain")
)

// RFC 5321 and RFC 1035 size limits
const (
	MaxMailboxLength   = 254
	MaxLocalPartLength = 64
	MaxDomainLength    = 253
)

// lowercase LDH labels of at most 63 octets
var domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

// ValidateEmail accepts a bare addr-spec within the RFC 5321 mailbox limits.
// Display-name forms and quoted local parts are refused.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ErrEmptyInput
	}
	if len(email) > MaxMailboxLength {
		return ErrInputTooLong
	}

	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email || parsed.Name != "" {
		return ErrInvalidEmail
	}

	at := strings.LastIndexByte(email, '@')
	if at > MaxLocalPartLength {
		return ErrInputTooLong
	}
	if err := ValidateDomain(email[at+1:]); err != nil {
		if errors.Is(err, ErrInputTooLong) {
			return err
		}
		return ErrInvalidEmail
	}
	return nil
}

// ValidateDomain validates a DNS host name
func ValidateDomain(domain string) error {
	domain = strings.TrimSpace(strings.ToLower(domain))
	if domain == "" {
		return ErrEmptyInput
	}
	if len(domain) > MaxDomainLength {
		return ErrInputTooLong
	}
	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}
	return nil
}

// ValidateRelayDomain validates the domain relay addresses are minted under.
// Token labels are prepended to it, so a bare top-level label is refused.
func ValidateRelayDomain(domain string) error {
	if err := ValidateDomain(domain); err != nil {
		return err
	}
	if !strings.Contains(strings.TrimSpace(domain), ".") {
		return ErrInvalidDomain
	}
	return nil
}

// ValidateExternalMailbox validates a mailbox the relay delivers to. Mail for
// the relay domain or any of its subdomains comes back into the relay, so
// such mailboxes are refused with ErrRelayLoop.
func ValidateExternalMailbox(email, relayDomain string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	host := strings.ToLower(strings.TrimSpace(email))
	host = host[strings.LastIndexByte(host, '@')+1:]
	relayDomain = strings.ToLower(strings.TrimSpace(relayDomain))
	if relayDomain != "" && (host == relayDomain || strings.HasSuffix(host, "."+relayDomain)) {
		return ErrRelayLoop
	}
	return nil
}

// Pagination constants
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ValidatePagination clamps limit to (0, MaxLimit] and offset to >= 0
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// SanitizeFilename makes an attachment filename safe to store and to put
// back into a Content-Disposition header.
func SanitizeFilename(filename string) string {
	filename = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(filename)
	filename = truncate(strings.TrimSpace(stripControl(filename)), 255)
	if filename == "" {
		return "unnamed"
	}
	return filename
}

// SanitizeString drops control characters, CR and LF included, so the value
// cannot split a header line. A positive maxLength truncates to that many runes.
func SanitizeString(input string, maxLength int) string {
	return truncate(strings.TrimSpace(stripControl(input)), maxLength)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
