package email

import (
	"net/mail"
	"regexp"
	"strings"
)

// fromPattern matches "Name" <email@example.com>, Name <email@example.com> and bare addresses
var fromPattern = regexp.MustCompile(`^(?:"?([^"<]*)"?\s*)?<?([^<>\s]+@[^<>\s]+)>?$`)

// ParseAddress extracts display name and email from an address header value.
// RFC 5322 parsing is tried first; malformed values fall back to a lenient pattern
// and finally to treating the whole value as the email.
func ParseAddress(raw string) (name, address string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	if parsed, err := mail.ParseAddress(raw); err == nil {
		return strings.TrimSpace(parsed.Name), strings.TrimSpace(parsed.Address)
	}

	matches := fromPattern.FindStringSubmatch(raw)
	if len(matches) >= 3 {
		name = strings.Trim(strings.TrimSpace(matches[1]), `"`)
		return name, strings.TrimSpace(matches[2])
	}

	return "", raw
}

// FormatAddress renders name and email the way the audit log stores senders:
// "Name <email>" when a name is present, the bare email otherwise.
func FormatAddress(name, address string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return address
	}
	return name + " <" + address + ">"
}
