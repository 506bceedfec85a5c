// Package token encodes an (original recipient, original sender) pair into a
// relay email address and back.
//
// A relay address has the form reply@<token labels>.<relay domain>. The token
// is the pair sealed with ChaCha20-Poly1305 under a key derived from the
// server secret, base32 encoded and split into DNS labels of at most 63
// octets, so the address stays within RFC 5321 mailbox limits. The relay
// domain needs a wildcard MX record. The nonce is a keyed hash of the
// plaintext, so encoding the same pair twice yields the same address and no
// state is needed to decode it. The relay domain is bound as associated data:
// a token minted for one relay domain does not open under another.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// LocalPart is the local part of every relay address
	LocalPart = "reply"

	// RFC 5321 and RFC 1035 size limits
	MaxAddressLength   = 254
	MaxLocalPartLength = 64
	MaxDomainLength    = 253
	MaxLabelLength     = 63

	// MinSecretLength is the minimum accepted server secret length in bytes
	MinSecretLength = 16

	version   byte = 1
	nonceSize      = chacha20poly1305.NonceSize
	separator      = 0x00
)

var (
	ErrTooLong        = errors.New("token: relay address exceeds maximum length")
	ErrInvalidAddress = errors.New("token: invalid address")
	ErrWeakSecret     = errors.New("token: secret too short")
	ErrInvalidDomain  = errors.New("token: invalid relay domain")
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Codec seals and opens relay addresses for one relay domain. It holds no
// mutable state and is safe for concurrent use.
type Codec struct {
	domain  string
	sealKey []byte
	sivKey  []byte
}

// New derives the codec keys from secret and binds them to relayDomain.
func New(secret []byte, relayDomain string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrWeakSecret, MinSecretLength, len(secret))
	}
	domain := strings.ToLower(strings.TrimSpace(relayDomain))
	if domain == "" || strings.ContainsAny(domain, "@ \t") || checkDomain(domain) != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, relayDomain)
	}

	sealKey, err := deriveKey(secret, "mailfunnel reply token seal")
	if err != nil {
		return nil, err
	}
	sivKey, err := deriveKey(secret, "mailfunnel reply token nonce")
	if err != nil {
		return nil, err
	}

	return &Codec{domain: domain, sealKey: sealKey, sivKey: sivKey}, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Domain returns the normalized relay domain
func (c *Codec) Domain() string {
	return c.domain
}

// IsRelayAddress reports whether addr is at the relay domain or one of its
// subdomains. It does not verify the token.
func (c *Codec) IsRelayAddress(addr string) bool {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(addr[at+1:]))
	return host == c.domain || strings.HasSuffix(host, "."+c.domain)
}

// Encode returns the relay address for the pair. The addresses are sealed
// verbatim and come back unchanged from Decode.
func (c *Codec) Encode(recipient, sender string) (string, error) {
	if err := checkAddress(recipient); err != nil {
		return "", fmt.Errorf("recipient: %w", err)
	}
	if err := checkAddress(sender); err != nil {
		return "", fmt.Errorf("sender: %w", err)
	}

	plaintext := make([]byte, 0, len(recipient)+1+len(sender))
	plaintext = append(plaintext, recipient...)
	plaintext = append(plaintext, separator)
	plaintext = append(plaintext, sender...)

	aead, err := chacha20poly1305.New(c.sealKey)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	nonce := c.syntheticNonce(plaintext)
	buf := make([]byte, 0, 1+nonceSize+len(plaintext)+aead.Overhead())
	buf = append(buf, version)
	buf = append(buf, nonce...)
	buf = aead.Seal(buf, nonce, plaintext, []byte(c.domain))

	labels := splitLabels(strings.ToLower(encoding.EncodeToString(buf)))
	addr := LocalPart + "@" + strings.Join(labels, ".") + "." + c.domain
	if err := checkMailbox(addr); err != nil {
		return "", err
	}
	return addr, nil
}

// Decode opens a relay address produced by Encode. Any failure is a
// *DecodeError matching one of ErrMalformed, ErrAuthFailed or ErrWrongDomain.
func (c *Codec) Decode(addr string) (recipient, sender string, err error) {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return "", "", decodeErr(KindMalformed, "missing local part or domain")
	}
	local, host := addr[:at], strings.ToLower(addr[at+1:])

	suffix := "." + c.domain
	if host != c.domain && !strings.HasSuffix(host, suffix) {
		return "", "", decodeErr(KindWrongDomain, "domain %q", host)
	}
	if !strings.EqualFold(local, LocalPart) {
		return "", "", decodeErr(KindMalformed, "local part %q", local)
	}
	if host == c.domain {
		return "", "", decodeErr(KindMalformed, "no token labels")
	}

	labels := strings.Split(strings.TrimSuffix(host, suffix), ".")
	for _, label := range labels {
		if label == "" || len(label) > MaxLabelLength {
			return "", "", decodeErr(KindMalformed, "bad label length %d", len(label))
		}
		for _, ch := range label {
			if (ch < 'a' || ch > 'z') && (ch < '2' || ch > '7') {
				return "", "", decodeErr(KindMalformed, "character %q outside token alphabet", ch)
			}
		}
	}
	encoded := strings.Join(labels, "")

	buf, err := encoding.DecodeString(strings.ToUpper(encoded))
	if err != nil {
		return "", "", decodeErr(KindMalformed, "base32: %v", err)
	}

	aead, err := chacha20poly1305.New(c.sealKey)
	if err != nil {
		return "", "", fmt.Errorf("init cipher: %w", err)
	}
	if len(buf) < 1+nonceSize+aead.Overhead() {
		return "", "", decodeErr(KindMalformed, "token too short, %d bytes", len(buf))
	}
	if buf[0] != version {
		return "", "", decodeErr(KindMalformed, "unknown version %d", buf[0])
	}

	nonce := buf[1 : 1+nonceSize]
	plaintext, err := aead.Open(nil, nonce, buf[1+nonceSize:], []byte(c.domain))
	if err != nil {
		return "", "", decodeErr(KindAuthFailed, "open: %v", err)
	}
	if !hmac.Equal(nonce, c.syntheticNonce(plaintext)) {
		return "", "", decodeErr(KindAuthFailed, "nonce mismatch")
	}

	sep := strings.IndexByte(string(plaintext), separator)
	if sep < 0 {
		return "", "", decodeErr(KindMalformed, "missing separator in payload")
	}
	recipient, sender = string(plaintext[:sep]), string(plaintext[sep+1:])
	if checkAddress(recipient) != nil || checkAddress(sender) != nil {
		return "", "", decodeErr(KindMalformed, "invalid address in payload")
	}
	return recipient, sender, nil
}

func (c *Codec) syntheticNonce(plaintext []byte) []byte {
	mac := hmac.New(sha256.New, c.sivKey)
	mac.Write(plaintext)
	return mac.Sum(nil)[:nonceSize]
}

// splitLabels cuts an encoded token into DNS labels
func splitLabels(encoded string) []string {
	labels := make([]string, 0, len(encoded)/MaxLabelLength+1)
	for len(encoded) > MaxLabelLength {
		labels = append(labels, encoded[:MaxLabelLength])
		encoded = encoded[MaxLabelLength:]
	}
	return append(labels, encoded)
}

// checkMailbox enforces the RFC 5321 size limits on a relay address
func checkMailbox(addr string) error {
	if len(addr) > MaxAddressLength {
		return fmt.Errorf("%w: %d octets", ErrTooLong, len(addr))
	}
	at := strings.LastIndexByte(addr, '@')
	if at > MaxLocalPartLength {
		return fmt.Errorf("%w: local part of %d octets", ErrTooLong, at)
	}
	return checkDomain(addr[at+1:])
}

func checkDomain(domain string) error {
	if len(domain) > MaxDomainLength {
		return fmt.Errorf("%w: domain of %d octets", ErrTooLong, len(domain))
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" || len(label) > MaxLabelLength {
			return fmt.Errorf("%w: label of %d octets", ErrTooLong, len(label))
		}
	}
	return nil
}

func checkAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.IndexByte(addr, separator) >= 0 {
		return fmt.Errorf("%w: contains NUL", ErrInvalidAddress)
	}
	if !strings.Contains(addr, "@") {
		return fmt.Errorf("%w: %q has no domain", ErrInvalidAddress, addr)
	}
	return nil
}
