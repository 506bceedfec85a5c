package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-smtp"
	"github.com/welldanyogia/webrana-mailfunnel/internal/relay"
)

var (
	errInvalidRecipient = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      "Invalid recipient address",
	}
	errDomainNotAccepted = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      "Domain not accepted",
	}
	errTemporary = &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "Temporary error, try again later",
	}
)

type direction int

const (
	inbound direction = iota
	outbound
)

type recipient struct {
	addr string
	dir  direction
}

// Session implements the go-smtp Session interface
type Session struct {
	backend    *Backend
	from       string
	recipients []recipient
}

// NewSession creates a new SMTP session
func NewSession(backend *Backend) *Session {
	return &Session{backend: backend}
}

// Mail handles the MAIL FROM command
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	s.logDebug("MAIL FROM", slog.String("from", from))
	return nil
}

// Rcpt accepts relay addresses as outbound and addresses of an active
// registered domain as inbound
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	addr, domainName, err := parseEmailAddress(to)
	if err != nil {
		return errInvalidRecipient
	}

	if s.backend.relay != nil && s.backend.relay.IsRelayAddress(addr) {
		s.recipients = append(s.recipients, recipient{addr: addr, dir: outbound})
		s.logDebug("RCPT TO relay address", slog.String("to", addr))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.backend.processTimeout)
	defer cancel()

	ok, err := s.backend.domains.Accepts(ctx, domainName)
	if err != nil {
		s.logError("failed to check recipient domain", slog.String("domain", domainName), slog.Any("error", err))
		return errTemporary
	}
	if !ok {
		return errDomainNotAccepted
	}

	s.recipients = append(s.recipients, recipient{addr: addr, dir: inbound})
	s.logDebug("RCPT TO", slog.String("to", addr))
	return nil
}

// Data parses the message and runs it through the pipeline of each recipient.
// Any infrastructure failure is answered with 451 so the sender retries.
func (s *Session) Data(r io.Reader) error {
	if len(s.recipients) == 0 {
		return &smtp.SMTPError{
			Code:         503,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "No recipients specified",
		}
	}

	env, err := ParseMessage(r)
	if err != nil {
		s.logError("failed to parse email", slog.Any("error", err))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Failed to parse email",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.backend.processTimeout)
	defer cancel()

	var failed, invalid bool
	for _, rcpt := range s.recipients {
		pipeline := s.backend.inbound
		if rcpt.dir == outbound {
			pipeline = s.backend.outbound
		}

		result, err := pipeline.Process(ctx, forRecipient(env, s.from, rcpt.addr))
		if err != nil {
			s.logError("failed to process email", slog.String("recipient", rcpt.addr), slog.Any("error", err))
			if errors.Is(err, relay.ErrInvalidEnvelope) {
				invalid = true
			} else {
				failed = true
			}
			continue
		}

		if s.backend.logger != nil {
			s.backend.logger.Info("email processed",
				slog.String("recipient", rcpt.addr),
				slog.String("disposition", string(result.Disposition)),
				slog.String("reason", string(result.Reason)))
		}
	}

	switch {
	case failed:
		return errTemporary
	case invalid:
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 7},
			Message:      "Invalid sender address",
		}
	}
	return nil
}

// Reset resets the session state
func (s *Session) Reset() {
	s.from = ""
	s.recipients = nil
}

// Logout handles the end of the session
func (s *Session) Logout() error {
	return nil
}

func (s *Session) logDebug(msg string, args ...any) {
	if s.backend.logger != nil {
		s.backend.logger.Debug(msg, args...)
	}
}

func (s *Session) logError(msg string, args ...any) {
	if s.backend.logger != nil {
		s.backend.logger.Error(msg, args...)
	}
}

// parseEmailAddress returns the lower-cased address and its domain
func parseEmailAddress(address string) (addr, domain string, err error) {
	address = strings.TrimSpace(address)
	address = strings.TrimPrefix(address, "<")
	address = strings.TrimSuffix(address, ">")

	local, domain, ok := strings.Cut(address, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}

	addr = strings.ToLower(address)
	return addr, strings.ToLower(domain), nil
}
