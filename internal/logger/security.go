// Package logger provides security event logging for the mail funnel.
package logger

import (
	"log/slog"
	"os"
	"time"
)

// SecurityLogger provides methods for logging security-related events.
// It never logs credentials or relay secrets.
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a new SecurityLogger with JSON output.
func NewSecurityLogger() *SecurityLogger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &SecurityLogger{
		logger: slog.New(handler),
	}
}

// NewSecurityLoggerWithHandler creates a SecurityLogger with a custom handler.
func NewSecurityLoggerWithHandler(handler slog.Handler) *SecurityLogger {
	return &SecurityLogger{
		logger: slog.New(handler),
	}
}

// AuthFailure logs a failed admin API authentication attempt.
func (s *SecurityLogger) AuthFailure(ip, path, reason string) {
	s.logger.Warn("authentication_failure",
		slog.String("event_type", "auth_failure"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// WebhookAuthFailure logs a provider webhook call with missing or wrong basic
// auth credentials. The attempted username is logged, the password never.
func (s *SecurityLogger) WebhookAuthFailure(ip, provider, username string) {
	s.logger.Warn("webhook_auth_failure",
		slog.String("event_type", "webhook_auth_failure"),
		slog.String("ip", ip),
		slog.String("provider", provider),
		slog.String("username", username),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// UnauthorizedReply logs a reply to a valid relay address that did not come
// from the owner mailbox.
func (s *SecurityLogger) UnauthorizedReply(provider, from, relayAddress string) {
	s.logger.Warn("unauthorized_reply",
		slog.String("event_type", "unauthorized_reply"),
		slog.String("provider", provider),
		slog.String("from", from),
		slog.String("relay_address", relayAddress),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// ForgedToken logs a relay-domain address whose token failed authentication.
func (s *SecurityLogger) ForgedToken(provider, from, relayAddress string) {
	s.logger.Warn("forged_relay_token",
		slog.String("event_type", "forged_token"),
		slog.String("provider", provider),
		slog.String("from", from),
		slog.String("relay_address", relayAddress),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// RateLimitExceeded logs when a client exceeds rate limits.
func (s *SecurityLogger) RateLimitExceeded(ip, path string) {
	s.logger.Warn("rate_limit_exceeded",
		slog.String("event_type", "rate_limit"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// InvalidOrigin logs a rejected WebSocket connection due to invalid origin.
func (s *SecurityLogger) InvalidOrigin(ip, origin string) {
	s.logger.Warn("invalid_origin",
		slog.String("event_type", "invalid_origin"),
		slog.String("ip", ip),
		slog.String("origin", origin),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// SecurityEvent logs a generic security event, dropping sensitive keys.
func (s *SecurityLogger) SecurityEvent(eventType, ip string, details map[string]string) {
	attrs := []any{
		slog.String("event_type", eventType),
		slog.String("ip", ip),
		slog.Time("timestamp", time.Now().UTC()),
	}

	for k, v := range details {
		if isSensitiveKey(k) {
			continue
		}
		attrs = append(attrs, slog.String(k, v))
	}

	s.logger.Warn("security_event", attrs...)
}

// Info logs an informational message.
func (s *SecurityLogger) Info(msg string, args ...any) {
	s.logger.Info(msg, args...)
}

// Error logs an error message.
func (s *SecurityLogger) Error(msg string, args ...any) {
	s.logger.Error(msg, args...)
}

// GetLogger returns the underlying slog.Logger for use with middleware.
func (s *SecurityLogger) GetLogger() *slog.Logger {
	return s.logger
}

var sensitiveKeys = map[string]bool{
	"password":      true,
	"api_key":       true,
	"apikey":        true,
	"token":         true,
	"secret":        true,
	"relay_secret":  true,
	"authorization": true,
	"auth":          true,
	"credential":    true,
	"credentials":   true,
	"session":       true,
	"cookie":        true,
}

func isSensitiveKey(key string) bool {
	return sensitiveKeys[key]
}
