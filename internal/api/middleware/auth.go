// Package middleware provides HTTP middleware for the mail funnel API.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailfunnel/internal/api/response"
	"github.com/welldanyogia/webrana-mailfunnel/internal/logger"
	"github.com/welldanyogia/webrana-mailfunnel/internal/metrics"
)

// APIKeyAuth validates the bearer API key of admin requests.
// Uses constant-time comparison to prevent timing attacks.
func APIKeyAuth(apiKey string, security *logger.SecurityLogger) echo.MiddlewareFunc {
	if apiKey == "" && security != nil {
		security.GetLogger().Warn("API_KEY not set - admin API is UNSECURED")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Skip if API_KEY not configured (development mode)
			if apiKey == "" {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			// Browsers cannot set headers on a websocket handshake
			if authHeader == "" && isWebSocketUpgrade(c) {
				if key := c.QueryParam("api_key"); key != "" {
					authHeader = "Bearer " + key
				}
			}
			if authHeader == "" {
				if security != nil {
					security.AuthFailure(c.RealIP(), c.Path(), "missing authorization header")
				}
				return echo.NewHTTPError(401, map[string]string{
					"error": "missing authorization header",
					"code":  "UNAUTHORIZED",
				})
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				if security != nil {
					security.AuthFailure(c.RealIP(), c.Path(), "invalid API key")
				}
				return echo.NewHTTPError(401, map[string]string{
					"error": "invalid API key",
					"code":  "UNAUTHORIZED",
				})
			}

			return next(c)
		}
	}
}

func isWebSocketUpgrade(c echo.Context) bool {
	return strings.EqualFold(c.Request().Header.Get(echo.HeaderUpgrade), "websocket")
}

// Credentials is the HTTP basic auth pair a webhook provider posts with
type Credentials struct {
	Username string
	Password string
}

// Configured reports whether both parts are set
func (c Credentials) Configured() bool {
	return c.Username != "" && c.Password != ""
}

// ProviderBasicAuth guards the webhook routes of one provider. Any mismatch,
// including missing credentials on either side, is answered with 403 before
// the request reaches a handler.
func ProviderBasicAuth(provider string, creds Credentials, security *logger.SecurityLogger) echo.MiddlewareFunc {
	if !creds.Configured() && security != nil {
		security.GetLogger().Warn("webhook credentials not set, all requests will be refused",
			slog.String("provider", provider))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			username, password, ok := c.Request().BasicAuth()
			if ok && creds.Configured() && credentialsMatch(username, password, creds) {
				return next(c)
			}

			metrics.WebhookAuthFailures.WithLabelValues(provider).Inc()
			if security != nil {
				security.WebhookAuthFailure(c.RealIP(), provider, username)
			}
			return response.Forbidden(c, "invalid webhook credentials")
		}
	}
}

// credentialsMatch compares both parts without short-circuiting
func credentialsMatch(username, password string, creds Credentials) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(creds.Username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(creds.Password))
	return userOK&passOK == 1
}
