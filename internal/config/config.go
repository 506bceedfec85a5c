// Package config loads the service configuration from the environment, with
// an optional YAML file (CONFIG_FILE) as the base layer.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/welldanyogia/webrana-mailfunnel/internal/token"
	"github.com/welldanyogia/webrana-mailfunnel/internal/transport"
	"github.com/welldanyogia/webrana-mailfunnel/internal/validator"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultAPIPort            = 8080
	DefaultSMTPPort           = 2525
	DefaultSMTPMaxMessageSize = 26214400
	DefaultSpamThreshold      = 5.0
	DefaultRateLimitRequests  = 10.0
	DefaultRateLimitBurst     = 20
	DefaultAMQPQueue          = "mailfunnel.outgoing"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string `yaml:"database_url"`

	// Server ports
	APIPort int `yaml:"api_port"`

	// SMTP ingest
	SMTPEnabled        bool   `yaml:"smtp_enabled"`
	SMTPPort           int    `yaml:"smtp_port"`
	SMTPDomain         string `yaml:"smtp_domain"`
	SMTPMaxMessageSize int64  `yaml:"smtp_max_message_size"`
	SMTPTLSCertFile    string `yaml:"smtp_tls_cert_file"`
	SMTPTLSKeyFile     string `yaml:"smtp_tls_key_file"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Security
	APIKey         string `yaml:"api_key"`
	AllowedOrigins string `yaml:"allowed_origins"`
	AppEnv         string `yaml:"app_env"`

	// Rate Limiting
	RateLimitRequests float64 `yaml:"rate_limit_requests"`
	RateLimitBurst    int     `yaml:"rate_limit_burst"`

	// Relay
	RecipientEmail  string  `yaml:"recipient_email"`
	RecipientName   string  `yaml:"recipient_name"`
	MailFromAddress string  `yaml:"mail_from_address"`
	SpamThreshold   float64 `yaml:"spam_threshold"`
	RelaySecret     string  `yaml:"relay_secret"`
	RelayDomain     string  `yaml:"relay_domain"`

	// Webhook credentials
	PostmarkAuthUsername string `yaml:"postmark_auth_username"`
	PostmarkAuthPassword string `yaml:"postmark_auth_password"`
	SendgridAuthUsername string `yaml:"sendgrid_auth_username"`
	SendgridAuthPassword string `yaml:"sendgrid_auth_password"`

	// Mail transport
	MailTransport      string `yaml:"mail_transport"`
	SMTPRelayAddr      string `yaml:"smtp_relay_addr"`
	SMTPRelayUsername  string `yaml:"smtp_relay_username"`
	SMTPRelayPassword  string `yaml:"smtp_relay_password"`
	SMTPRelayTLS       bool   `yaml:"smtp_relay_tls"`
	SESRegion          string `yaml:"ses_region"`
	SESAccessKeyID     string `yaml:"ses_access_key_id"`
	SESSecretAccessKey string `yaml:"ses_secret_access_key"`
	AMQPURL            string `yaml:"amqp_url"`
	AMQPQueue          string `yaml:"amqp_queue"`
}

// Load reads configuration from CONFIG_FILE, when set, and then from
// environment variables. Non-empty environment variables always win.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsProduction() {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.APIPort = DefaultAPIPort
	c.SMTPPort = DefaultSMTPPort
	c.SMTPMaxMessageSize = DefaultSMTPMaxMessageSize
	c.LogLevel = "info"
	c.AppEnv = "development"
	c.RateLimitRequests = DefaultRateLimitRequests
	c.RateLimitBurst = DefaultRateLimitBurst
	c.SpamThreshold = DefaultSpamThreshold
	c.MailTransport = "log"
	c.AMQPQueue = DefaultAMQPQueue
}

func (c *Config) applyEnvVars() error {
	vars := []struct {
		key string
		dst *string
	}{
		{"DATABASE_URL", &c.DatabaseURL},
		{"SMTP_DOMAIN", &c.SMTPDomain},
		{"SMTP_TLS_CERT_FILE", &c.SMTPTLSCertFile},
		{"SMTP_TLS_KEY_FILE", &c.SMTPTLSKeyFile},
		{"LOG_LEVEL", &c.LogLevel},
		{"API_KEY", &c.APIKey},
		{"ALLOWED_ORIGINS", &c.AllowedOrigins},
		{"APP_ENV", &c.AppEnv},
		{"RECIPIENT_EMAIL", &c.RecipientEmail},
		{"RECIPIENT_NAME", &c.RecipientName},
		{"MAIL_FROM_ADDRESS", &c.MailFromAddress},
		{"RELAY_SECRET", &c.RelaySecret},
		{"RELAY_DOMAIN", &c.RelayDomain},
		{"POSTMARK_AUTH_USERNAME", &c.PostmarkAuthUsername},
		{"POSTMARK_AUTH_PASSWORD", &c.PostmarkAuthPassword},
		{"SENDGRID_AUTH_USERNAME", &c.SendgridAuthUsername},
		{"SENDGRID_AUTH_PASSWORD", &c.SendgridAuthPassword},
		{"MAIL_TRANSPORT", &c.MailTransport},
		{"SMTP_RELAY_ADDR", &c.SMTPRelayAddr},
		{"SMTP_RELAY_USERNAME", &c.SMTPRelayUsername},
		{"SMTP_RELAY_PASSWORD", &c.SMTPRelayPassword},
		{"SES_REGION", &c.SESRegion},
		{"SES_ACCESS_KEY_ID", &c.SESAccessKeyID},
		{"SES_SECRET_ACCESS_KEY", &c.SESSecretAccessKey},
		{"AMQP_URL", &c.AMQPURL},
		{"AMQP_QUEUE", &c.AMQPQueue},
	}
	for _, s := range vars {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}
	c.LogLevel = toLower(c.LogLevel)
	c.MailTransport = toLower(c.MailTransport)

	if err := envInt("API_PORT", &c.APIPort); err != nil {
		return err
	}
	if err := envInt("SMTP_PORT", &c.SMTPPort); err != nil {
		return err
	}
	if err := envInt("RATE_LIMIT_BURST", &c.RateLimitBurst); err != nil {
		return err
	}
	if v := os.Getenv("SMTP_MAX_MESSAGE_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SMTP_MAX_MESSAGE_SIZE must be a valid integer: %w", err)
		}
		c.SMTPMaxMessageSize = size
	}
	if err := envBool("SMTP_ENABLED", &c.SMTPEnabled); err != nil {
		return err
	}
	if err := envBool("SMTP_RELAY_TLS", &c.SMTPRelayTLS); err != nil {
		return err
	}
	if err := envFloat("RATE_LIMIT_REQUESTS", &c.RateLimitRequests); err != nil {
		return err
	}
	if err := envFloat("SPAM_THRESHOLD", &c.SpamThreshold); err != nil {
		return err
	}
	return nil
}

func toLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	*dst = b
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	*dst = f
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.SMTPEnabled {
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return fmt.Errorf("SMTPPort must be between 1 and 65535")
		}
		if (c.SMTPTLSCertFile == "") != (c.SMTPTLSKeyFile == "") {
			return fmt.Errorf("SMTP_TLS_CERT_FILE and SMTP_TLS_KEY_FILE must be set together")
		}
	}

	if err := validator.ValidateRelayDomain(c.RelayDomain); err != nil {
		return fmt.Errorf("RELAY_DOMAIN: %w", err)
	}
	if err := validator.ValidateExternalMailbox(c.RecipientEmail, c.RelayDomain); err != nil {
		return fmt.Errorf("RECIPIENT_EMAIL: %w", err)
	}
	if err := validator.ValidateEmail(c.MailFromAddress); err != nil {
		return fmt.Errorf("MAIL_FROM_ADDRESS: %w", err)
	}
	if len(c.RelaySecret) < token.MinSecretLength {
		return fmt.Errorf("RELAY_SECRET must be at least %d bytes", token.MinSecretLength)
	}
	if c.SpamThreshold <= 0 {
		return fmt.Errorf("SPAM_THRESHOLD must be positive")
	}

	switch c.MailTransport {
	case "log":
	case "smtp":
		if c.SMTPRelayAddr == "" {
			return fmt.Errorf("SMTP_RELAY_ADDR is required for the smtp transport")
		}
	case "ses":
		if c.SESRegion == "" {
			return fmt.Errorf("SES_REGION is required for the ses transport")
		}
	case "amqp":
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required for the amqp transport")
		}
	default:
		return fmt.Errorf("MAIL_TRANSPORT must be one of log, smtp, ses, amqp")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	// Check for wildcard in production
	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	// Check for sslmode=disable in database URL
	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	if c.MailTransport == "log" {
		return fmt.Errorf("the log mail transport is not allowed in production")
	}

	if !c.PostmarkConfigured() && !c.SendgridConfigured() && !c.SMTPEnabled {
		return fmt.Errorf("no inbound channel configured, set webhook credentials or SMTP_ENABLED")
	}

	return nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Origins returns ALLOWED_ORIGINS split on commas
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// PostmarkConfigured reports whether both Postmark credentials are set
func (c *Config) PostmarkConfigured() bool {
	return c.PostmarkAuthUsername != "" && c.PostmarkAuthPassword != ""
}

// SendgridConfigured reports whether both Sendgrid credentials are set
func (c *Config) SendgridConfigured() bool {
	return c.SendgridAuthUsername != "" && c.SendgridAuthPassword != ""
}

// SMTPAddr is the listen address of the SMTP ingest server
func (c *Config) SMTPAddr() string {
	return fmt.Sprintf(":%d", c.SMTPPort)
}

// SMTPHostname is the name announced by the SMTP ingest server
func (c *Config) SMTPHostname() string {
	if c.SMTPDomain != "" {
		return c.SMTPDomain
	}
	return c.RelayDomain
}

// TransportConfig returns the mail transport settings
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		Kind: c.MailTransport,
		SMTP: transport.SMTPConfig{
			Addr:        c.SMTPRelayAddr,
			Username:    c.SMTPRelayUsername,
			Password:    c.SMTPRelayPassword,
			ImplicitTLS: c.SMTPRelayTLS,
		},
		SES: transport.SESConfig{
			Region:          c.SESRegion,
			AccessKeyID:     c.SESAccessKeyID,
			SecretAccessKey: c.SESSecretAccessKey,
		},
		AMQP: transport.AMQPConfig{
			URL:   c.AMQPURL,
			Queue: c.AMQPQueue,
		},
	}
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.Bool("smtp_enabled", c.SMTPEnabled),
		slog.Int("smtp_port", c.SMTPPort),
		slog.Bool("smtp_tls", c.SMTPTLSCertFile != ""),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
		slog.String("relay_domain", c.RelayDomain),
		slog.Float64("spam_threshold", c.SpamThreshold),
		slog.String("mail_transport", c.MailTransport),
		slog.Bool("postmark_configured", c.PostmarkConfigured()),
		slog.Bool("sendgrid_configured", c.SendgridConfigured()),
	)
}
