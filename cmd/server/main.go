package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/welldanyogia/webrana-mailfunnel/internal/api"
	"github.com/welldanyogia/webrana-mailfunnel/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailfunnel/internal/config"
	"github.com/welldanyogia/webrana-mailfunnel/internal/database"
	"github.com/welldanyogia/webrana-mailfunnel/internal/logger"
	"github.com/welldanyogia/webrana-mailfunnel/internal/relay"
	"github.com/welldanyogia/webrana-mailfunnel/internal/repository"
	"github.com/welldanyogia/webrana-mailfunnel/internal/smtp"
	"github.com/welldanyogia/webrana-mailfunnel/internal/token"
	"github.com/welldanyogia/webrana-mailfunnel/internal/transport"
	"github.com/welldanyogia/webrana-mailfunnel/internal/websocket"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout     = 15 * time.Second
	rateLimitSweepEvery = time.Minute
)

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := setupLogger(cfg.LogLevel)
	log.Info("Starting mail funnel server...")
	cfg.LogConfig(log)

	security := logger.NewSecurityLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}

	domainRepo := repository.NewDomainRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	codec, err := token.New([]byte(cfg.RelaySecret), cfg.RelayDomain)
	if err != nil {
		return fmt.Errorf("failed to create reply codec: %w", err)
	}

	mailer, err := transport.New(ctx, cfg.TransportConfig(), log)
	if err != nil {
		return fmt.Errorf("failed to create mail transport: %w", err)
	}
	if closer, ok := mailer.(io.Closer); ok {
		defer closer.Close()
	}

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	relayCfg := relay.Config{
		RecipientEmail: cfg.RecipientEmail,
		RecipientName:  cfg.RecipientName,
		FromAddress:    cfg.MailFromAddress,
		SpamThreshold:  cfg.SpamThreshold,
	}
	deps := relay.Deps{
		Registry:  addressRepo,
		Audit:     messageRepo,
		Codec:     codec,
		Transport: mailer,
		Notifier:  hub,
		Security:  security,
		Logger:    log,
	}
	inbound := relay.NewInboundPipeline(relayCfg, deps)
	outbound := relay.NewOutboundPipeline(relayCfg, deps)

	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRequests), cfg.RateLimitBurst)
	limiter.StartSweeper(ctx, rateLimitSweepEvery)

	e := api.NewRouter(&api.RouterConfig{
		DB:             db,
		Logger:         log,
		Security:       security,
		Inbound:        inbound,
		Outbound:       outbound,
		Addresses:      addressRepo,
		Messages:       messageRepo,
		Domains:        domainRepo,
		Codec:          codec,
		Hub:            hub,
		TransportName:  mailer.Name(),
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.Origins(),
		Production:     cfg.IsProduction(),
		RateLimiter:    limiter,
		PostmarkAuth: middleware.Credentials{
			Username: cfg.PostmarkAuthUsername,
			Password: cfg.PostmarkAuthPassword,
		},
		SendgridAuth: middleware.Credentials{
			Username: cfg.SendgridAuthUsername,
			Password: cfg.SendgridAuthPassword,
		},
	})

	errCh := make(chan error, 2)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		log.Info("HTTP server listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var smtpServer *gosmtp.Server
	if cfg.SMTPEnabled {
		smtpServer, err = newSMTPServer(cfg, domainRepo, codec, inbound, outbound, log)
		if err != nil {
			return err
		}
		go func() {
			log.Info("SMTP server listening", "addr", smtpServer.Addr, "domain", smtpServer.Domain)
			if err := smtpServer.ListenAndServe(); err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
				errCh <- fmt.Errorf("smtp server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case runErr = <-errCh:
		log.Error("server failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down HTTP server", "error", err)
	}
	if smtpServer != nil {
		if err := smtpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shut down SMTP server", "error", err)
		}
	}

	log.Info("Server stopped")
	return runErr
}

func newSMTPServer(
	cfg *config.Config,
	domains repository.DomainRepository,
	codec *token.Codec,
	inbound, outbound smtp.Pipeline,
	log *slog.Logger,
) (*gosmtp.Server, error) {
	tlsConfig, err := smtp.LoadTLSConfig(cfg.SMTPTLSCertFile, cfg.SMTPTLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load SMTP TLS config: %w", err)
	}

	backend := smtp.NewBackend(&smtp.BackendConfig{
		Domains:  domains,
		Relay:    codec,
		Inbound:  inbound,
		Outbound: outbound,
		Logger:   log,
	})

	return smtp.NewSecureServer(backend, &smtp.ServerConfig{
		Addr:           cfg.SMTPAddr(),
		Domain:         cfg.SMTPHostname(),
		MaxMessageSize: cfg.SMTPMaxMessageSize,
		TLSConfig:      tlsConfig,
	}), nil
}

// setupLogger installs a JSON slog logger at the given level as the default
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(log)
	return log
}
