package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/welldanyogia/webrana-mailfunnel/internal/api/handlers"
	"github.com/welldanyogia/webrana-mailfunnel/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailfunnel/internal/logger"
	"github.com/welldanyogia/webrana-mailfunnel/internal/relay"
	"github.com/welldanyogia/webrana-mailfunnel/internal/repository"
	"github.com/welldanyogia/webrana-mailfunnel/internal/webhook"
	"github.com/welldanyogia/webrana-mailfunnel/internal/websocket"
	"gorm.io/gorm"
)

// DefaultBodyLimit caps webhook and API request bodies, attachments included
const DefaultBodyLimit = "25M"

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB       *gorm.DB
	Logger   *slog.Logger
	Security *logger.SecurityLogger

	Inbound  handlers.Pipeline
	Outbound handlers.Pipeline

	Addresses repository.AddressRepository
	Messages  repository.MessageRepository
	Domains   repository.DomainRepository
	Codec     relay.ReplyCodec
	// Hub feeds /api/events/ws, nil disables the route
	Hub *websocket.Hub

	TransportName string

	// Security configuration
	APIKey         string   // API key for the admin API (empty = disabled)
	AllowedOrigins []string // Allowed CORS and websocket origins
	Production     bool
	RateLimiter    *middleware.IPRateLimiter // nil = default limits
	BodyLimit      string

	PostmarkAuth middleware.Credentials
	SendgridAuth middleware.Credentials
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	// 1. Recover from panics
	e.Use(middleware.Recover())

	// 2. Security headers
	e.Use(middleware.SecureHeaders())

	// 3. CORS
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.Production))

	// 4. Rate limiting
	if cfg.RateLimiter != nil {
		e.Use(middleware.RateLimiter(cfg.RateLimiter, cfg.Security))
	} else {
		e.Use(middleware.RateLimiterWithConfig(0, 0, cfg.Security))
	}

	// 5. Body size
	bodyLimit := cfg.BodyLimit
	if bodyLimit == "" {
		bodyLimit = DefaultBodyLimit
	}
	e.Use(echomw.BodyLimit(bodyLimit))

	// 6. Request logging
	e.Use(middleware.RequestLogger(log))

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.TransportName)
	webhookHandler := handlers.NewWebhookHandler(cfg.Inbound, cfg.Outbound, log)
	addressHandler := handlers.NewAddressHandler(cfg.Addresses)
	messageHandler := handlers.NewMessageHandler(cfg.Messages)
	domainHandler := handlers.NewDomainHandler(cfg.Domains)
	replyHandler := handlers.NewReplyAddressHandler(cfg.Codec, cfg.Addresses, log)

	// Health and metrics (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Provider webhooks
	postmark := e.Group("/postmark", middleware.ProviderBasicAuth(webhook.ProviderPostmark, cfg.PostmarkAuth, cfg.Security))
	postmark.POST("/inbound", webhookHandler.PostmarkInbound)
	postmark.POST("/outbound", webhookHandler.PostmarkOutbound)

	sendgrid := e.Group("/sendgrid", middleware.ProviderBasicAuth(webhook.ProviderSendgrid, cfg.SendgridAuth, cfg.Security))
	sendgrid.POST("/inbound", webhookHandler.SendgridInbound)
	sendgrid.POST("/outbound", webhookHandler.SendgridOutbound)

	// Admin API
	api := e.Group("/api", middleware.APIKeyAuth(cfg.APIKey, cfg.Security))

	addresses := api.Group("/addresses")
	addresses.GET("", addressHandler.List)
	addresses.GET("/:id", addressHandler.Get)
	addresses.POST("/:id/block", addressHandler.Block)
	addresses.POST("/:id/unblock", addressHandler.Unblock)

	messages := api.Group("/messages")
	messages.GET("", messageHandler.List)
	messages.GET("/stats", messageHandler.Stats)
	messages.GET("/:id", messageHandler.Get)

	domains := api.Group("/domains")
	domains.POST("", domainHandler.Create)
	domains.GET("", domainHandler.List)
	domains.GET("/:id", domainHandler.Get)
	domains.PUT("/:id", domainHandler.Update)
	domains.DELETE("/:id", domainHandler.Delete)

	replies := api.Group("/reply-addresses")
	replies.POST("", replyHandler.Create)
	replies.POST("/decode", replyHandler.Decode)

	if cfg.Hub != nil {
		eventsHandler := handlers.NewEventsHandler(cfg.Hub, cfg.AllowedOrigins, cfg.Security, log)
		api.GET("/events/ws", eventsHandler.Serve)
	}

	return e
}
