package handlers

import (
	"log/slog"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailfunnel/internal/api/response"
	"github.com/welldanyogia/webrana-mailfunnel/internal/logger"
	"github.com/welldanyogia/webrana-mailfunnel/internal/websocket"
)

// EventsHandler upgrades admin clients onto the live audit feed
type EventsHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	logger   *slog.Logger
}

// NewEventsHandler creates a new EventsHandler
func NewEventsHandler(hub *websocket.Hub, allowedOrigins []string, security *logger.SecurityLogger, log *slog.Logger) *EventsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EventsHandler{
		hub:      hub,
		upgrader: websocket.NewSecureUpgrader(allowedOrigins, security),
		logger:   log,
	}
}

// Serve handles GET /api/events/ws?address_id=. Without address_id the client
// receives every audit record.
func (h *EventsHandler) Serve(c echo.Context) error {
	var addressID uint
	if c.QueryParam("address_id") != "" {
		id, err := parseUintQuery(c, "address_id")
		if err != nil {
			return response.BadRequest(c, "invalid address ID")
		}
		addressID = id
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response
		h.logger.Debug("websocket upgrade failed", "error", err)
		return nil
	}

	client := websocket.NewClient(h.hub, conn, h.logger)
	h.hub.Register(client)
	h.hub.Subscribe(client, addressID)

	go client.WritePump()
	client.ReadPump()
	return nil
}
