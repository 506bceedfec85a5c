package handlers

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailfunnel/internal/api/response"
	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
	"github.com/welldanyogia/webrana-mailfunnel/internal/repository"
)

// MessageHandler serves the read-only audit log
type MessageHandler struct {
	messageRepo repository.MessageRepository
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messageRepo repository.MessageRepository) *MessageHandler {
	return &MessageHandler{messageRepo: messageRepo}
}

// List handles GET /api/messages?address_id=&rejected=&reason=&limit=&offset=
func (h *MessageHandler) List(c echo.Context) error {
	var filter models.MessageFilter

	if c.QueryParam("address_id") != "" {
		addressID, err := parseUintQuery(c, "address_id")
		if err != nil {
			return response.BadRequest(c, "invalid address ID")
		}
		filter.AddressID = &addressID
	}

	rejected, err := optionalBool(c, "rejected")
	if err != nil {
		return response.BadRequest(c, "invalid rejected filter")
	}
	filter.Rejected = rejected

	if r := c.QueryParam("reason"); r != "" {
		reason := models.RejectReason(r)
		if !reason.Valid() {
			return response.BadRequest(c, "invalid reason, must be one of: spam_score, address_blocked")
		}
		filter.Reason = &reason
	}

	limit, offset := pagination(c)

	messages, total, err := h.messageRepo.List(c.Request().Context(), filter, limit, offset)
	if err != nil {
		return response.InternalError(c, "failed to list messages")
	}

	return response.Paginated(c, messages, total, limit, offset)
}

// Get handles GET /api/messages/:id
func (h *MessageHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid message ID")
	}

	message, err := h.messageRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "message not found")
		}
		return response.InternalError(c, "failed to get message")
	}

	return response.Success(c, message)
}

// Stats handles GET /api/messages/stats
func (h *MessageHandler) Stats(c echo.Context) error {
	counts, err := h.messageRepo.CountByReason(c.Request().Context())
	if err != nil {
		return response.InternalError(c, "failed to count messages")
	}

	return response.Success(c, counts)
}
