package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailfunnel/internal/api/response"
	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
	"github.com/welldanyogia/webrana-mailfunnel/internal/relay"
	"github.com/welldanyogia/webrana-mailfunnel/internal/repository"
	"github.com/welldanyogia/webrana-mailfunnel/internal/token"
	"github.com/welldanyogia/webrana-mailfunnel/internal/validator"
)

// AddressLookup finds masked addresses by email
type AddressLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.Address, error)
}

// ReplyAddressHandler lets the owner start a conversation with a contact from
// one of their masked addresses
type ReplyAddressHandler struct {
	codec     relay.ReplyCodec
	addresses AddressLookup
	logger    *slog.Logger
}

// NewReplyAddressHandler creates a new ReplyAddressHandler
func NewReplyAddressHandler(codec relay.ReplyCodec, addresses AddressLookup, logger *slog.Logger) *ReplyAddressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplyAddressHandler{
		codec:     codec,
		addresses: addresses,
		logger:    logger,
	}
}

// CreateReplyAddressRequest names the masked address to write from and the contact to write to
type CreateReplyAddressRequest struct {
	Address string `json:"address"`
	Contact string `json:"contact"`
}

// DecodeReplyAddressRequest carries a relay address to open
type DecodeReplyAddressRequest struct {
	RelayAddress string `json:"relay_address"`
}

// ReplyAddressResponse describes one relay address
type ReplyAddressResponse struct {
	RelayAddress string `json:"relay_address"`
	Address      string `json:"address"`
	Contact      string `json:"contact"`
}

// Create handles POST /api/reply-addresses
func (h *ReplyAddressHandler) Create(c echo.Context) error {
	var req CreateReplyAddressRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	address := models.NormalizeEmail(req.Address)
	if err := validator.ValidateEmail(address); err != nil {
		return response.BadRequest(c, "address: "+err.Error())
	}
	if err := validator.ValidateExternalMailbox(req.Contact, h.codec.Domain()); err != nil {
		return response.BadRequest(c, "contact: "+err.Error())
	}

	if _, err := h.addresses.GetByEmail(c.Request().Context(), address); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "address not found")
		}
		return response.InternalError(c, "failed to get address")
	}

	relayAddress, err := h.codec.Encode(address, req.Contact)
	if err != nil {
		if errors.Is(err, token.ErrTooLong) || errors.Is(err, token.ErrInvalidAddress) {
			return response.BadRequest(c, err.Error())
		}
		h.logger.Error("failed to encode reply address", "address", address, "error", err)
		return response.InternalError(c, "failed to create reply address")
	}

	return response.Created(c, ReplyAddressResponse{
		RelayAddress: relayAddress,
		Address:      address,
		Contact:      req.Contact,
	})
}

// Decode handles POST /api/reply-addresses/decode
func (h *ReplyAddressHandler) Decode(c echo.Context) error {
	var req DecodeReplyAddressRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.RelayAddress == "" {
		return response.BadRequest(c, "relay_address is required")
	}

	address, contact, err := h.codec.Decode(req.RelayAddress)
	if err != nil {
		return response.BadRequestWithData(c, "invalid relay address", map[string]string{
			"kind": string(token.KindOf(err)),
		})
	}

	return response.Success(c, ReplyAddressResponse{
		RelayAddress: req.RelayAddress,
		Address:      address,
		Contact:      contact,
	})
}
