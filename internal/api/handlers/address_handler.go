package handlers

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailfunnel/internal/api/response"
	"github.com/welldanyogia/webrana-mailfunnel/internal/repository"
)

// AddressHandler handles masked-address HTTP requests
type AddressHandler struct {
	repo repository.AddressRepository
}

// NewAddressHandler creates a new AddressHandler
func NewAddressHandler(repo repository.AddressRepository) *AddressHandler {
	return &AddressHandler{repo: repo}
}

// List handles GET /api/addresses?blocked=true&limit=&offset=
func (h *AddressHandler) List(c echo.Context) error {
	blockedOnly := c.QueryParam("blocked") == "true"
	limit, offset := pagination(c)

	addresses, total, err := h.repo.List(c.Request().Context(), blockedOnly, limit, offset)
	if err != nil {
		return response.InternalError(c, "failed to list addresses")
	}

	return response.Paginated(c, addresses, total, limit, offset)
}

// Get handles GET /api/addresses/:id
func (h *AddressHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid address ID")
	}

	address, err := h.repo.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "address not found")
		}
		return response.InternalError(c, "failed to get address")
	}

	return response.Success(c, address)
}

// Block handles POST /api/addresses/:id/block
func (h *AddressHandler) Block(c echo.Context) error {
	return h.setBlocked(c, true)
}

// Unblock handles POST /api/addresses/:id/unblock
func (h *AddressHandler) Unblock(c echo.Context) error {
	return h.setBlocked(c, false)
}

func (h *AddressHandler) setBlocked(c echo.Context, blocked bool) error {
	id, err := idParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid address ID")
	}

	address, err := h.repo.SetBlocked(c.Request().Context(), id, blocked)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "address not found")
		}
		return response.InternalError(c, "failed to update address")
	}

	msg := "address unblocked"
	if blocked {
		msg = "address blocked"
	}
	return response.SuccessWithMessage(c, address, msg)
}
