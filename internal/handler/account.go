package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cabin-reservation/internal/service"
)

// AccountHandler serves the signed-in guest's profile.
type AccountHandler struct {
	Guests *service.GuestService
}

func NewAccountHandler(guests *service.GuestService) *AccountHandler {
	if guests == nil {
		panic("nil guest service passed to NewAccountHandler")
	}
	return &AccountHandler{Guests: guests}
}

// Profile handles GET /v1/account/profile.
func (h *AccountHandler) Profile(c echo.Context) error {
	g, err := h.Guests.Profile(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

// UpdateProfile handles PATCH /v1/account/profile.  Nationality arrives
// as "<country>%<flag url>" from the country picker.
func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	var in service.ProfileInput
	if err := bind(c, &in); err != nil {
		return err
	}
	res, err := h.Guests.UpdateProfile(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
