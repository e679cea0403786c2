package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
	"github.com/iliyamo/cabin-reservation/internal/model"
	"github.com/iliyamo/cabin-reservation/internal/service"
)

// BookingHandler exposes the booking mutations and the guest's
// reservation views.  Authentication is decided by the service from the
// request context, so these handlers never read the session themselves.
type BookingHandler struct {
	Bookings *service.BookingService
}

func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	if bookings == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings}
}

type createBookingReq struct {
	CabinID      uint64  `form:"cabinId" json:"cabinId"`
	StartDate    string  `form:"startDate" json:"startDate"`
	EndDate      string  `form:"endDate" json:"endDate"`
	CabinPrice   float64 `form:"cabinPrice" json:"cabinPrice"`
	NumGuests    string  `form:"numGuests" json:"numGuests"`
	Observations string  `form:"observations" json:"observations"`
}

type updateBookingReq struct {
	BookingID    string `form:"bookingId" json:"bookingId"`
	NumGuests    string `form:"numGuests" json:"numGuests"`
	Observations string `form:"observations" json:"observations"`
}

type statusReq struct {
	Status string `form:"status" json:"status"`
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := bind(c, &req); err != nil {
		return err
	}
	data := service.BookingData{
		CabinID:    req.CabinID,
		StartDate:  strings.TrimSpace(req.StartDate),
		EndDate:    strings.TrimSpace(req.EndDate),
		CabinPrice: req.CabinPrice,
	}
	in := service.GuestInput{NumGuests: strings.TrimSpace(req.NumGuests), Observations: req.Observations}
	res, err := h.Bookings.CreateBooking(c.Request().Context(), data, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// Update handles POST and PATCH /v1/bookings/:id.  A bookingId form field,
// when sent, must name the same booking as the path.
func (h *BookingHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req updateBookingReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if raw := strings.TrimSpace(req.BookingID); raw != "" && raw != strconv.FormatUint(id, 10) {
		return apperror.Validation("bookingId does not match the path", map[string]any{"field": "bookingId"})
	}
	in := service.GuestInput{NumGuests: strings.TrimSpace(req.NumGuests), Observations: req.Observations}
	res, err := h.Bookings.UpdateBooking(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	res, err := h.Bookings.DeleteBooking(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Reservations handles GET /v1/account/reservations.
func (h *BookingHandler) Reservations(c echo.Context) error {
	list, err := h.Bookings.Reservations(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// Reservation handles GET /v1/account/reservations/:id.
func (h *BookingHandler) Reservation(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	b, err := h.Bookings.Reservation(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

// AdvanceStatus handles PATCH /v1/staff/bookings/:id/status.
func (h *BookingHandler) AdvanceStatus(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	to := model.BookingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	res, err := h.Bookings.AdvanceStatus(c.Request().Context(), id, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
