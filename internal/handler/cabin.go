package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
	"github.com/iliyamo/cabin-reservation/internal/model"
	"github.com/iliyamo/cabin-reservation/internal/service"
)

// CabinHandler serves the public catalogue and the per-viewer date
// selection.
type CabinHandler struct {
	Catalog *service.CatalogService
}

func NewCabinHandler(catalog *service.CatalogService) *CabinHandler {
	if catalog == nil {
		panic("nil catalog passed to NewCabinHandler")
	}
	return &CabinHandler{Catalog: catalog}
}

// List handles GET /v1/cabins.
func (h *CabinHandler) List(c echo.Context) error {
	cabins, err := h.Catalog.Cabins(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cabins)
}

// Get handles GET /v1/cabins/:id.
func (h *CabinHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	cabin, err := h.Catalog.Cabin(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cabin)
}

// BookedDates handles GET /v1/cabins/:id/booked-dates.  Days are returned
// as YYYY-MM-DD strings in ascending order.
func (h *CabinHandler) BookedDates(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	days, err := h.Catalog.BookedDates(c.Request().Context(), id)
	if err != nil {
		return err
	}
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(model.DateLayout)
	}
	return c.JSON(http.StatusOK, echo.Map{"cabinId": id, "bookedDates": out})
}

// Settings handles GET /v1/settings.
func (h *CabinHandler) Settings(c echo.Context) error {
	s, err := h.Catalog.Settings(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

type selectionReq struct {
	From string `form:"from" json:"from"`
	To   string `form:"to" json:"to"`
}

// dateRange turns the optional from/to strings into a range.  Either end
// may be missing while the guest is still picking.
func (r selectionReq) dateRange() (model.DateRange, error) {
	var out model.DateRange
	if s := strings.TrimSpace(r.From); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return out, apperror.Validation("Invalid start date", map[string]any{"field": "from"})
		}
		out.From = &d
	}
	if s := strings.TrimSpace(r.To); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return out, apperror.Validation("Invalid end date", map[string]any{"field": "to"})
		}
		out.To = &d
	}
	return out, nil
}

// GetSelection handles GET /v1/cabins/:id/selection.
func (h *CabinHandler) GetSelection(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	v, err := h.Catalog.Selection(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// PutSelection handles PUT /v1/cabins/:id/selection.
func (h *CabinHandler) PutSelection(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req selectionReq
	if err := bind(c, &req); err != nil {
		return err
	}
	r, err := req.dateRange()
	if err != nil {
		return err
	}
	v, err := h.Catalog.SetSelection(c.Request().Context(), id, r)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// DeleteSelection handles DELETE /v1/cabins/:id/selection.
func (h *CabinHandler) DeleteSelection(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Catalog.ClearSelection(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
