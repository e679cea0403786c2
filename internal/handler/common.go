package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
)

// idParam reads a positive numeric path parameter.
func idParam(c echo.Context, name string) (uint64, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, apperror.Validation("invalid "+name, map[string]any{"field": name})
	}
	return n, nil
}

// bind decodes the form or JSON body.  Decoding failures are reported as
// validation errors instead of echo's plain 400.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperror.Validation("Invalid request body", nil)
	}
	return nil
}
