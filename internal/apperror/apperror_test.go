package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without cause",
			err:      Forbidden("not yours"),
			expected: "FORBIDDEN: not yours",
		},
		{
			name:     "with cause",
			err:      Persistence("Booking could not be created", errors.New("duplicate key")),
			expected: "PERSISTENCE_ERROR: Booking could not be created (caused by: duplicate key)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestHasCode_UnwrapsChain(t *testing.T) {
	base := Validation("bad guests", nil)
	wrapped := fmt.Errorf("create: %w", base)

	assert.True(t, HasCode(wrapped, CodeValidation))
	assert.False(t, HasCode(wrapped, CodeForbidden))
	assert.False(t, HasCode(errors.New("plain"), CodeValidation))
}

func TestFrom_UnknownBecomesPersistence(t *testing.T) {
	cause := errors.New("boom")
	e := From(cause)

	assert.Equal(t, CodePersistence, e.Code)
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus)
	assert.ErrorIs(t, e, cause)
}

func TestUnauthenticated_CarriesLoginRedirect(t *testing.T) {
	e := Unauthenticated("You must be logged in")
	assert.Equal(t, http.StatusUnauthorized, e.HTTPStatus)
	assert.Equal(t, "/login", e.Details["redirect_to"])
}

func TestHTTPErrorHandler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler(log)
	e.GET("/app", func(c echo.Context) error {
		return Persistence("Booking could not be deleted", errors.New("db down"))
	})
	e.GET("/echo", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodePersistence, body.Code)
	assert.Equal(t, "Booking could not be deleted", body.Message)
	assert.NotContains(t, rec.Body.String(), "db down")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/echo", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeValidation, body.Code)
	assert.Equal(t, "invalid body", body.Message)
}
