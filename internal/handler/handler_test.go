package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
	"github.com/iliyamo/cabin-reservation/internal/config"
	"github.com/iliyamo/cabin-reservation/internal/logger"
	"github.com/iliyamo/cabin-reservation/internal/model"
	"github.com/iliyamo/cabin-reservation/internal/repository"
	"github.com/iliyamo/cabin-reservation/internal/utils"
)

const secret = "handler-secret"

func newAuth(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4, DBTimeout: time.Second}
	h := NewAuthHandler(cfg, repository.NewGuestRepo(db), repository.NewTokenRepo(db))

	e := echo.New()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger.Discard().Logger)
	e.POST("/login", h.Login)
	e.POST("/register", h.Register)
	e.POST("/logout", h.Logout)
	return e, mock
}

func postJSON(e *echo.Echo, path, body, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func guestRow(t *testing.T, password string) *sqlmock.Rows {
	t.Helper()
	hash, err := utils.HashPassword(password, 4)
	require.NoError(t, err)
	return sqlmock.NewRows([]string{"id", "full_name", "email", "password_hash", "national_id",
		"nationality", "country_flag", "role", "created_at"}).
		AddRow(7, "Ann Guest", "ann@example.com", hash, "", "", "", model.RoleGuest, time.Now())
}

func TestLogin_IssuesTokensAndRedirect(t *testing.T) {
	e, mock := newAuth(t)
	mock.ExpectQuery(`SELECT .* FROM guests WHERE email=\?`).
		WithArgs("ann@example.com").
		WillReturnRows(guestRow(t, "s3cret!"))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := postJSON(e, "/login", `{"email":" Ann@Example.com ","password":"s3cret!","redirect_to":"/cabins/1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/cabins/1", resp.RedirectTo)
	assert.Equal(t, uint64(7), resp.Guest.ID)

	s, err := utils.ParseAccessToken(secret, resp.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, model.Session{GuestID: 7, Role: model.RoleGuest}, s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_DefaultRedirectAndBadCredentials(t *testing.T) {
	e, mock := newAuth(t)
	mock.ExpectQuery(`SELECT .* FROM guests WHERE email=\?`).WillReturnRows(guestRow(t, "s3cret!"))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).WillReturnResult(sqlmock.NewResult(1, 1))
	rec := postJSON(e, "/login", `{"email":"ann@example.com","password":"s3cret!","redirect_to":"https://evil.example"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redirect_to":"/account"`)

	mock.ExpectQuery(`SELECT .* FROM guests WHERE email=\?`).WillReturnRows(guestRow(t, "s3cret!"))
	rec = postJSON(e, "/login", `{"email":"ann@example.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mock.ExpectQuery(`SELECT .* FROM guests WHERE email=\?`).WillReturnError(sql.ErrNoRows)
	rec = postJSON(e, "/login", `{"email":"nobody@example.com","password":"x"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mock.ExpectQuery(`SELECT .* FROM guests WHERE email=\?`).WillReturnError(errors.New("db down"))
	rec = postJSON(e, "/login", `{"email":"ann@example.com","password":"x"}`, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_GuestRoleOnly(t *testing.T) {
	e, mock := newAuth(t)
	mock.ExpectExec(`INSERT INTO guests`).
		WithArgs("Ann Guest", "ann@example.com", sqlmock.AnyArg(), model.RoleGuest).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).WillReturnResult(sqlmock.NewResult(1, 1))

	rec := postJSON(e, "/register", `{"fullName":"Ann Guest","email":"ann@example.com","password":"pw","role":"STAFF"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.RoleGuest, resp.Guest.Role)
	assert.Equal(t, uint64(11), resp.Guest.ID)

	rec = postJSON(e, "/register", `{"email":"ann@example.com","password":"pw"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogout(t *testing.T) {
	e, mock := newAuth(t)
	tok, err := utils.NewAccessToken(secret, 7, model.RoleGuest, 5)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP\(\) WHERE guest_id=\?`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	rec := postJSON(e, "/logout", `{}`, "Bearer "+tok.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"redirect_to":"/"`)

	rec = postJSON(e, "/logout", `{}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	mock.ExpectQuery(`SELECT guest_id, expires_at, revoked_at FROM refresh_tokens`).WillReturnError(sql.ErrNoRows)
	rec = postJSON(e, "/logout", `{"refresh_token":"abc"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/account", safeRedirect("", "/account"))
	assert.Equal(t, "/account", safeRedirect("//evil.example", "/account"))
	assert.Equal(t, "/account", safeRedirect("http://evil.example", "/account"))
	assert.Equal(t, "/cabins/3", safeRedirect(" /cabins/3 ", "/account"))
}

func TestSelectionRequestRange(t *testing.T) {
	r, err := selectionReq{From: "2026-11-02"}.dateRange()
	require.NoError(t, err)
	require.NotNil(t, r.From)
	assert.Nil(t, r.To)

	_, err = selectionReq{From: "2026-11-02", To: "soon"}.dateRange()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/up", Health(pinger{}))
	e.GET("/down", Health(pinger{err: errors.New("gone")}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/up", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
