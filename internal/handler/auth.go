package handler

import (
	"context"      // provides context with cancellation for DB calls
	"database/sql" // sql.ErrNoRows from token lookups
	"errors"       // errors.Is against repository sentinels
	"net/http"     // HTTP status codes
	"strings"      // trimming and case folding of inputs
	"time"         // default DB timeout and token expiry

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/cabin-reservation/internal/apperror"   // coded errors
	"github.com/iliyamo/cabin-reservation/internal/config"     // app configuration
	"github.com/iliyamo/cabin-reservation/internal/model"      // guest and role types
	"github.com/iliyamo/cabin-reservation/internal/repository" // DB repositories
	"github.com/iliyamo/cabin-reservation/internal/utils"      // hashing and token issuing
)

const (
	defaultSignInRedirect  = "/account"
	defaultSignOutRedirect = "/"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Guests *repository.GuestRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, g *repository.GuestRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Guests: g, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	FullName string `json:"fullName" form:"fullName"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}
type loginReq struct {
	Email      string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
	RedirectTo string `json:"redirect_to" form:"redirect_to"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
	RedirectTo   string `json:"redirect_to" form:"redirect_to"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type guestPart struct {
	ID       uint64 `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}
type authResp struct {
	Guest      guestPart `json:"guest"`
	Access     tokenPart `json:"access"`
	Refresh    tokenPart `json:"refresh"`
	RedirectTo string    `json:"redirect_to,omitempty"`
}

// safeRedirect keeps redirects on this site: only absolute paths are
// accepted, anything else falls back to def.
func safeRedirect(raw, def string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return def
	}
	return raw
}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	d := h.Cfg.DBTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// issue creates an access/refresh pair and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, g model.Guest) (authResp, error) {
	// short-lived JWT carrying guest id and role
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, g.ID, g.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, apperror.Persistence("issue access failed", err)
	}
	// opaque refresh token; only its hash is stored
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, apperror.Persistence("issue refresh failed", err)
	}
	if err := h.Tokens.StoreRefresh(ctx, g.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, apperror.Persistence("save refresh failed", err)
	}
	return authResp{
		Guest:   guestPart{ID: g.ID, FullName: g.FullName, Email: g.Email, Role: g.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Register creates a guest account and returns tokens immediately.  Staff
// accounts are never created here.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	// normalise input: emails are stored lowercase
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return apperror.Validation("fullName, email and password are required", nil)
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	// Self-registration always yields a GUEST; any role in the body is ignored.
	id, err := h.Guests.Create(ctx, req.FullName, req.Email, req.Password, model.RoleGuest, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return apperror.Validation("email already exists", map[string]any{"field": "email"})
		}
		return apperror.Persistence("create guest failed", err)
	}
	resp, err := h.issue(ctx, model.Guest{ID: id, FullName: req.FullName, Email: req.Email, Role: model.RoleGuest})
	if err != nil {
		return err
	}
	resp.RedirectTo = defaultSignInRedirect
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new token pair together with
// where the client should go next.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return apperror.Validation("email/password required", nil)
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	// Unknown email and wrong password give the same answer.
	g, err := h.Guests.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Unauthenticated("invalid credentials")
		}
		return apperror.Persistence("query failed", err)
	}
	if !utils.VerifyPassword(g.PasswordHash, req.Password) {
		return apperror.Unauthenticated("invalid credentials")
	}

	resp, err := h.issue(ctx, g)
	if err != nil {
		return err
	}
	// only same-site paths are echoed back
	resp.RedirectTo = safeRedirect(req.RedirectTo, defaultSignInRedirect)
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates by hash, revokes the old token and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		return apperror.Validation("refresh_token required", map[string]any{"field": "refresh_token"})
	}
	hash := utils.HashRefreshRaw(raw)

	ctx, cancel := h.ctx(c)
	defer cancel()

	guestID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return apperror.Unauthenticated("invalid refresh")
	}
	// rotate: the presented token cannot be used again
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return apperror.Persistence("revoke refresh failed", err)
	}

	g, err := h.Guests.GetByID(ctx, guestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Unauthenticated("invalid refresh")
		}
		return apperror.Persistence("load guest failed", err)
	}
	resp, err := h.issue(ctx, g)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		return apperror.Validation("refresh_token required", map[string]any{"field": "refresh_token"})
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	guestID, err := h.Tokens.ValidateRefresh(ctx, utils.HashRefreshRaw(raw))
	if err != nil {
		return apperror.Unauthenticated("invalid refresh")
	}
	g, err := h.Guests.GetByID(ctx, guestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Unauthenticated("invalid refresh")
		}
		return apperror.Persistence("load guest failed", err)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, g.ID, g.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return apperror.Persistence("issue access failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes one refresh token when it is sent in the body, otherwise
// every refresh token of the guest named by the bearer token.  The route
// sits outside the session middleware so an expired access token does not
// block signing out with a refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	// the body is optional here, a bare bearer token is enough
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)
	redirect := safeRedirect(req.RedirectTo, defaultSignOutRedirect)

	// An invalid bearer token is ignored rather than rejected.
	var guestID uint64
	if hdr := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(hdr, "Bearer ") {
		if s, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(hdr, "Bearer ")); err == nil {
			guestID = s.GuestID
		}
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	switch {
	case refreshToken != "":
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.Unauthenticated("invalid refresh token")
			}
			return apperror.Persistence("logout failed", err)
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return apperror.Persistence("logout failed", err)
		}
	case guestID != 0:
		if err := h.Tokens.RevokeAllForGuest(ctx, guestID); err != nil {
			return apperror.Persistence("logout failed", err)
		}
	default:
		return apperror.Validation("provide Authorization header or refresh_token", nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"redirect_to": redirect})
}
