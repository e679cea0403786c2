package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
	"github.com/iliyamo/cabin-reservation/internal/auth"
	"github.com/iliyamo/cabin-reservation/internal/model"
	"github.com/iliyamo/cabin-reservation/internal/selection"
	"github.com/iliyamo/cabin-reservation/internal/utils"
)

// ctxSession is the echo context key the session is stored under.
const ctxSession = "session"

// Session returns a middleware that reads an optional Bearer access token.
// A valid token attaches the guest's session to both the echo context and
// the request context; a missing one leaves the request anonymous.  A token
// that is present but invalid is rejected.  A signed-in request gets its
// viewer key scoped to the guest, so selections do not leak between guests
// on one browser or survive logout.
func Session(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return next(c)
			}
			s, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return apperror.Unauthenticated("invalid token")
			}
			c.Set(ctxSession, s)
			ctx := auth.WithSession(c.Request().Context(), s)
			if v, ok := selection.ViewerFromContext(ctx); ok {
				ctx = selection.WithViewer(ctx, selection.ForGuest(v, s.GuestID))
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// JWTAuth is Session followed by a check that a session was attached.
func JWTAuth(secret string) echo.MiddlewareFunc {
	session := Session(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return session(func(c echo.Context) error {
			if _, ok := CurrentSession(c); !ok {
				return apperror.Unauthenticated("missing bearer token")
			}
			return next(c)
		})
	}
}

// CurrentSession returns the session attached by Session or JWTAuth.
func CurrentSession(c echo.Context) (model.Session, bool) {
	s, ok := c.Get(ctxSession).(model.Session)
	return s, ok && s.GuestID != 0
}

func bearer(c echo.Context) (string, bool) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return raw, raw != ""
}
