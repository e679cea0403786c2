package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cabin-reservation/internal/selection"
)

// ViewerCookie names the cookie that identifies a browser across requests,
// signed in or not.
const ViewerCookie = "selection_id"

// Viewer makes sure every request carries a viewer key.  The key comes from
// the selection_id cookie; a fresh UUID is issued when the cookie is
// missing or malformed.
func Viewer(secure bool, maxAge time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if ck, err := c.Cookie(ViewerCookie); err == nil {
				if u, err := uuid.Parse(ck.Value); err == nil {
					id = u.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     ViewerCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(maxAge / time.Second),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.SetRequest(c.Request().WithContext(selection.WithViewer(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// identity names the caller for rate limiting and private cache keys:
// the guest when signed in, otherwise the viewer cookie, otherwise "anon".
func identity(c echo.Context) string {
	if s, ok := CurrentSession(c); ok {
		return "guest:" + strconv.FormatUint(s.GuestID, 10)
	}
	if v, ok := selection.ViewerFromContext(c.Request().Context()); ok {
		return "viewer:" + v
	}
	return "anon"
}
