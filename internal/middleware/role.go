package middleware // middleware provides shared request processing for handlers

import (
	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/cabin-reservation/internal/apperror" // coded errors rendered by the error handler
)

// RequireRole aborts with 403 unless the session's role is one of roles.
// It must run after JWTAuth, which attaches the session.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant-time lookups.
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// No session means JWTAuth was skipped or the token was missing.
			s, ok := CurrentSession(c)
			if !ok {
				return apperror.Unauthenticated("authentication required")
			}
			// Signed in, but the role is not in the allowed set
			if !allowed[s.Role] {
				return apperror.Forbidden("forbidden")
			}
			// Otherwise call the next handler in the chain
			return next(c)
		}
	}
}
