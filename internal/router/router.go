// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cabin-reservation/internal/auth"
	"github.com/iliyamo/cabin-reservation/internal/cache"
	"github.com/iliyamo/cabin-reservation/internal/handler"
	"github.com/iliyamo/cabin-reservation/internal/middleware"
	"github.com/iliyamo/cabin-reservation/internal/model"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Auth     *handler.AuthHandler
	Cabins   *handler.CabinHandler
	Bookings *handler.BookingHandler
	Account  *handler.AccountHandler
	Health   echo.HandlerFunc
}

// Middleware groups the request-scoped middleware shared by several
// groups.  Viewer, RateLimit and Cache may be nil.
type Middleware struct {
	JWTSecret string
	Viewer    echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
	Cache     *middleware.ResponseCache
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return passthrough
	}
	return m
}

// cabinTags tags a cabin view with the :id path parameter.
func cabinTags(c echo.Context) []string {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil
	}
	return []string{cache.CabinTag(id)}
}

func reservationsTags(c echo.Context) []string {
	s, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return nil
	}
	return []string{cache.ReservationsTag(s.GuestID)}
}

func reservationTags(c echo.Context) []string {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil
	}
	return []string{cache.ReservationTag(id)}
}

func profileTags(c echo.Context) []string {
	s, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return nil
	}
	return []string{cache.ProfileTag(s.GuestID)}
}

// Register mounts every route.
func Register(e *echo.Echo, h Handlers, m Middleware) {
	e.GET("/healthz", h.Health)

	registerAuth(e, h.Auth)

	// a nil cache hands back pass-through middleware
	public, private := m.Cache.Public, m.Cache.Private
	limit := orPass(m.RateLimit)

	v1 := e.Group("/v1", orPass(m.Viewer), middleware.Session(m.JWTSecret))

	// public catalogue
	v1.GET("/cabins", h.Cabins.List, public(nil))
	v1.GET("/cabins/:id", h.Cabins.Get, public(cabinTags))
	v1.GET("/cabins/:id/booked-dates", h.Cabins.BookedDates, public(cabinTags))
	v1.GET("/settings", h.Cabins.Settings, public(nil))

	// per-viewer selection, never cached
	v1.GET("/cabins/:id/selection", h.Cabins.GetSelection)
	v1.PUT("/cabins/:id/selection", h.Cabins.PutSelection, limit)
	v1.DELETE("/cabins/:id/selection", h.Cabins.DeleteSelection, limit)

	// Mutations decide authentication themselves so an anonymous caller
	// gets the same Unauthenticated error with zero store calls.
	v1.POST("/bookings", h.Bookings.Create, limit)
	v1.POST("/bookings/:id", h.Bookings.Update, limit)
	v1.PATCH("/bookings/:id", h.Bookings.Update, limit)
	v1.DELETE("/bookings/:id", h.Bookings.Delete, limit)

	account := v1.Group("/account", middleware.JWTAuth(m.JWTSecret))
	account.GET("/reservations", h.Bookings.Reservations, private(reservationsTags))
	account.GET("/reservations/:id", h.Bookings.Reservation, private(reservationTags))
	account.GET("/profile", h.Account.Profile, private(profileTags))
	account.PATCH("/profile", h.Account.UpdateProfile, limit)

	staff := v1.Group("/staff", middleware.JWTAuth(m.JWTSecret), middleware.RequireRole(model.RoleStaff))
	staff.PATCH("/bookings/:id/status", h.Bookings.AdvanceStatus, limit)
}

// registerAuth mounts the token endpoints.  They stay outside the session
// middleware: a stale bearer token must not block login or logout.
func registerAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)
}
