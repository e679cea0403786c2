// Package service holds the booking core: authenticated, ownership-checked
// mutations and the read paths that feed the date selector.  Identity and
// storage come in through the interfaces below so the core has no
// compile-time dependency on MySQL, Redis or a broker.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/cabin-reservation/internal/model"
	"github.com/iliyamo/cabin-reservation/internal/queue"
)

// SessionProvider answers "who is the current guest, if any?".
type SessionProvider interface {
	CurrentSession(ctx context.Context) (model.Session, bool)
}

// BookingStore is the relational booking table.
type BookingStore interface {
	// InsertBooking writes b after guard accepted the cabin's booked days,
	// both inside one per-cabin critical section.
	InsertBooking(ctx context.Context, b *model.Booking, guard func(booked []time.Time) error) error
	UpdateBooking(ctx context.Context, id uint64, patch model.BookingPatch) (*model.Booking, error)
	// DeleteBooking only removes rows still owned by guestID and unconfirmed.
	DeleteBooking(ctx context.Context, id, guestID uint64) error
	BookingsByGuest(ctx context.Context, guestID uint64) ([]model.Booking, error)
	BookedDatesByCabin(ctx context.Context, cabinID uint64, today time.Time) ([]time.Time, error)
	ReservationsByGuest(ctx context.Context, guestID uint64) ([]model.ReservationView, error)
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id uint64, from, to model.BookingStatus) error
}

// CabinStore reads cabins and the global booking settings.
type CabinStore interface {
	List(ctx context.Context) ([]model.Cabin, error)
	GetByID(ctx context.Context, id uint64) (*model.Cabin, error)
	Settings(ctx context.Context) (model.BookingSettings, error)
}

// GuestStore reads and edits guest profiles.
type GuestStore interface {
	GetByID(ctx context.Context, id uint64) (model.Guest, error)
	UpdateProfile(ctx context.Context, id uint64, p model.GuestProfile) error
}

// ViewInvalidator drops cached views by tag.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}

// EventPublisher announces committed mutations.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// Result is what a successful mutation hands back to the presentation
// layer: the affected booking and where to send the caller next.
type Result struct {
	Booking    *model.Booking `json:"booking,omitempty"`
	RedirectTo string         `json:"redirect_to"`
}

const (
	RedirectThankYou     = "/cabins/thankyou"
	RedirectReservations = "/account/reservations"
	RedirectAccount      = "/account"
	RedirectHome         = "/"
)

// base carries what every service needs: a logger, a per-call store timeout
// and the clock that decides "today".
type base struct {
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

func newBase(log *slog.Logger, timeout time.Duration, now func() time.Time) base {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return base{log: log, timeout: timeout, now: now}
}

func (b base) today() time.Time { return model.Day(b.now()) }

func (b base) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// sideEffectCtx outlives the request so post-commit work is not cut short by
// a client that already went away.
func (b base) sideEffectCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
}
