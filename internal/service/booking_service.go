package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
	"github.com/iliyamo/cabin-reservation/internal/availability"
	"github.com/iliyamo/cabin-reservation/internal/cache"
	"github.com/iliyamo/cabin-reservation/internal/model"
	"github.com/iliyamo/cabin-reservation/internal/pricing"
	"github.com/iliyamo/cabin-reservation/internal/queue"
	"github.com/iliyamo/cabin-reservation/internal/repository"
	"github.com/iliyamo/cabin-reservation/internal/selection"
)

// priceTolerance absorbs float formatting of the price the page displayed.
const priceTolerance = 0.005

// BookingDeps wires a BookingService.  Views, Events and Selections may be
// nil; the matching post-commit step is then skipped.
type BookingDeps struct {
	Sessions   SessionProvider
	Bookings   BookingStore
	Cabins     CabinStore
	Selections selection.Store
	Views      ViewInvalidator
	Events     EventPublisher
	Validate   *validator.Validate
	Log        *slog.Logger
	Timeout    time.Duration
	Now        func() time.Time
}

// BookingService is the sole writer of bookings.
type BookingService struct {
	base
	sessions   SessionProvider
	bookings   BookingStore
	cabins     CabinStore
	selections selection.Store
	views      ViewInvalidator
	events     EventPublisher
	validate   *validator.Validate
}

func NewBookingService(d BookingDeps) *BookingService {
	v := d.Validate
	if v == nil {
		v = NewValidator()
	}
	return &BookingService{
		base:       newBase(d.Log, d.Timeout, d.Now),
		sessions:   d.Sessions,
		bookings:   d.Bookings,
		cabins:     d.Cabins,
		selections: d.Selections,
		views:      d.Views,
		events:     d.Events,
		validate:   v,
	}
}

func (s *BookingService) requireSession(ctx context.Context) (model.Session, error) {
	sess, ok := s.sessions.CurrentSession(ctx)
	if !ok {
		return model.Session{}, apperror.Unauthenticated("You must be logged in")
	}
	return sess, nil
}

// CreateBooking prices and inserts a new unconfirmed booking for the
// current guest.  The range is re-validated against the cabin's booked
// days inside the insert's critical section, and the price is re-derived
// from the cabin's terms.
func (s *BookingService) CreateBooking(ctx context.Context, data BookingData, in GuestInput) (*Result, error) {
	sess, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(s.validate, data); err != nil {
		return nil, err
	}
	numGuests, err := ParseNumGuests(in.NumGuests)
	if err != nil {
		return nil, err
	}
	start, err := model.ParseDate(data.StartDate)
	if err != nil {
		return nil, apperror.Validation("Invalid start date", map[string]any{"field": "startDate"})
	}
	end, err := model.ParseDate(data.EndDate)
	if err != nil {
		return nil, apperror.Validation("Invalid end date", map[string]any{"field": "endDate"})
	}
	stay := model.NewDateRange(start, end)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	cabin, err := s.cabins.GetByID(sctx, data.CabinID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("cabin")
	}
	if err != nil {
		return nil, s.persistence("Booking could not be created", err)
	}
	settings, err := s.cabins.Settings(sctx)
	if err != nil {
		return nil, s.persistence("Booking could not be created", err)
	}
	if err := checkGuestCount(numGuests, cabin, settings); err != nil {
		return nil, err
	}

	quote := pricing.QuoteRange(stay, cabin.Terms())
	if !stay.IsOrdered() || !quote.Priced {
		// nights <= 0; Validate names the exact rule
		return nil, availability.Validate(stay, nil, s.today(), settings)
	}
	if data.CabinPrice != 0 && math.Abs(data.CabinPrice-quote.CabinPrice) > priceTolerance {
		return nil, apperror.Validation("The price has changed, please review your booking",
			map[string]any{"field": "cabinPrice", "expected": quote.CabinPrice})
	}

	b := &model.Booking{
		CabinID:      cabin.ID,
		GuestID:      sess.GuestID,
		StartDate:    *stay.From,
		EndDate:      *stay.To,
		NumNights:    quote.NumNights,
		NumGuests:    numGuests,
		CabinPrice:   quote.CabinPrice,
		ExtrasPrice:  0,
		TotalPrice:   quote.CabinPrice,
		Status:       model.StatusUnconfirmed,
		HasBreakfast: false,
		IsPaid:       false,
		Observations: TruncateObservations(in.Observations),
	}
	today := s.today()
	guard := func(booked []time.Time) error {
		return availability.Validate(stay, booked, today, settings)
	}
	if err := s.bookings.InsertBooking(sctx, b, guard); err != nil {
		if appErr, ok := apperror.As(err); ok {
			return nil, appErr
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("cabin")
		}
		return nil, s.persistence("Booking could not be created", err)
	}

	s.log.Info("booking created", "booking_id", b.ID, "cabin_id", b.CabinID, "guest_id", b.GuestID,
		"nights", b.NumNights, "total_price", b.TotalPrice)

	s.afterCommit(ctx, queue.EventBookingCreated, *b,
		cache.CabinTag(b.CabinID), cache.ReservationsTag(b.GuestID))
	s.resetSelection(ctx, b.CabinID)
	return &Result{Booking: b, RedirectTo: RedirectThankYou}, nil
}

func checkGuestCount(n int, cabin *model.Cabin, settings model.BookingSettings) error {
	if settings.MaxGuestsPerBooking > 0 && n > settings.MaxGuestsPerBooking {
		return apperror.Validation(
			fmt.Sprintf("At most %d guests are allowed per booking", settings.MaxGuestsPerBooking),
			map[string]any{"field": "numGuests", "max": settings.MaxGuestsPerBooking})
	}
	if cabin.MaxCapacity > 0 && n > cabin.MaxCapacity {
		return apperror.Validation(
			fmt.Sprintf("This cabin sleeps at most %d guests", cabin.MaxCapacity),
			map[string]any{"field": "numGuests", "max": cabin.MaxCapacity})
	}
	return nil
}

// ownedBooking re-reads the guest's bookings and returns the one with id.
// Anything not in that set, including ids that no longer exist, is
// Forbidden.
func (s *BookingService) ownedBooking(ctx context.Context, sess model.Session, id uint64, action string) (*model.Booking, error) {
	owned, err := s.bookings.BookingsByGuest(ctx, sess.GuestID)
	if err != nil {
		return nil, s.persistence("Could not load your bookings", err)
	}
	for i := range owned {
		if owned[i].ID == id {
			return &owned[i], nil
		}
	}
	s.log.Warn("booking ownership check failed", "action", action, "booking_id", id, "guest_id", sess.GuestID)
	return nil, apperror.Forbidden(fmt.Sprintf("You are not allowed to %s this booking", action))
}

// UpdateBooking changes the guest count and observations of an owned
// booking.  Price, dates and status cannot change on this path.
func (s *BookingService) UpdateBooking(ctx context.Context, bookingID uint64, in GuestInput) (*Result, error) {
	sess, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	current, err := s.ownedBooking(sctx, sess, bookingID, "update")
	if err != nil {
		return nil, err
	}
	numGuests, err := ParseNumGuests(in.NumGuests)
	if err != nil {
		return nil, err
	}
	cabin, err := s.cabins.GetByID(sctx, current.CabinID)
	if err != nil {
		return nil, s.persistence("Booking could not be updated", err)
	}
	settings, err := s.cabins.Settings(sctx)
	if err != nil {
		return nil, s.persistence("Booking could not be updated", err)
	}
	if err := checkGuestCount(numGuests, cabin, settings); err != nil {
		return nil, err
	}

	patch := model.BookingPatch{NumGuests: numGuests, Observations: TruncateObservations(in.Observations)}
	updated, err := s.bookings.UpdateBooking(sctx, bookingID, patch)
	if err != nil {
		return nil, s.persistence("Booking could not be updated", err)
	}

	s.log.Info("booking updated", "booking_id", bookingID, "guest_id", sess.GuestID, "num_guests", numGuests)
	s.afterCommit(ctx, queue.EventBookingUpdated, *updated,
		cache.ReservationTag(bookingID), cache.ReservationsTag(sess.GuestID))
	return &Result{Booking: updated, RedirectTo: RedirectReservations}, nil
}

// DeleteBooking cancels an owned, still unconfirmed booking.  Deleting the
// same id twice is Forbidden the second time since it is no longer owned.
func (s *BookingService) DeleteBooking(ctx context.Context, bookingID uint64) (*Result, error) {
	sess, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	current, err := s.ownedBooking(sctx, sess, bookingID, "delete")
	if err != nil {
		return nil, err
	}
	if !current.Status.Deletable() {
		s.log.Warn("delete of non-cancellable booking", "booking_id", bookingID, "status", current.Status)
		return nil, apperror.Forbidden("Only unconfirmed bookings can be cancelled")
	}
	if err := s.bookings.DeleteBooking(sctx, bookingID, sess.GuestID); err != nil {
		// the row changed hands or status after ownedBooking read it
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("booking changed before delete", "booking_id", bookingID, "guest_id", sess.GuestID)
			return nil, apperror.Forbidden("Only unconfirmed bookings can be cancelled")
		}
		return nil, s.persistence("Booking could not be deleted", err)
	}

	s.log.Info("booking deleted", "booking_id", bookingID, "guest_id", sess.GuestID, "cabin_id", current.CabinID)
	s.afterCommit(ctx, queue.EventBookingDeleted, *current,
		cache.ReservationsTag(sess.GuestID), cache.ReservationTag(bookingID), cache.CabinTag(current.CabinID))
	return &Result{RedirectTo: RedirectReservations}, nil
}

// AdvanceStatus moves a booking one step along its lifecycle.  Staff only.
func (s *BookingService) AdvanceStatus(ctx context.Context, bookingID uint64, to model.BookingStatus) (*Result, error) {
	sess, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess.Role != model.RoleStaff {
		return nil, apperror.Forbidden("Staff only")
	}
	if !to.Valid() {
		return nil, apperror.Validation("Unknown status", map[string]any{"field": "status"})
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	b, err := s.bookings.GetByID(sctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("booking")
	}
	if err != nil {
		return nil, s.persistence("Booking could not be loaded", err)
	}
	if !b.Status.CanTransition(to) {
		return nil, apperror.Validation(
			fmt.Sprintf("Cannot move a booking from %s to %s", b.Status, to),
			map[string]any{"field": "status", "from": string(b.Status)})
	}
	if err := s.bookings.UpdateStatus(sctx, bookingID, b.Status, to); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperror.Validation("The booking changed meanwhile, reload and retry",
				map[string]any{"field": "status"})
		}
		return nil, s.persistence("Booking status could not be updated", err)
	}
	from := b.Status
	b.Status = to

	s.log.Info("booking status changed", "booking_id", bookingID, "from", from, "to", to, "staff_id", sess.GuestID)
	s.afterCommit(ctx, queue.EventBookingStatusChanged, *b,
		cache.ReservationTag(bookingID), cache.ReservationsTag(b.GuestID), cache.CabinTag(b.CabinID))
	return &Result{Booking: b}, nil
}

// Reservations lists the current guest's bookings with their cabins.
func (s *BookingService) Reservations(ctx context.Context) ([]model.ReservationView, error) {
	sess, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	out, err := s.bookings.ReservationsByGuest(sctx, sess.GuestID)
	if err != nil {
		return nil, s.persistence("Could not load your reservations", err)
	}
	return out, nil
}

// Reservation returns one owned booking for the edit view.
func (s *BookingService) Reservation(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	sess, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.ownedBooking(sctx, sess, bookingID, "view")
}

// afterCommit drops cached views and publishes the event.  The mutation is
// already committed, so failures are logged and never returned.
func (s *BookingService) afterCommit(ctx context.Context, eventType string, b model.Booking, tags ...string) {
	ctx, cancel := s.sideEffectCtx(ctx)
	defer cancel()
	if s.views != nil {
		if err := s.views.Invalidate(ctx, tags...); err != nil {
			s.log.Warn("cache invalidation failed", "booking_id", b.ID, "tags", tags, "error", err)
		}
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, queue.NewBookingEvent(eventType, b, s.now())); err != nil {
			s.log.Warn("event publish failed", "type", eventType, "booking_id", b.ID, "error", err)
		}
	}
}

func (s *BookingService) resetSelection(ctx context.Context, cabinID uint64) {
	if s.selections == nil {
		return
	}
	viewer, ok := selection.ViewerFromContext(ctx)
	if !ok {
		return
	}
	ctx, cancel := s.sideEffectCtx(ctx)
	defer cancel()
	if err := s.selections.Reset(ctx, viewer, cabinID); err != nil {
		s.log.Warn("selection reset failed", "cabin_id", cabinID, "error", err)
	}
}

func (s *BookingService) persistence(msg string, err error) error {
	s.log.Error(msg, "error", err)
	return apperror.Persistence(msg, err)
}
