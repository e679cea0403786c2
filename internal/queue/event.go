// Package queue publishes booking events to a message broker and consumes
// them into the audit log.
package queue

import (
	"context"
	"strconv"
	"time"

	"github.com/iliyamo/cabin-reservation/internal/model"
)

const (
	EventBookingCreated       = "booking.created"
	EventBookingUpdated       = "booking.updated"
	EventBookingDeleted       = "booking.deleted"
	EventBookingStatusChanged = "booking.status_changed"
)

// BookingEvent is published after a booking mutation commits.  It carries
// enough for consumers to log or notify without reading the database.
type BookingEvent struct {
	Type       string  `json:"type"`
	BookingID  uint64  `json:"booking_id"`
	GuestID    uint64  `json:"guest_id"`
	CabinID    uint64  `json:"cabin_id"`
	StartDate  string  `json:"start_date,omitempty"`
	EndDate    string  `json:"end_date,omitempty"`
	NumGuests  int     `json:"num_guests,omitempty"`
	TotalPrice float64 `json:"total_price"`
	Status     string  `json:"status,omitempty"`
	OccurredAt string  `json:"occurred_at"`
}

// NewBookingEvent builds an event of type typ from b.
func NewBookingEvent(typ string, b model.Booking, at time.Time) BookingEvent {
	ev := BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		GuestID:    b.GuestID,
		CabinID:    b.CabinID,
		NumGuests:  b.NumGuests,
		TotalPrice: b.TotalPrice,
		Status:     string(b.Status),
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
	if !b.StartDate.IsZero() {
		ev.StartDate = b.StartDate.Format(model.DateLayout)
	}
	if !b.EndDate.IsZero() {
		ev.EndDate = b.EndDate.Format(model.DateLayout)
	}
	return ev
}

// Key partitions events so that all events of one booking stay ordered.
func (e BookingEvent) Key() string { return strconv.FormatUint(e.BookingID, 10) }

// Publisher sends booking events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
	Close() error
}

// Noop drops every event.  Used when EVENT_BROKER=none.
type Noop struct{}

func (Noop) Publish(context.Context, BookingEvent) error { return nil }
func (Noop) Close() error                                { return nil }
