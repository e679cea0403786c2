package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusUnconfirmed BookingStatus = "unconfirmed"
	StatusConfirmed   BookingStatus = "confirmed"
	StatusCheckedIn   BookingStatus = "checked-in"
	StatusCheckedOut  BookingStatus = "checked-out"
)

// next holds the single forward transition allowed from each status.
var next = map[BookingStatus]BookingStatus{
	StatusUnconfirmed: StatusConfirmed,
	StatusConfirmed:   StatusCheckedIn,
	StatusCheckedIn:   StatusCheckedOut,
}

// Valid reports whether s is one of the four known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusUnconfirmed, StatusConfirmed, StatusCheckedIn, StatusCheckedOut:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to to follows the lifecycle
// unconfirmed → confirmed → checked-in → checked-out.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	n, ok := next[s]
	return ok && n == to
}

// Deletable reports whether a booking in this status may be removed by its
// guest.  Only unconfirmed bookings can be cancelled.
func (s BookingStatus) Deletable() bool { return s == StatusUnconfirmed }

// Booking mirrors a row of the `bookings` table.  The JSON names are the
// storage contract shared with the presentation layer and must not change.
type Booking struct {
	ID           uint64        `json:"id"`           // bookings.id
	CreatedAt    time.Time     `json:"created_at"`   // bookings.created_at
	CabinID      uint64        `json:"cabinId"`      // bookings.cabin_id
	GuestID      uint64        `json:"guestId"`      // bookings.guest_id
	StartDate    time.Time     `json:"startDate"`    // bookings.start_date
	EndDate      time.Time     `json:"endDate"`      // bookings.end_date
	NumNights    int           `json:"numNights"`    // bookings.num_nights
	NumGuests    int           `json:"numGuests"`    // bookings.num_guests
	CabinPrice   float64       `json:"cabinPrice"`   // bookings.cabin_price
	ExtrasPrice  float64       `json:"extrasPrice"`  // bookings.extras_price
	TotalPrice   float64       `json:"totalPrice"`   // bookings.total_price
	Status       BookingStatus `json:"status"`       // bookings.status
	HasBreakfast bool          `json:"hasBreakfast"` // bookings.has_breakfast
	IsPaid       bool          `json:"isPaid"`       // bookings.is_paid
	Observations string        `json:"observations"` // bookings.observations
}

// Range returns the stay as a DateRange.
func (b Booking) Range() DateRange { return NewDateRange(b.StartDate, b.EndDate) }

// BookingPatch is the only set of columns a guest may change on an existing
// booking.  Price, dates and status stay untouched on this path.
type BookingPatch struct {
	NumGuests    int
	Observations string
}

// ReservationView is a booking joined with the cabin it belongs to, as
// listed on the guest's reservations page.
type ReservationView struct {
	Booking
	CabinName  string `json:"cabinName"`
	CabinImage string `json:"cabinImage"`
}
