// Package availability decides whether a date range can be booked for a
// cabin given the days already reserved, and derives the range that is safe
// to show and price.  Everything here is pure: callers pass in the booked
// days and "today".
package availability

import (
	"sort"
	"time"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
	"github.com/iliyamo/cabin-reservation/internal/model"
)

// IsBookable reports whether both ends of r are set and no booked day falls
// inside [From, To].  Both ends are inclusive, so a stay that ends on the
// day another begins is a conflict.
func IsBookable(r model.DateRange, booked []time.Time) bool {
	if !r.IsComplete() {
		return false
	}
	from, to := model.Day(*r.From), model.Day(*r.To)
	for _, d := range booked {
		d = model.Day(d)
		if !d.Before(from) && !d.After(to) {
			return false
		}
	}
	return true
}

// DeriveDisplayRange returns r when it is bookable and the empty range
// otherwise, so a conflicting selection is never rendered or priced.
func DeriveDisplayRange(r model.DateRange, booked []time.Time) model.DateRange {
	if IsBookable(r, booked) {
		return r
	}
	return model.EmptyRange()
}

// IsDisabled is the calendar predicate: a day cannot be picked when it is
// strictly before today or already booked.
func IsDisabled(day, today time.Time, booked []time.Time) bool {
	day = model.Day(day)
	if day.Before(model.Day(today)) {
		return true
	}
	for _, d := range booked {
		if model.Day(d).Equal(day) {
			return true
		}
	}
	return false
}

// ExpandBookedDates turns bookings into the sorted, de-duplicated list of
// days they occupy, start and end days included.
func ExpandBookedDates(bookings []model.Booking) []time.Time {
	days := make([]time.Time, 0)
	for _, b := range bookings {
		start, end := model.Day(b.StartDate), model.Day(b.EndDate)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			days = append(days, d)
		}
	}
	return Normalize(days)
}

// Normalize truncates days to UTC midnight, sorts them and drops
// duplicates.
func Normalize(days []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(days))
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		d = model.Day(d)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Nights is the whole-day difference between the ends of a complete range.
func Nights(r model.DateRange) int {
	if !r.IsComplete() {
		return 0
	}
	return int(model.Day(*r.To).Sub(model.Day(*r.From)).Hours() / 24)
}

// Validate re-checks a client-chosen range before it is written.  It never
// trusts the calendar widget: the range must be complete and ordered, start
// on a selectable day, avoid every booked day and respect the stay length
// limits in settings.
func Validate(r model.DateRange, booked []time.Time, today time.Time, settings model.BookingSettings) error {
	if !r.IsComplete() {
		return invalidRange("Please select both a start and an end date", "incomplete")
	}
	if !r.IsOrdered() {
		return invalidRange("End date must not be before start date", "unordered")
	}
	if IsDisabled(*r.From, today, booked) {
		return invalidRange("The selected start date is not available", "start_unavailable")
	}
	if !IsBookable(r, booked) {
		return invalidRange("The selected dates overlap an existing booking", "overlap")
	}
	nights := Nights(r)
	if nights == 0 {
		return invalidRange("A stay must be at least one night", "zero_nights")
	}
	if nights < settings.MinBookingLength {
		return invalidRange("The stay is shorter than the minimum booking length", "too_short")
	}
	if settings.MaxBookingLength > 0 && nights > settings.MaxBookingLength {
		return invalidRange("The stay is longer than the maximum booking length", "too_long")
	}
	return nil
}

func invalidRange(msg, rule string) error {
	return apperror.Validation(msg, map[string]any{"field": "range", "rule": rule})
}
