package model

// Cabin represents a rentable cabin as stored in the `cabins` table.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name (e.g. "001").
//  MaxCapacity  – upper bound on guests per stay.
//  RegularPrice – nightly rate before discount.
//  Discount     – flat amount taken off the nightly rate.
//  Description  – free text shown on the cabin page.
//  ImageURL     – cover image.
type Cabin struct {
	ID           uint64  `json:"id"`           // cabins.id
	Name         string  `json:"name"`         // cabins.name
	MaxCapacity  int     `json:"maxCapacity"`  // cabins.max_capacity
	RegularPrice float64 `json:"regularPrice"` // cabins.regular_price
	Discount     float64 `json:"discount"`     // cabins.discount
	Description  string  `json:"description"`  // cabins.description
	ImageURL     string  `json:"image"`        // cabins.image
}

// Terms returns the pricing terms of the cabin.
func (c Cabin) Terms() CabinTerms {
	return CabinTerms{RegularPrice: c.RegularPrice, Discount: c.Discount}
}

// CabinTerms are the pricing inputs of a cabin.  They are read once at the
// start of a booking flow and never change during it.
type CabinTerms struct {
	RegularPrice float64 `json:"regularPrice"`
	Discount     float64 `json:"discount"`
}

// Valid reports whether RegularPrice >= 0 and 0 <= Discount <= RegularPrice.
func (t CabinTerms) Valid() bool {
	return t.RegularPrice >= 0 && t.Discount >= 0 && t.Discount <= t.RegularPrice
}

// NightlyRate is the discounted price of one night.
func (t CabinTerms) NightlyRate() float64 { return t.RegularPrice - t.Discount }

// BookingSettings are the global stay constraints kept in the single row of
// the `settings` table.
type BookingSettings struct {
	MinBookingLength    int     `json:"minBookingLength"`    // settings.min_booking_length
	MaxBookingLength    int     `json:"maxBookingLength"`    // settings.max_booking_length
	MaxGuestsPerBooking int     `json:"maxGuestsPerBooking"` // settings.max_guests_per_booking
	BreakfastPrice      float64 `json:"breakfastPrice"`      // settings.breakfast_price
}

// Valid reports whether 0 <= MinBookingLength <= MaxBookingLength.
func (s BookingSettings) Valid() bool {
	return s.MinBookingLength >= 0 && s.MaxBookingLength >= s.MinBookingLength
}
