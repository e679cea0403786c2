// Package pricing turns a validated stay into a night count and a price.
package pricing

import (
	"github.com/iliyamo/cabin-reservation/internal/availability"
	"github.com/iliyamo/cabin-reservation/internal/model"
)

// ComputeNights returns the whole days between the ends of r, or 0 when r
// is not a complete range.
func ComputeNights(r model.DateRange) int {
	return availability.Nights(r)
}

// ComputePrice returns nights * (regularPrice - discount).
func ComputePrice(nights int, terms model.CabinTerms) float64 {
	return float64(nights) * terms.NightlyRate()
}

// Quote is the priced view of a selection.  Priced is false when there are
// no nights to charge for; callers must hide the price and block submission
// in that case instead of showing a zero total.
type Quote struct {
	NumNights  int     `json:"numNights"`
	CabinPrice float64 `json:"cabinPrice"`
	Priced     bool    `json:"priced"`
}

// QuoteRange prices r under terms.
func QuoteRange(r model.DateRange, terms model.CabinTerms) Quote {
	nights := ComputeNights(r)
	if nights <= 0 {
		return Quote{}
	}
	return Quote{
		NumNights:  nights,
		CabinPrice: ComputePrice(nights, terms),
		Priced:     true,
	}
}
