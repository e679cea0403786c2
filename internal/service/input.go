package service

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
)

// MaxObservationsLength bounds the free-text observations, in characters.
const MaxObservationsLength = 1000

var nationalIDRegex = regexp.MustCompile(`^[a-zA-Z0-9]{6,12}$`)

// GuestInput is the guest-editable part of a booking form.  NumGuests stays
// a string so a non-numeric value is reported as a validation failure
// rather than a bind error.
type GuestInput struct {
	NumGuests    string `form:"numGuests" json:"numGuests" validate:"required"`
	Observations string `form:"observations" json:"observations"`
}

// BookingData is the stay a guest submits: which cabin, which days and the
// price the page showed.
type BookingData struct {
	CabinID    uint64  `form:"cabinId" json:"cabinId" validate:"required,gt=0"`
	StartDate  string  `form:"startDate" json:"startDate" validate:"required"`
	EndDate    string  `form:"endDate" json:"endDate" validate:"required"`
	CabinPrice float64 `form:"cabinPrice" json:"cabinPrice" validate:"gte=0"`
}

// ProfileInput carries the profile fields.  Nationality arrives as
// "<country>%<flag url>".
type ProfileInput struct {
	NationalID  string `form:"nationalID" json:"nationalID" validate:"required,national_id"`
	Nationality string `form:"nationality" json:"nationality" validate:"required"`
}

// NewValidator returns a validator with the national_id rule registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// registration only fails for an empty tag or nil func
	_ = v.RegisterValidation("national_id", func(fl validator.FieldLevel) bool {
		return nationalIDRegex.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct maps validator failures to a ValidationError whose details
// name each failing field and rule.
func validateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation("Invalid input", nil)
	}
	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[lowerFirst(fe.Field())] = fe.Tag()
	}
	return apperror.Validation("Invalid input", map[string]any{"fields": fields})
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// ParseNumGuests accepts a positive base-10 integer.
func ParseNumGuests(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, apperror.Validation("Number of guests must be a positive whole number",
			map[string]any{"field": "numGuests"})
	}
	return n, nil
}

// TruncateObservations cuts s to MaxObservationsLength characters.
func TruncateObservations(s string) string {
	if utf8.RuneCountInString(s) <= MaxObservationsLength {
		return s
	}
	return string([]rune(s)[:MaxObservationsLength])
}

// SplitNationality splits "<country>%<flag url>".  A value without the
// separator is a country with no flag.
func SplitNationality(raw string) (country, flag string) {
	country, flag, _ = strings.Cut(raw, "%")
	return strings.TrimSpace(country), strings.TrimSpace(flag)
}
