package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// DateRange is an inclusive span of calendar days.  Either both ends are nil
// (nothing selected yet) or both are set with From <= To.  A half-open range
// (one end set) only exists transiently while a viewer is picking dates.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDateRange builds a complete range with both ends normalised to days.
func NewDateRange(from, to time.Time) DateRange {
	f, t := Day(from), Day(to)
	return DateRange{From: &f, To: &t}
}

// EmptyRange returns the "no selection" range.
func EmptyRange() DateRange { return DateRange{} }

// IsEmpty reports whether neither end is set.
func (r DateRange) IsEmpty() bool { return r.From == nil && r.To == nil }

// IsComplete reports whether both ends are set.
func (r DateRange) IsComplete() bool { return r.From != nil && r.To != nil }

// IsOrdered reports whether a complete range has From <= To.  Incomplete
// ranges are trivially ordered.
func (r DateRange) IsOrdered() bool {
	if !r.IsComplete() {
		return true
	}
	return !Day(*r.To).Before(Day(*r.From))
}

// Normalize returns a copy with both ends truncated to days.
func (r DateRange) Normalize() DateRange {
	var out DateRange
	if r.From != nil {
		f := Day(*r.From)
		out.From = &f
	}
	if r.To != nil {
		t := Day(*r.To)
		out.To = &t
	}
	return out
}

// Equal compares two ranges day by day.
func (r DateRange) Equal(o DateRange) bool {
	return sameDayPtr(r.From, o.From) && sameDayPtr(r.To, o.To)
}

func sameDayPtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Day(*a).Equal(Day(*b))
}

type dateRangeJSON struct {
	From *string `json:"from"`
	To   *string `json:"to"`
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	var out dateRangeJSON
	if r.From != nil {
		s := Day(*r.From).Format(DateLayout)
		out.From = &s
	}
	if r.To != nil {
		s := Day(*r.To).Format(DateLayout)
		out.To = &s
	}
	return json.Marshal(out)
}

func (r *DateRange) UnmarshalJSON(b []byte) error {
	var in dateRangeJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = DateRange{}
	if in.From != nil && strings.TrimSpace(*in.From) != "" {
		t, err := ParseDate(*in.From)
		if err != nil {
			return fmt.Errorf("from: %w", err)
		}
		r.From = &t
	}
	if in.To != nil && strings.TrimSpace(*in.To) != "" {
		t, err := ParseDate(*in.To)
		if err != nil {
			return fmt.Errorf("to: %w", err)
		}
		r.To = &t
	}
	return nil
}

// ParseDate accepts either a bare calendar day or an RFC3339 timestamp.  A
// timestamp keeps the calendar day of its own offset, so local midnight
// from a date picker stays on the picked day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
