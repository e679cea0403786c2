package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cabin-reservation/internal/model"
)

// CabinRepo reads cabins and the global booking settings.  Both are managed
// outside this service, so the repository is read-only.
type CabinRepo struct {
	db *sql.DB
}

// NewCabinRepo returns a new CabinRepo bound to the given database.
func NewCabinRepo(db *sql.DB) *CabinRepo { return &CabinRepo{db: db} }

const cabinColumns = "id, name, max_capacity, regular_price, discount, description, image"

func scanCabin(s rowScanner) (model.Cabin, error) {
	var c model.Cabin
	err := s.Scan(&c.ID, &c.Name, &c.MaxCapacity, &c.RegularPrice, &c.Discount, &c.Description, &c.ImageURL)
	return c, err
}

// List returns all cabins ordered by name.
func (r *CabinRepo) List(ctx context.Context) ([]model.Cabin, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+cabinColumns+" FROM cabins ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Cabin, 0)
	for rows.Next() {
		c, err := scanCabin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetByID fetches a single cabin.
func (r *CabinRepo) GetByID(ctx context.Context, id uint64) (*model.Cabin, error) {
	c, err := scanCabin(r.db.QueryRowContext(ctx, "SELECT "+cabinColumns+" FROM cabins WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Settings reads the single settings row.
func (r *CabinRepo) Settings(ctx context.Context) (model.BookingSettings, error) {
	var s model.BookingSettings
	err := r.db.QueryRowContext(ctx,
		`SELECT min_booking_length, max_booking_length, max_guests_per_booking, breakfast_price
		FROM settings WHERE id = 1`).
		Scan(&s.MinBookingLength, &s.MaxBookingLength, &s.MaxGuestsPerBooking, &s.BreakfastPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}
