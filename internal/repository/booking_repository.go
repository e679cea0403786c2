package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cabin-reservation/internal/availability"
	"github.com/iliyamo/cabin-reservation/internal/model"
)

// BookingRepo provides the booking table operations used by the mutation
// service.  All dates are stored as DATE columns in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, created_at, cabin_id, guest_id, start_date, end_date, num_nights, num_guests,
	cabin_price, extras_price, total_price, status, has_breakfast, is_paid, observations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var b model.Booking
	var status string
	err := s.Scan(
		&b.ID, &b.CreatedAt, &b.CabinID, &b.GuestID, &b.StartDate, &b.EndDate, &b.NumNights, &b.NumGuests,
		&b.CabinPrice, &b.ExtrasPrice, &b.TotalPrice, &status, &b.HasBreakfast, &b.IsPaid, &b.Observations,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.StartDate = model.Day(b.StartDate)
	b.EndDate = model.Day(b.EndDate)
	return b, nil
}

// InsertBooking writes b while holding a row lock on its cabin.  Inside the
// same transaction it reads the days already booked around b's range and
// hands them to guard; a guard error aborts the insert and is returned
// unchanged.  Concurrent inserts for one cabin are therefore serialised and
// each sees the rows committed before it.  On success b.ID and b.CreatedAt
// are populated.
func (r *BookingRepo) InsertBooking(ctx context.Context, b *model.Booking, guard func(booked []time.Time) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM cabins WHERE id = ? FOR UPDATE`, b.CabinID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	booked, err := r.bookedDaysTx(ctx, tx, b.CabinID, b.StartDate, b.EndDate)
	if err != nil {
		return err
	}
	if guard != nil {
		if err := guard(booked); err != nil {
			return err
		}
	}

	b.CreatedAt = time.Now().UTC().Truncate(time.Second)
	const q = `INSERT INTO bookings (created_at, cabin_id, guest_id, start_date, end_date, num_nights, num_guests,
		cabin_price, extras_price, total_price, status, has_breakfast, is_paid, observations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.CreatedAt, b.CabinID, b.GuestID,
		b.StartDate.Format(model.DateLayout), b.EndDate.Format(model.DateLayout),
		b.NumNights, b.NumGuests, b.CabinPrice, b.ExtrasPrice, b.TotalPrice,
		string(b.Status), b.HasBreakfast, b.IsPaid, b.Observations,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	b.ID = uint64(id)
	return nil
}

// bookedDaysTx expands the bookings of a cabin that touch [from, to] into
// individual days.
func (r *BookingRepo) bookedDaysTx(ctx context.Context, tx *sql.Tx, cabinID uint64, from, to time.Time) ([]time.Time, error) {
	const q = `SELECT start_date, end_date FROM bookings
		WHERE cabin_id = ? AND end_date >= ? AND start_date <= ?`
	rows, err := tx.QueryContext(ctx, q, cabinID, from.Format(model.DateLayout), to.Format(model.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return expandRows(rows)
}

// BookedDatesByCabin returns every day reserved for a cabin from today on,
// plus the days of stays currently checked in.
func (r *BookingRepo) BookedDatesByCabin(ctx context.Context, cabinID uint64, today time.Time) ([]time.Time, error) {
	const q = `SELECT start_date, end_date FROM bookings
		WHERE cabin_id = ? AND (end_date >= ? OR status = 'checked-in')`
	rows, err := r.db.QueryContext(ctx, q, cabinID, model.Day(today).Format(model.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return expandRows(rows)
}

func expandRows(rows *sql.Rows) ([]time.Time, error) {
	var stays []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.StartDate, &b.EndDate); err != nil {
			return nil, err
		}
		stays = append(stays, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return availability.ExpandBookedDates(stays), nil
}

// BookingsByGuest returns all bookings owned by guestID, newest stay first.
func (r *BookingRepo) BookingsByGuest(ctx context.Context, guestID uint64) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE guest_id = ? ORDER BY start_date DESC`
	rows, err := r.db.QueryContext(ctx, q, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReservationsByGuest is BookingsByGuest joined with cabin name and image
// for the reservations page.
func (r *BookingRepo) ReservationsByGuest(ctx context.Context, guestID uint64) ([]model.ReservationView, error) {
	const q = `SELECT b.id, b.created_at, b.cabin_id, b.guest_id, b.start_date, b.end_date, b.num_nights,
		b.num_guests, b.cabin_price, b.extras_price, b.total_price, b.status, b.has_breakfast, b.is_paid,
		b.observations, c.name, c.image
		FROM bookings b JOIN cabins c ON c.id = b.cabin_id
		WHERE b.guest_id = ? ORDER BY b.start_date DESC`
	rows, err := r.db.QueryContext(ctx, q, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ReservationView, 0)
	for rows.Next() {
		var v model.ReservationView
		var status string
		if err := rows.Scan(
			&v.ID, &v.CreatedAt, &v.CabinID, &v.GuestID, &v.StartDate, &v.EndDate, &v.NumNights,
			&v.NumGuests, &v.CabinPrice, &v.ExtrasPrice, &v.TotalPrice, &status, &v.HasBreakfast, &v.IsPaid,
			&v.Observations, &v.CabinName, &v.CabinImage,
		); err != nil {
			return nil, err
		}
		v.Status = model.BookingStatus(status)
		v.StartDate = model.Day(v.StartDate)
		v.EndDate = model.Day(v.EndDate)
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetByID fetches one booking.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBooking changes the guest-editable columns of a booking and returns
// the updated row.  Nothing else on the row is touched.
func (r *BookingRepo) UpdateBooking(ctx context.Context, id uint64, patch model.BookingPatch) (*model.Booking, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET num_guests = ?, observations = ? WHERE id = ?`,
		patch.NumGuests, patch.Observations, id)
	if err != nil {
		return nil, err
	}
	// MySQL reports 0 affected rows when the values did not change, so a
	// missing row is detected by the read below instead.
	if _, err := res.RowsAffected(); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// DeleteBooking removes a booking owned by guestID that is still
// unconfirmed.  ErrConflict is returned when no row matched, which covers a
// foreign id, a vanished row and a status moved on since it was read.
func (r *BookingRepo) DeleteBooking(ctx context.Context, id, guestID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM bookings WHERE id = ? AND guest_id = ? AND status = ?`,
		id, guestID, string(model.StatusUnconfirmed))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// UpdateStatus moves a booking from one status to another.  The write only
// applies if the row is still in from; otherwise ErrConflict is returned.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.BookingStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
