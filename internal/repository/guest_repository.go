package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cabin-reservation/internal/model"
	"github.com/iliyamo/cabin-reservation/internal/utils"
)

// GuestRepo persists guest accounts.
type GuestRepo struct{ DB *sql.DB }

func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{DB: db} }

const guestColumns = "id,full_name,email,password_hash,national_id,nationality,country_flag,role,created_at"

// Create hashes the password, inserts the guest and returns its ID.
func (r *GuestRepo) Create(ctx context.Context, fullName, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO guests (full_name, email, password_hash, role) VALUES (?,?,?,?)",
		strings.TrimSpace(fullName), email, hash, role)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func scanGuest(s rowScanner) (model.Guest, error) {
	var g model.Guest
	err := s.Scan(&g.ID, &g.FullName, &g.Email, &g.PasswordHash, &g.NationalID,
		&g.Nationality, &g.CountryFlag, &g.Role, &g.CreatedAt)
	return g, err
}

// GetByEmail fetches a guest by normalized email.
func (r *GuestRepo) GetByEmail(ctx context.Context, email string) (model.Guest, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	g, err := scanGuest(r.DB.QueryRowContext(ctx,
		"SELECT "+guestColumns+" FROM guests WHERE email=? LIMIT 1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return g, ErrNotFound
	}
	return g, err
}

// GetByID fetches a guest by id.
func (r *GuestRepo) GetByID(ctx context.Context, id uint64) (model.Guest, error) {
	g, err := scanGuest(r.DB.QueryRowContext(ctx,
		"SELECT "+guestColumns+" FROM guests WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return g, ErrNotFound
	}
	return g, err
}

// UpdateProfile overwrites the editable profile columns of a guest.
func (r *GuestRepo) UpdateProfile(ctx context.Context, id uint64, p model.GuestProfile) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE guests SET national_id=?, nationality=?, country_flag=? WHERE id=?",
		p.NationalID, p.Nationality, p.CountryFlag, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// unchanged values also report 0 rows; confirm the guest exists
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
