package model

import "time"

// Guest represents a row of the `guests` table.  The password hash is only
// read by the sign-in path and never serialised.
//
// Fields:
//  ID           – primary key identifier.
//  FullName     – display name.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hash.
//  NationalID   – identity document number, 6 to 12 alphanumerics.
//  Nationality  – country name.
//  CountryFlag  – flag image URL for the nationality.
//  Role         – GUEST or STAFF.
type Guest struct {
	ID           uint64    `json:"id"`          // guests.id
	FullName     string    `json:"fullName"`    // guests.full_name
	Email        string    `json:"email"`       // guests.email
	PasswordHash string    `json:"-"`           // guests.password_hash
	NationalID   string    `json:"nationalID"`  // guests.national_id
	Nationality  string    `json:"nationality"` // guests.nationality
	CountryFlag  string    `json:"countryFlag"` // guests.country_flag
	Role         string    `json:"role"`        // guests.role
	CreatedAt    time.Time `json:"created_at"`  // guests.created_at
}

const (
	RoleGuest = "GUEST"
	RoleStaff = "STAFF"
)

// GuestProfile is the editable part of a guest record.
type GuestProfile struct {
	NationalID  string
	Nationality string
	CountryFlag string
}

// Session identifies the guest behind a request.  Its absence means the
// caller is anonymous.
type Session struct {
	GuestID uint64
	Role    string
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	GuestID   uint64     // refresh_tokens.guest_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
