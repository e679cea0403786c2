package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = host + ":" + port
	cfg.DBName = name
	// parseTime=true -> DATE/DATETIME -> time.Time | loc=UTC keeps days stable
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables the service needs when they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// schema is the storage contract.  Column names of `bookings` are shared
// with other readers of the table and must stay stable.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS guests (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		full_name     VARCHAR(255)  NOT NULL,
		email         VARCHAR(255)  NOT NULL UNIQUE,
		password_hash VARCHAR(255)  NOT NULL,
		national_id   VARCHAR(12)   NOT NULL DEFAULT '',
		nationality   VARCHAR(100)  NOT NULL DEFAULT '',
		country_flag  VARCHAR(500)  NOT NULL DEFAULT '',
		role          VARCHAR(16)   NOT NULL DEFAULT 'GUEST',
		created_at    DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		guest_id   BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64)        NOT NULL UNIQUE,
		expires_at DATETIME        NOT NULL,
		revoked_at DATETIME        NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (guest_id) REFERENCES guests(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS cabins (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name          VARCHAR(100)  NOT NULL,
		max_capacity  INT           NOT NULL,
		regular_price DECIMAL(10,2) NOT NULL,
		discount      DECIMAL(10,2) NOT NULL DEFAULT 0,
		description   TEXT          NOT NULL,
		image         VARCHAR(500)  NOT NULL DEFAULT '',
		CHECK (regular_price >= 0),
		CHECK (discount >= 0 AND discount <= regular_price)
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id                     TINYINT UNSIGNED PRIMARY KEY,
		min_booking_length     INT           NOT NULL,
		max_booking_length     INT           NOT NULL,
		max_guests_per_booking INT           NOT NULL,
		breakfast_price        DECIMAL(10,2) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		created_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		cabin_id      BIGINT UNSIGNED NOT NULL,
		guest_id      BIGINT UNSIGNED NOT NULL,
		start_date    DATE            NOT NULL,
		end_date      DATE            NOT NULL,
		num_nights    INT             NOT NULL,
		num_guests    INT             NOT NULL,
		cabin_price   DECIMAL(10,2)   NOT NULL,
		extras_price  DECIMAL(10,2)   NOT NULL DEFAULT 0,
		total_price   DECIMAL(10,2)   NOT NULL,
		status        ENUM('unconfirmed','confirmed','checked-in','checked-out') NOT NULL DEFAULT 'unconfirmed',
		has_breakfast BOOLEAN         NOT NULL DEFAULT FALSE,
		is_paid       BOOLEAN         NOT NULL DEFAULT FALSE,
		observations  VARCHAR(1000)   NOT NULL DEFAULT '',
		INDEX idx_bookings_guest (guest_id),
		INDEX idx_bookings_cabin_dates (cabin_id, start_date, end_date),
		FOREIGN KEY (cabin_id) REFERENCES cabins(id),
		FOREIGN KEY (guest_id) REFERENCES guests(id),
		CHECK (num_guests > 0),
		CHECK (end_date >= start_date)
	)`,
}
