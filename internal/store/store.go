// Package store provides the relational record store for accounts,
// facilities, and notes. It supports sqlite3 and pgx (PostgreSQL)
// database/sql drivers; all queries are written with ? placeholders and
// rebound for PostgreSQL at execution time.
package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Store manages account, facility, and note persistence.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and ensures the schema exists.
// driver must be "sqlite3" or "pgx".
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q (valid: %s, %s)", driver, DriverSQLite, DriverPostgres)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewWithDB creates a store on an existing connection. Used by tests and
// by callers that share one database across stores.
func NewWithDB(db *sql.DB, driver string) (*Store, error) {
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// DB exposes the underlying connection so sibling stores (conversation
// history) can share it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	notesPK := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		notesPK = "BIGSERIAL PRIMARY KEY"
	}

	// Timestamps are stored as RFC3339 TEXT so the schema is identical
	// across sqlite and postgres apart from the notes primary key.
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS accounts (
			account_id VARCHAR(50) PRIMARY KEY,
			account_name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL,
			is_tna BOOLEAN DEFAULT FALSE,
			created_at TEXT,
			updated_at TEXT,
			pricing_model VARCHAR(50),
			address_line1 VARCHAR(255),
			address_line2 VARCHAR(255),
			address_city VARCHAR(100),
			address_state VARCHAR(10),
			address_postal_code VARCHAR(20),
			address_country VARCHAR(100),
			total_amount_due DECIMAL(10,2),
			total_amount_due_this_week DECIMAL(10,2),
			invoice_id VARCHAR(100),
			invoice_amount DECIMAL(10,2),
			invoice_due_date VARCHAR(50),
			current_balance DECIMAL(10,2),
			pending_balance DECIMAL(10,2),
			points_earned_this_quarter INTEGER,
			current_tier VARCHAR(50),
			next_tier VARCHAR(50),
			points_to_next_tier INTEGER,
			quarter_end_date TEXT,
			free_vials_available INTEGER,
			rewards_required_for_next_free_vial INTEGER,
			rewards_redeemed_towards_next_free_vial INTEGER,
			rewards_status VARCHAR(50),
			rewards_updated_at TEXT,
			evolux_level VARCHAR(50)
		);

		CREATE TABLE IF NOT EXISTS facilities (
			facility_id VARCHAR(50) PRIMARY KEY,
			facility_name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL,
			account_id VARCHAR(50) NOT NULL REFERENCES accounts(account_id) ON DELETE CASCADE,
			has_signed_medical_liability_agreement BOOLEAN DEFAULT FALSE,
			medical_license_id VARCHAR(100),
			medical_license_state VARCHAR(10),
			medical_license_number VARCHAR(50),
			medical_license_involvement VARCHAR(50),
			medical_license_expiration_date TEXT,
			medical_license_is_expired BOOLEAN DEFAULT FALSE,
			medical_license_status VARCHAR(100),
			medical_license_owner_first_name VARCHAR(100),
			medical_license_owner_last_name VARCHAR(100),
			account_has_signed_financial_agreement BOOLEAN DEFAULT FALSE,
			account_has_accepted_jet_terms BOOLEAN DEFAULT FALSE,
			shipping_address_line1 VARCHAR(255),
			shipping_address_line2 VARCHAR(255),
			shipping_address_city VARCHAR(100),
			shipping_address_state VARCHAR(10),
			shipping_address_zip VARCHAR(20),
			shipping_address_commercial BOOLEAN DEFAULT FALSE,
			sponsored BOOLEAN DEFAULT FALSE,
			agreement_status VARCHAR(50),
			agreement_signed_at TEXT,
			agreement_type VARCHAR(50),
			created_at TEXT,
			updated_at TEXT
		);

		CREATE TABLE IF NOT EXISTS notes (
			note_id %s,
			account_id VARCHAR(50),
			facility_id VARCHAR(50),
			user_id VARCHAR(255) NOT NULL,
			note_content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			CHECK (account_id IS NOT NULL OR facility_id IS NOT NULL)
		);

		CREATE INDEX IF NOT EXISTS idx_facilities_account ON facilities(account_id);
		CREATE INDEX IF NOT EXISTS idx_notes_account ON notes(account_id);
		CREATE INDEX IF NOT EXISTS idx_notes_facility ON notes(facility_id);
		CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id);
	`, notesPK)

	_, err := s.db.Exec(schema)
	return err
}

// rebind rewrites ? placeholders for the active driver.
func (s *Store) rebind(query string) string {
	return Rebind(s.driver, query)
}

// Rebind rewrites ? placeholders to $1..$n for the pgx driver.
// sqlite3 queries pass through unchanged.
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}
