package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fieldbooking/internal/domain"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the SQLite-backed booking store.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var _ domain.Store = (*DB)(nil)

// NewDB opens the database at path and applies migrations.
// Write transactions begin IMMEDIATE so concurrent writers are serialized by SQLite.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'customer',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS fields (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			open_time TEXT NOT NULL,
			close_time TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			public_id TEXT UNIQUE NOT NULL,
			booking_number TEXT UNIQUE NOT NULL,
			field_id INTEGER NOT NULL,
			booking_date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			base_amount INTEGER NOT NULL DEFAULT 0,
			discount_amount INTEGER NOT NULL DEFAULT 0,
			fee_amount INTEGER NOT NULL DEFAULT 0,
			total_amount INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			payment_status TEXT NOT NULL DEFAULT 'unpaid',
			customer_id INTEGER NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_by INTEGER NOT NULL,
			confirmed_by INTEGER,
			confirmed_at DATETIME,
			cancelled_by INTEGER,
			cancelled_at DATETIME,
			cancel_reason TEXT NOT NULL DEFAULT '',
			rejected_by INTEGER,
			rejected_at DATETIME,
			reject_reason TEXT NOT NULL DEFAULT '',
			completed_by INTEGER,
			completed_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (field_id) REFERENCES fields(id)
		)`,

		`CREATE TABLE IF NOT EXISTS payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL,
			method TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			amount INTEGER NOT NULL,
			fee INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL,
			status TEXT NOT NULL,
			external_ref TEXT NOT NULL DEFAULT '',
			expires_at DATETIME,
			created_by INTEGER NOT NULL,
			paid_by INTEGER,
			paid_at DATETIME,
			failed_at DATETIME,
			refunded_by INTEGER,
			refunded_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (booking_id) REFERENCES bookings(id)
		)`,

		`CREATE TABLE IF NOT EXISTS booking_transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			from_status TEXT NOT NULL DEFAULT '',
			to_status TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			FOREIGN KEY (booking_id) REFERENCES bookings(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_calendar ON bookings(field_id, booking_date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_autocomplete ON bookings(status, booking_date, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_booking ON payments(booking_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_booking ON booking_transitions(booking_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_created ON booking_transitions(created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}

	// Columns added after the first release.
	alters := []string{
		`ALTER TABLE bookings ADD COLUMN notes TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE booking_transitions ADD COLUMN notes TEXT NOT NULL DEFAULT ''`,
	}
	for _, q := range alters {
		if _, err := db.Exec(q); err != nil && !strings.Contains(err.Error(), "duplicate column") {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// WithinTx runs fn inside one write transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&storeTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// storeTx implements domain.Tx over a single *sql.Tx.
type storeTx struct {
	tx *sql.Tx
}

var _ domain.Tx = (*storeTx)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}
