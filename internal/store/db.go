package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// schema is applied statement by statement on startup. Every statement is
// idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		employee_id VARCHAR(50)  PRIMARY KEY,
		full_name   VARCHAR(100) NOT NULL,
		email       VARCHAR(150) NOT NULL,
		department  VARCHAR(100) NOT NULL,
		created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		seq         BIGSERIAL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS employees_email_key ON employees (LOWER(email))`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id          UUID        PRIMARY KEY,
		employee_id VARCHAR(50) NOT NULL REFERENCES employees (employee_id) ON DELETE CASCADE,
		date        DATE        NOT NULL,
		status      TEXT        NOT NULL CHECK (status IN ('Present', 'Absent')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		seq         BIGSERIAL
	)`,
	`CREATE INDEX IF NOT EXISTS attendance_employee_date_idx ON attendance (employee_id, date DESC, seq DESC)`,
	`CREATE INDEX IF NOT EXISTS attendance_date_idx ON attendance (date)`,
}

// NewDB opens a Postgres pool and verifies it answers.
func NewDB(ctx context.Context, connString string, maxOpenConns int) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns / 2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{Client: db}, nil
}

// Migrate creates the employee and attendance tables when missing.
func (d *DB) Migrate(ctx context.Context) error {
	for _, statement := range schema {
		if _, err := d.Client.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
