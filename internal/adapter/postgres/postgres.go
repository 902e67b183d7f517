// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"weightlog/internal/domain"

	_ "github.com/lib/pq"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

var _ domain.WeightRepository = (*DB)(nil)
var _ domain.PreferencesRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS users (id BIGSERIAL PRIMARY KEY, username TEXT UNIQUE NOT NULL, password_hash TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE, expires_at TIMESTAMPTZ NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
		"CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);",
		`CREATE TABLE IF NOT EXISTS weight_records (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			day_key TEXT NOT NULL,
			weight_kg DOUBLE PRECISION NOT NULL CHECK (weight_kg > 0),
			recorded_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (user_id, day_key)
		);`,
		"CREATE INDEX IF NOT EXISTS idx_weight_records_user_recorded ON weight_records(user_id, recorded_at);",
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			target_weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
			height_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			unit TEXT NOT NULL DEFAULT 'KG' CHECK (unit IN ('KG','JIN')),
			reminder_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			reminder_hour SMALLINT NOT NULL DEFAULT 8,
			reminder_minute SMALLINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		"CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at TIMESTAMPTZ NOT NULL);",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if err := d.importLegacyEvents(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const legacyImportVersion = 2

// importLegacyEvents moves rows of the old append-only weight_events table
// into weight_records, keeping the latest event of each local day. It runs at
// most once per database.
func (d *DB) importLegacyEvents(ctx context.Context) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize concurrent starts.
	if _, err := tx.ExecContext(ctx, "LOCK TABLE schema_migrations IN EXCLUSIVE MODE;"); err != nil {
		return err
	}
	var applied bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1);", legacyImportVersion,
	).Scan(&applied); err != nil {
		return err
	}
	if applied {
		return nil
	}

	var legacy sql.NullString
	if err := tx.QueryRowContext(ctx, "SELECT to_regclass('weight_events')::text;").Scan(&legacy); err != nil {
		return err
	}
	if legacy.Valid {
		rows, err := loadLegacyEvents(ctx, tx)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, o := range domain.DedupeByDay(rows) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO weight_records (user_id, day_key, weight_kg, recorded_at, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $5)
				 ON CONFLICT (user_id, day_key) DO NOTHING;`,
				o.UserID, o.Day, o.WeightKg, o.Timestamp.UTC(), now,
			); err != nil {
				return fmt.Errorf("import weight event %d: %w", o.ID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3);",
		legacyImportVersion, "import_weight_events_by_day", time.Now(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

const poundKg = 0.45359237

func loadLegacyEvents(ctx context.Context, tx *sql.Tx) ([]domain.WeightObservation, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT id, user_id, value, unit, created_at FROM weight_events WHERE user_id IS NOT NULL AND value > 0;")
	if err != nil {
		return nil, fmt.Errorf("load weight_events: %w", err)
	}
	defer rows.Close()

	var out []domain.WeightObservation
	for rows.Next() {
		var (
			o    domain.WeightObservation
			unit string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.WeightKg, &unit, &o.Timestamp); err != nil {
			return nil, err
		}
		if unit == "lb" {
			o.WeightKg *= poundKg
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
