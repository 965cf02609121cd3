// Package storage is the license server's SQLite persistence layer for the
// three-table schema: licenses, activations, usage_logs.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	licerrors "convertcli/internal/errors"
)

// License is a licenses table row. The license_key column is the full signed
// key string and is unique; the row's status can transition while the key
// string never changes.
type License struct {
	ID             string
	Email          string
	LicenseKey     string
	Type           string
	Status         string
	MaxActivations int
	CreatedAt      time.Time
	ExpiresAt      *time.Time
	Metadata       map[string]string
}

// Activation is an activations table row binding one license to one machine.
type Activation struct {
	ID          string
	LicenseID   string
	MachineID   string
	ActivatedAt time.Time
	LastSeenAt  time.Time
	Metadata    map[string]string
}

// UsageLog is an append-only usage_logs row.
type UsageLog struct {
	ID            string
	LicenseID     string
	ConverterName string
	InputFileSize int64
	Success       bool
	CreatedAt     time.Time
	Metadata      map[string]string
}

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With(slog.String("component", "storage")),
	}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS licenses (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			license_key TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			max_activations INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS activations (
			id TEXT PRIMARY KEY,
			license_id TEXT NOT NULL REFERENCES licenses(id) ON DELETE CASCADE,
			machine_id TEXT NOT NULL,
			activated_at TIMESTAMP NOT NULL,
			last_seen_at TIMESTAMP NOT NULL,
			metadata TEXT,
			UNIQUE(license_id, machine_id)
		)`,
		`CREATE TABLE IF NOT EXISTS usage_logs (
			id TEXT PRIMARY KEY,
			license_id TEXT NOT NULL REFERENCES licenses(id) ON DELETE CASCADE,
			converter_name TEXT NOT NULL,
			input_file_size INTEGER NOT NULL,
			success INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activations_license ON activations(license_id)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_logs_license ON usage_logs(license_id)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// CreateLicense inserts a new license row. The id is generated when empty.
func (s *Store) CreateLicense(ctx context.Context, lic *License) error {
	if lic.ID == "" {
		lic.ID = uuid.NewString()
	}
	if lic.CreatedAt.IsZero() {
		lic.CreatedAt = time.Now().UTC()
	}

	meta, err := marshalMetadata(lic.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO licenses (id, email, license_key, type, status, max_activations, created_at, expires_at, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lic.ID, lic.Email, lic.LicenseKey, lic.Type, lic.Status, lic.MaxActivations,
		lic.CreatedAt, lic.ExpiresAt, meta,
	)
	if err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

// FindLicenseByKey returns the license row for a key, or (nil, nil) when no
// row exists.
func (s *Store) FindLicenseByKey(ctx context.Context, key string) (*License, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, license_key, type, status, max_activations, created_at, expires_at, metadata
		 FROM licenses WHERE license_key = ?`, key)

	var lic License
	var meta sql.NullString
	var expires sql.NullTime
	err := row.Scan(&lic.ID, &lic.Email, &lic.LicenseKey, &lic.Type, &lic.Status,
		&lic.MaxActivations, &lic.CreatedAt, &expires, &meta)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query license: %w", err)
	}
	if expires.Valid {
		t := expires.Time
		lic.ExpiresAt = &t
	}
	lic.Metadata, err = unmarshalMetadata(meta)
	if err != nil {
		return nil, err
	}
	return &lic, nil
}

// UpdateLicenseStatus transitions a license row's status.
func (s *Store) UpdateLicenseStatus(ctx context.Context, licenseID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE licenses SET status = ? WHERE id = ?`, status, licenseID)
	if err != nil {
		return fmt.Errorf("update license status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return licerrors.ErrLicenseNotFound
	}
	return nil
}

// CountActivations returns the number of machines activated on a license.
func (s *Store) CountActivations(ctx context.Context, licenseID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activations WHERE license_id = ?`, licenseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count activations: %w", err)
	}
	return n, nil
}

// HasActivation reports whether a machine already holds a slot on a license.
func (s *Store) HasActivation(ctx context.Context, licenseID, machineID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activations WHERE license_id = ? AND machine_id = ?`,
		licenseID, machineID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check activation: %w", err)
	}
	return n > 0, nil
}

// UpsertActivation inserts the (license, machine) activation row, or bumps
// last_seen_at when the pair already exists. The unique constraint keeps
// re-activation of the same machine from consuming another slot.
func (s *Store) UpsertActivation(ctx context.Context, licenseID, machineID string, metadata map[string]string) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activations (id, license_id, machine_id, activated_at, last_seen_at, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(license_id, machine_id) DO UPDATE SET last_seen_at = excluded.last_seen_at`,
		uuid.NewString(), licenseID, machineID, now, now, meta,
	)
	if err != nil {
		return fmt.Errorf("upsert activation: %w", err)
	}
	return nil
}

// DeleteActivation removes the activation row, freeing the slot.
func (s *Store) DeleteActivation(ctx context.Context, licenseID, machineID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM activations WHERE license_id = ? AND machine_id = ?`,
		licenseID, machineID)
	if err != nil {
		return fmt.Errorf("delete activation: %w", err)
	}
	return nil
}

// ListActivations returns all activation rows for a license.
func (s *Store) ListActivations(ctx context.Context, licenseID string) ([]Activation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, license_id, machine_id, activated_at, last_seen_at, metadata
		 FROM activations WHERE license_id = ? ORDER BY activated_at`, licenseID)
	if err != nil {
		return nil, fmt.Errorf("list activations: %w", err)
	}
	defer rows.Close()

	var out []Activation
	for rows.Next() {
		var a Activation
		var meta sql.NullString
		if err := rows.Scan(&a.ID, &a.LicenseID, &a.MachineID, &a.ActivatedAt, &a.LastSeenAt, &meta); err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		if a.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertUsage appends a usage log entry. Rows are never updated afterwards.
func (s *Store) InsertUsage(ctx context.Context, entry *UsageLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	meta, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO usage_logs (id, license_id, converter_name, input_file_size, success, created_at, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.LicenseID, entry.ConverterName, entry.InputFileSize,
		entry.Success, entry.CreatedAt, meta,
	)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}
	return nil
}

// CountUsage returns the number of usage entries for a license.
func (s *Store) CountUsage(ctx context.Context, licenseID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_logs WHERE license_id = ?`, licenseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count usage logs: %w", err)
	}
	return n, nil
}

// Ping checks database liveness for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func marshalMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalMetadata(s sql.NullString) (map[string]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}
