package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Settings.Load when no value exists for the
// requested namespace/key pair.
var ErrNotFound = errors.New("database: setting not found")

// Settings is a namespaced key/value store over the settings table.
//
// It fulfils the gateway's persistence contract: small configuration values
// (boot mode, last system state, device identity, channel credentials) are
// saved as opaque bytes under a namespace and key.
//
// Thread Safety:
//   - All methods are safe for concurrent use; SQLite serialises writers.
type Settings struct {
	db *DB
}

// NewSettings creates a Settings store backed by the given database.
func NewSettings(db *DB) *Settings {
	return &Settings{db: db}
}

// Load retrieves the value stored under namespace/key.
//
// Returns:
//   - []byte: The stored value
//   - error: ErrNotFound if absent, or a wrapped query error
func (s *Settings) Load(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading setting %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

// Save stores value under namespace/key, replacing any previous value.
func (s *Settings) Save(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (namespace, key, value, updated_at)
		VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		namespace, key, value,
	)
	if err != nil {
		return fmt.Errorf("saving setting %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes the value stored under namespace/key.
// Deleting an absent key is not an error.
func (s *Settings) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM settings WHERE namespace = ? AND key = ?",
		namespace, key,
	)
	if err != nil {
		return fmt.Errorf("deleting setting %s/%s: %w", namespace, key, err)
	}
	return nil
}
