package database

import (
	"context"
	"fmt"
)

// schema defines the gateway's two tables.
//
// settings is a namespaced key/value store used for boot mode, last system
// state, device identity and channel credentials. events is the outbound
// event journal: security events are appended here before any network send,
// so a crash or offline period never loses a locally generated event.
const schema = `
CREATE TABLE IF NOT EXISTS settings (
    namespace  TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      BLOB NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
    PRIMARY KEY (namespace, key)
);

CREATE TABLE IF NOT EXISTS events (
    id           TEXT PRIMARY KEY,
    event_type   TEXT NOT NULL,
    payload      TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'pending',
    attempts     INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
    delivered_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_status ON events(status, created_at);
`

// EnsureSchema creates the gateway tables if they do not exist.
// It is idempotent and safe to call on every startup.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If schema creation fails
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
