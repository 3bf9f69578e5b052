// Package event provides the durable security event journal.
//
// Every locally generated security event (state changes, alarms, panics,
// sensor activity worth reporting) is appended to the journal before any
// delivery attempt. A dispatcher drains pending entries to the cloud and
// marks them delivered, so events survive restarts and network outages.
package event

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status values for journal entries.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
)

// Record is a single journal entry.
type Record struct {
	ID          string     `json:"id"`
	EventType   string     `json:"event_type"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Repository defines the interface for journal operations.
type Repository interface {
	Append(ctx context.Context, rec *Record) error
	ListPending(ctx context.Context, limit int) ([]Record, error)
	MarkDelivered(ctx context.Context, id string) error
	RecordAttempt(ctx context.Context, id string) error
}

// SQLiteRepository stores journal entries in the events table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new journal repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts a new pending entry. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Append(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = "evt-" + uuid.NewString()[:8]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, event_type, payload, status, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EventType, rec.Payload, rec.Status, rec.Attempts,
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}

	return nil
}

// ListPending returns undelivered entries, oldest first.
func (r *SQLiteRepository) ListPending(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, payload, status, attempts, created_at, delivered_at
		 FROM events WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		StatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying pending entries: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var createdAt string
		var deliveredAt sql.NullString

		if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Payload,
			&rec.Status, &rec.Attempts, &createdAt, &deliveredAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing journal timestamp %q: %w", createdAt, err)
		}
		rec.CreatedAt = t

		if deliveredAt.Valid && deliveredAt.String != "" {
			if dt, err := time.Parse(time.RFC3339, deliveredAt.String); err == nil {
				rec.DeliveredAt = &dt
			}
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal entries: %w", err)
	}

	return records, nil
}

// MarkDelivered transitions an entry to delivered and stamps the time.
func (r *SQLiteRepository) MarkDelivered(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET status = ?, delivered_at = ? WHERE id = ?`,
		StatusDelivered, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("marking entry delivered: %w", err)
	}
	return nil
}

// RecordAttempt increments the delivery attempt counter for an entry.
func (r *SQLiteRepository) RecordAttempt(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET attempts = attempts + 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("recording delivery attempt: %w", err)
	}
	return nil
}
