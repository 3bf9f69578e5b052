package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/ghost-gateway/internal/infrastructure/logging"
)

// flushBatchSize caps how many pending entries a single flush pass delivers.
const flushBatchSize = 50

// Sender delivers a journal entry to its destination.
// The cloud client satisfies this.
type Sender interface {
	SendEvent(ctx context.Context, eventType, payload string) error
}

// Dispatcher drains pending journal entries to a Sender.
//
// Entries are appended first and delivered after, so a crash or outage
// between the two never loses an event. Delivery preserves journal order:
// a failed entry stops the flush pass and is retried on the next one.
//
// Thread Safety:
//   - Record may be called from any goroutine.
//   - Run must be called exactly once.
type Dispatcher struct {
	repo     Repository
	sender   Sender
	log      *logging.Logger
	interval time.Duration
	wake     chan struct{}
}

// NewDispatcher creates a dispatcher flushing at the given interval.
func NewDispatcher(repo Repository, sender Sender, log *logging.Logger, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Dispatcher{
		repo:     repo,
		sender:   sender,
		log:      log.With("component", "event-dispatcher"),
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// Record journals an event and nudges the dispatcher to flush.
// The payload is marshalled to JSON before storage.
func (d *Dispatcher) Record(ctx context.Context, eventType string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("event: marshalling payload: %w", err)
	}

	rec := Record{EventType: eventType, Payload: string(body)}
	if err := d.repo.Append(ctx, &rec); err != nil {
		return fmt.Errorf("event: journalling %s: %w", eventType, err)
	}

	d.log.Debug("event journalled", "id", rec.ID, "type", eventType)

	// Non-blocking: a pending wake already covers this entry.
	select {
	case d.wake <- struct{}{}:
	default:
	}

	return nil
}

// Run flushes pending entries until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// Deliver anything left over from a previous run.
	d.flush(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
			d.flush(ctx)
		case <-ticker.C:
			d.flush(ctx)
		}
	}
}

// flush delivers pending entries oldest-first, stopping at the first failure.
func (d *Dispatcher) flush(ctx context.Context) {
	pending, err := d.repo.ListPending(ctx, flushBatchSize)
	if err != nil {
		d.log.Error("listing pending events", "error", err)
		return
	}

	for _, rec := range pending {
		if ctx.Err() != nil {
			return
		}

		if err := d.sender.SendEvent(ctx, rec.EventType, rec.Payload); err != nil {
			d.log.Warn("event delivery failed, will retry",
				"id", rec.ID, "type", rec.EventType,
				"attempts", rec.Attempts+1, "error", err)
			if aerr := d.repo.RecordAttempt(ctx, rec.ID); aerr != nil {
				d.log.Error("recording delivery attempt", "id", rec.ID, "error", aerr)
			}
			return
		}

		if err := d.repo.MarkDelivered(ctx, rec.ID); err != nil {
			d.log.Error("marking event delivered", "id", rec.ID, "error", err)
			return
		}

		d.log.Debug("event delivered", "id", rec.ID, "type", rec.EventType)
	}
}
