package controller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/ghost-gateway/internal/message"
)

// Enqueue pushes a message onto the controller's queue with a bounded wait.
//
// Producers (bridge worker, command router, local API) call this from their
// own goroutines. If the queue stays full for the bounded timeout the
// message is dropped, counted, and ErrQueueFull returned; producers log and
// carry on.
func (c *Controller) Enqueue(ctx context.Context, msg message.Message) error {
	timer := time.NewTimer(enqueueTimeout)
	defer timer.Stop()

	select {
	case c.queue <- msg:
		return nil
	case <-ctx.Done():
		atomic.AddUint64(&c.droppedMessages, 1)
		return ctx.Err()
	case <-timer.C:
		atomic.AddUint64(&c.droppedMessages, 1)
		return ErrQueueFull
	}
}

// DroppedMessages returns how many messages were dropped at the queue.
func (c *Controller) DroppedMessages() uint64 {
	return atomic.LoadUint64(&c.droppedMessages)
}

// Run consumes the message queue until the context is cancelled.
//
// Messages are applied strictly in arrival order; each message's effects
// happen atomically under the controller lock.
func (c *Controller) Run(ctx context.Context) {
	c.log.Info("controller running")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("controller stopping", "reason", ctx.Err())
			return
		case msg := <-c.queue:
			c.dispatch(ctx, msg)
		}
	}
}

// dispatch applies one message by type.
func (c *Controller) dispatch(ctx context.Context, msg message.Message) {
	switch msg.Payload.Type {
	case message.TypeSensorEvent:
		c.ProcessSensorEvent(ctx, msg)

	case message.TypeArm:
		if err := c.Arm(ctx); err != nil {
			c.log.Warn("arm command rejected",
				"source", msg.Header.SourceID, "reason", err)
		}

	case message.TypeDisarm:
		if err := c.Disarm(ctx); err != nil {
			c.log.Error("disarm failed", "error", err)
		}

	case message.TypePanic:
		if err := c.TriggerAlarm(ctx); err != nil {
			c.log.Error("panic handling failed", "error", err)
		}

	case message.TypeHeartbeat:
		c.mu.Lock()
		c.touchSensorLocked(msg)
		c.mu.Unlock()

	default:
		c.log.Warn("unknown message type dropped",
			"type", int(msg.Payload.Type), "source", msg.Header.SourceID)
	}
}

// ProcessSensorEvent updates the registry and applies the alarm rules:
// tamper forces the tamper state from anywhere and wins over other actions
// in the same message; a sensor opening while armed raises the alarm.
func (c *Controller) ProcessSensorEvent(ctx context.Context, msg message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Payload.Action {
	case message.ActionTamper:
		c.updateSensorLocked(msg, true)
		if err := c.transitionLocked(ctx, message.StateTamper); err != nil {
			c.log.Error("tamper transition failed", "error", err)
		}

	case message.ActionOpen:
		c.updateSensorLocked(msg, true)
		if c.state == message.StateArmed {
			if err := c.transitionLocked(ctx, message.StateAlarm); err != nil {
				c.log.Error("alarm transition failed", "error", err)
			}
		}

	case message.ActionClosed:
		c.updateSensorLocked(msg, false)
	}
}
