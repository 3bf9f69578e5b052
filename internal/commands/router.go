// Package commands adapts inbound channel events into controller messages.
//
// Two cloud feeds drive the gateway remotely:
//
//   - inserts on public.system_commands: explicit remote commands (ARM,
//     DISARM, TEST) created by the app, applied when still pending
//   - inserts on public.system_events: state echoes from other devices on
//     the same account, used to mirror arm/disarm between gateways
//
// The gateway's own events also arrive on the events feed; those are
// dropped by device id so a state change never loops back into itself.
// Everything else is translated into a controller message and enqueued with
// the controller's bounded wait.
package commands

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nerrad567/ghost-gateway/internal/channel"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/ghost-gateway/internal/message"
)

// Feed table names.
const (
	commandsTable = "system_commands"
	eventsTable   = "system_events"
	feedSchema    = "public"
)

// Subscriber registers filtered change-feed callbacks. The channel client
// satisfies this.
type Subscriber interface {
	SubscribeFiltered(schema, table, event string, callback channel.Callback) error
}

// Sink receives translated messages. The controller satisfies this.
type Sink interface {
	Enqueue(ctx context.Context, msg message.Message) error
}

// Router wires the cloud change feeds to the controller queue.
type Router struct {
	sink     Sink
	deviceID string
	log      *logging.Logger
}

// New creates a command router for the given gateway identity.
func New(sink Sink, deviceID string, log *logging.Logger) *Router {
	return &Router{
		sink:     sink,
		deviceID: deviceID,
		log:      log.With("component", "commands"),
	}
}

// Start registers both change-feed subscriptions. The subscriptions persist
// across channel reconnects; Start is called once.
func (r *Router) Start(ctx context.Context, sub Subscriber) error {
	if err := sub.SubscribeFiltered(feedSchema, commandsTable, "INSERT",
		func(event string, payload json.RawMessage) {
			r.handleCommand(ctx, payload)
		}); err != nil {
		return err
	}

	return sub.SubscribeFiltered(feedSchema, eventsTable, "INSERT",
		func(event string, payload json.RawMessage) {
			r.handleStateEcho(ctx, payload)
		})
}

// changePayload is the envelope delivered for one table change.
type changePayload struct {
	Record json.RawMessage `json:"record"`
}

// commandRecord is one row of system_commands.
type commandRecord struct {
	Command string `json:"command"`
	Status  string `json:"status"`
}

// handleCommand applies one remote command insert.
func (r *Router) handleCommand(ctx context.Context, payload json.RawMessage) {
	var change changePayload
	if err := json.Unmarshal(payload, &change); err != nil || change.Record == nil {
		r.log.Warn("dropping malformed command change", "error", err)
		return
	}

	var rec commandRecord
	if err := json.Unmarshal(change.Record, &rec); err != nil {
		r.log.Warn("dropping malformed command record", "error", err)
		return
	}

	// Rows already claimed or completed by another consumer are not ours.
	if rec.Status != "pending" {
		return
	}

	var msgType message.Type
	switch strings.ToUpper(rec.Command) {
	case "ARM":
		msgType = message.TypeArm
	case "DISARM":
		msgType = message.TypeDisarm
	case "TEST":
		// A delivery test: heartbeat through the full path, no transition.
		msgType = message.TypeHeartbeat
	default:
		r.log.Warn("ignoring unknown remote command", "command", rec.Command)
		return
	}

	r.enqueue(ctx, msgType, "cloud")
}

// eventRecord is one row of system_events.
type eventRecord struct {
	DeviceID  string `json:"device_id"`
	EventType string `json:"event_type"`
	Payload   struct {
		New     string `json:"new"`
		NewCode *int   `json:"new_code"`
	} `json:"payload"`
}

// handleStateEcho mirrors arm/disarm state changes made elsewhere on the
// account. The gateway's own events are skipped by device id.
func (r *Router) handleStateEcho(ctx context.Context, payload json.RawMessage) {
	var change changePayload
	if err := json.Unmarshal(payload, &change); err != nil || change.Record == nil {
		r.log.Warn("dropping malformed event change", "error", err)
		return
	}

	var rec eventRecord
	if err := json.Unmarshal(change.Record, &rec); err != nil {
		r.log.Warn("dropping malformed event record", "error", err)
		return
	}

	if rec.DeviceID == r.deviceID {
		return
	}
	if rec.EventType != "state_change" {
		return
	}

	var msgType message.Type
	switch {
	case rec.Payload.New == message.StateArmed.Name(),
		rec.Payload.NewCode != nil && *rec.Payload.NewCode == int(message.StateArmed):
		msgType = message.TypeArm
	case rec.Payload.New == message.StateDisarmed.Name(),
		rec.Payload.NewCode != nil && *rec.Payload.NewCode == int(message.StateDisarmed):
		msgType = message.TypeDisarm
	default:
		// Alarm and tamper states are owned locally; echoes of those from
		// other devices are informational only.
		return
	}

	r.enqueue(ctx, msgType, rec.DeviceID)
}

// enqueue builds and sends one controller message.
func (r *Router) enqueue(ctx context.Context, msgType message.Type, source string) {
	msg := message.Message{
		Header: message.Header{
			Version:    1,
			SourceID:   source,
			SourceType: message.DeviceGateway,
		},
		Payload: message.Payload{Type: msgType},
	}

	if err := r.sink.Enqueue(ctx, msg); err != nil {
		r.log.Warn("controller queue rejected remote command",
			"type", int(msgType), "source", source, "error", err)
	}
}
