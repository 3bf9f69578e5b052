package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/ghost-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/ghost-gateway/internal/message"
)

// Writer is the subset of the influxdb client used by this package.
type Writer interface {
	WriteSensorReading(msg message.Message)
	WriteStateTransition(previous, current message.SystemState)
	WriteGatewayStats(droppedFrames, decodeErrors, droppedMessages uint64)
}

// Sink accepts controller messages. Matches controller.Controller.
type Sink interface {
	Enqueue(ctx context.Context, msg message.Message) error
}

// Tap forwards messages to the controller queue and records each one
// that is accepted.
//
// Recording after a successful Enqueue keeps the telemetry history
// consistent with what the controller actually processed; rejected
// messages show up in the dropped-message counter instead.
type Tap struct {
	next   Sink
	writer Writer
}

// NewTap wraps next so accepted messages are also written to the sink.
func NewTap(next Sink, writer Writer) *Tap {
	return &Tap{next: next, writer: writer}
}

// Enqueue implements Sink.
func (t *Tap) Enqueue(ctx context.Context, msg message.Message) error {
	if err := t.next.Enqueue(ctx, msg); err != nil {
		return err
	}
	t.writer.WriteSensorReading(msg)
	return nil
}

// Recorder records security state transitions.
// It implements controller.Notifier and is combined with other
// notifiers via Fanout.
type Recorder struct {
	writer Writer
}

// NewRecorder returns a Recorder writing to the given sink.
func NewRecorder(writer Writer) *Recorder {
	return &Recorder{writer: writer}
}

// StateChanged implements controller.Notifier.
func (r *Recorder) StateChanged(old, current message.SystemState) {
	r.writer.WriteStateTransition(old, current)
}

// Notifier matches controller.Notifier.
type Notifier interface {
	StateChanged(old, current message.SystemState)
}

// fanout delivers each notification to every member in order.
type fanout []Notifier

func (f fanout) StateChanged(old, current message.SystemState) {
	for _, n := range f {
		n.StateChanged(old, current)
	}
}

// Fanout combines notifiers into one. Nil members are skipped.
func Fanout(notifiers ...Notifier) Notifier {
	var out fanout
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// CounterSource supplies the gateway counters sampled by the Reporter.
type CounterSource interface {
	DroppedFrames() uint64
	DecodeErrors() uint64
}

// MessageCounterSource supplies the controller queue counter.
type MessageCounterSource interface {
	DroppedMessages() uint64
}

// Reporter periodically samples gateway counters into the sink.
type Reporter struct {
	bridge     CounterSource
	controller MessageCounterSource
	writer     Writer
	log        *logging.Logger
	interval   time.Duration
}

// NewReporter builds a Reporter. A non-positive interval defaults to
// one minute.
func NewReporter(bridge CounterSource, controller MessageCounterSource, writer Writer, log *logging.Logger, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logging.Default()
	}
	return &Reporter{
		bridge:     bridge,
		controller: controller,
		writer:     writer,
		log:        log,
		interval:   interval,
	}
}

// Run samples counters on a fixed interval until ctx ends.
//
// Thread Safety: Run is intended for a single dedicated goroutine.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Debug("telemetry reporter started", "interval", r.interval.String())

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("telemetry reporter stopped")
			return
		case <-ticker.C:
			r.writer.WriteGatewayStats(
				r.bridge.DroppedFrames(),
				r.bridge.DecodeErrors(),
				r.controller.DroppedMessages(),
			)
		}
	}
}
