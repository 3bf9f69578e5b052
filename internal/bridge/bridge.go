// Package bridge moves raw wireless frames from the receive callback into
// the controller's typed message queue.
//
// The receive callback runs in the radio transport's delivery context and
// must never block or do real work: it copies the frame into a fixed-size
// queue and returns. A worker goroutine drains the queue, decodes each frame
// and pushes the typed message to the controller. A full queue drops the
// frame silently (counted, not retried — the radio layer has its own
// retransmission).
package bridge

import (
	"context"
	"sync/atomic"

	"github.com/nerrad567/ghost-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/ghost-gateway/internal/message"
)

// rawFrame is one queued wireless frame. The payload is a private copy; the
// transport may reuse its buffer the moment the callback returns.
type rawFrame struct {
	source string
	data   []byte
	rssi   int
}

// Sink receives decoded messages. The controller satisfies this.
type Sink interface {
	Enqueue(ctx context.Context, msg message.Message) error
}

// Bridge queues and decodes inbound wireless frames.
//
// Thread Safety:
//   - OnFrameReceived may be called from any goroutine, including the
//     transport's receive path.
//   - Run must be called exactly once.
type Bridge struct {
	sink  Sink
	log   *logging.Logger
	queue chan rawFrame

	droppedFrames uint64
	decodeErrors  uint64
}

// New creates a bridge with the given raw-frame queue capacity.
func New(sink Sink, log *logging.Logger, queueSize int) *Bridge {
	if queueSize <= 0 {
		queueSize = 10
	}
	return &Bridge{
		sink:  sink,
		log:   log.With("component", "bridge"),
		queue: make(chan rawFrame, queueSize),
	}
}

// OnFrameReceived accepts one raw frame from the wireless transport.
//
// It validates the length, copies the bytes and returns immediately; it
// never blocks, decodes, or logs on the hot path. Oversized, empty, or
// queue-overflow frames are dropped and counted.
func (b *Bridge) OnFrameReceived(source string, data []byte, rssi int) {
	if len(data) == 0 || len(data) > message.MaxFrameLen {
		atomic.AddUint64(&b.droppedFrames, 1)
		return
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case b.queue <- rawFrame{source: source, data: buf, rssi: rssi}:
	default:
		atomic.AddUint64(&b.droppedFrames, 1)
	}
}

// DroppedFrames returns how many frames were rejected before decode.
func (b *Bridge) DroppedFrames() uint64 {
	return atomic.LoadUint64(&b.droppedFrames)
}

// DecodeErrors returns how many queued frames failed to decode.
func (b *Bridge) DecodeErrors() uint64 {
	return atomic.LoadUint64(&b.decodeErrors)
}

// Run decodes queued frames and forwards them until the context is
// cancelled. Decode failures drop the frame; a full controller queue drops
// the message. Neither stops the worker.
func (b *Bridge) Run(ctx context.Context) {
	b.log.Info("bridge worker running")

	for {
		select {
		case <-ctx.Done():
			b.log.Info("bridge worker stopping", "reason", ctx.Err())
			return
		case frame := <-b.queue:
			b.process(ctx, frame)
		}
	}
}

// process decodes one frame and hands it to the sink.
func (b *Bridge) process(ctx context.Context, frame rawFrame) {
	msg, err := message.Decode(frame.data)
	if err != nil {
		atomic.AddUint64(&b.decodeErrors, 1)
		b.log.Warn("discarding undecodable frame",
			"source", frame.source, "len", len(frame.data), "error", err)
		return
	}
	msg.RSSI = frame.rssi

	if err := b.sink.Enqueue(ctx, msg); err != nil {
		b.log.Warn("controller queue rejected message",
			"source", frame.source, "device_id", msg.Header.SourceID, "error", err)
	}
}
