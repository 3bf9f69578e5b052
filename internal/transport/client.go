package transport

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ghost-gateway/internal/infrastructure/config"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/ghost-gateway/internal/message"
)

// FrameHandler is the receive callback for inbound sensor frames.
//
// Handlers are invoked in separate goroutines by the paho library and must
// return quickly; the bridge's handler only copies into its queue.
type FrameHandler func(source string, payload []byte, rssi int)

// Link is the gateway's end of the radio transport.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - The frame subscription is automatically restored on reconnection.
type Link struct {
	client    pahomqtt.Client
	cfg       config.TransportConfig
	gatewayID string
	log       *logging.Logger

	// handler is the registered frame callback, restored on reconnect.
	handler   FrameHandler
	handlerMu sync.RWMutex

	connected bool
	connMu    sync.RWMutex
}

// Connect establishes the broker connection and announces the gateway online.
//
// Parameters:
//   - cfg: Transport configuration
//   - gatewayID: Stable gateway identifier used in topics
//   - log: Structured logger
//
// Returns:
//   - *Link: Connected link ready for use
//   - error: If the initial connection fails within the timeout
func Connect(cfg config.TransportConfig, gatewayID string, log *logging.Logger) (*Link, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, gatewayID)

	l := &Link{
		cfg:       cfg,
		gatewayID: gatewayID,
		log:       log.With("component", "transport"),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		l.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		l.handleDisconnect(err)
	})

	l.client = pahomqtt.NewClient(opts)
	token := l.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnectHandler runs asynchronously and may not have executed
	// yet; set connected here so IsConnected() is immediately true.
	l.connMu.Lock()
	l.connected = true
	l.connMu.Unlock()

	return l, nil
}

// handleConnect runs on initial connect and every reconnect.
func (l *Link) handleConnect() {
	l.connMu.Lock()
	l.connected = true
	l.connMu.Unlock()

	l.restoreSubscription()
	l.publishStatus("online", "")
	l.log.Info("radio link connected", "broker", l.cfg.Broker.Host)
}

// handleDisconnect runs when the connection is lost. Paho reconnects on its
// own; this only tracks state.
func (l *Link) handleDisconnect(err error) {
	l.connMu.Lock()
	l.connected = false
	l.connMu.Unlock()

	l.log.Warn("radio link lost", "error", err)
}

// restoreSubscription re-subscribes the frame handler after reconnect.
func (l *Link) restoreSubscription() {
	l.handlerMu.RLock()
	handler := l.handler
	l.handlerMu.RUnlock()

	if handler != nil {
		l.client.Subscribe(Topics{}.Frames(l.gatewayID), byte(l.cfg.QoS), l.wrapHandler(handler))
	}
}

// publishStatus publishes a retained status message for the head end.
func (l *Link) publishStatus(status, reason string) {
	l.client.Publish(Topics{}.Status(l.gatewayID), byte(l.cfg.QoS), true,
		buildStatusPayload(l.gatewayID, status, reason))
}

// OnFrame registers the receive callback for inbound sensor frames and
// subscribes to the frame topic. Only one handler is supported; a second
// call replaces the first.
func (l *Link) OnFrame(handler FrameHandler) error {
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	l.handlerMu.Lock()
	l.handler = handler
	l.handlerMu.Unlock()

	if !l.IsConnected() {
		return ErrNotConnected
	}

	token := l.client.Subscribe(Topics{}.Frames(l.gatewayID), byte(l.cfg.QoS), l.wrapHandler(handler))
	if !token.WaitTimeout(defaultSendTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultSendTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// wrapHandler adapts a FrameHandler to paho's callback shape, parsing the
// topic and recovering panics so a bad frame cannot kill the receive path.
func (l *Link) wrapHandler(handler FrameHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				l.log.Error("frame handler panic recovered",
					"topic", msg.Topic(), "panic", r)
			}
		}()

		source, rssi, ok := ParseFrameTopic(msg.Topic())
		if !ok {
			l.log.Warn("ignoring frame on unexpected topic", "topic", msg.Topic())
			return
		}

		handler(source, msg.Payload(), rssi)
	}
}

// SendDownlink broadcasts a frame to the sensor network.
//
// The payload is subject to the radio frame limit; oversized payloads are
// rejected before touching the broker.
func (l *Link) SendDownlink(payload []byte) error {
	if len(payload) == 0 || len(payload) > message.MaxFrameLen {
		return ErrFrameTooLarge
	}
	if !l.IsConnected() {
		return ErrNotConnected
	}

	token := l.client.Publish(Topics{}.Downlink(l.gatewayID), byte(l.cfg.QoS), false, payload)
	if !token.WaitTimeout(defaultSendTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSendFailed, defaultSendTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	return nil
}

// PublishState broadcasts the current security state, retained, so local
// panels and the head end can mirror it immediately on subscribe.
//
// Best effort: when the link is down the state is simply not announced;
// the controller does not depend on the outcome.
func (l *Link) PublishState(state string) {
	if !l.IsConnected() {
		return
	}
	l.client.Publish(Topics{}.State(l.gatewayID), byte(l.cfg.QoS), true, state)
}

// IsConnected returns the last known connection state.
func (l *Link) IsConnected() bool {
	l.connMu.RLock()
	defer l.connMu.RUnlock()
	return l.connected && l.client.IsConnected()
}

// HealthCheck verifies the link is alive.
func (l *Link) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("transport health check: %w", ctx.Err())
	default:
	}

	if !l.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close announces a graceful shutdown and disconnects.
func (l *Link) Close() error {
	if l.client == nil {
		return nil
	}

	if l.IsConnected() {
		token := l.client.Publish(Topics{}.Status(l.gatewayID), byte(l.cfg.QoS), true,
			buildStatusPayload(l.gatewayID, "offline", "graceful_shutdown"))
		token.WaitTimeout(defaultSendTimeout)
	}

	l.client.Disconnect(defaultDisconnectQuiesce)

	l.connMu.Lock()
	l.connected = false
	l.connMu.Unlock()

	return nil
}
