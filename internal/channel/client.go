package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/ghost-gateway/internal/infrastructure/config"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/logging"
)

// Protocol constants.
const (
	// controlTopic carries heartbeats; it is never joined.
	controlTopic = "phoenix"

	eventJoin      = "phx_join"
	eventReply     = "phx_reply"
	eventHeartbeat = "heartbeat"

	// protocolVersion is sent in the websocket URL.
	protocolVersion = "2.0.0"

	// socketPath is the realtime endpoint path.
	socketPath = "/realtime/v1/websocket"

	handshakeTimeout = 10 * time.Second
)

// Envelope is the wire frame for all channel traffic.
type Envelope struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Ref     string          `json:"ref"`
	Payload json.RawMessage `json:"payload"`
}

// replyPayload is the body of a phx_reply envelope.
type replyPayload struct {
	Status string `json:"status"`
}

// Client multiplexes topic subscriptions over one long-lived websocket.
//
// Thread Safety:
//   - Subscribe, SubscribeFiltered, Send, and IsConnected are safe for
//     concurrent use.
//   - Run must be called exactly once; callbacks fire on its goroutine.
type Client struct {
	cfg config.ChannelConfig
	log *logging.Logger

	// scheme is "wss" in production; tests dial plain "ws".
	scheme string

	mu   sync.Mutex
	conn *websocket.Conn
	ref  uint64
	subs []*subscription
}

// New creates a channel client. Call Run to connect.
func New(cfg config.ChannelConfig, log *logging.Logger) *Client {
	return &Client{
		cfg:    cfg,
		log:    log.With("component", "channel"),
		scheme: "wss",
	}
}

// socketURL builds the websocket endpoint including the API key.
func (c *Client) socketURL() string {
	u := url.URL{
		Scheme: c.scheme,
		Host:   c.cfg.Host,
		Path:   socketPath,
	}
	q := u.Query()
	q.Set("apikey", c.cfg.APIKey)
	q.Set("vsn", protocolVersion)
	u.RawQuery = q.Encode()
	return u.String()
}

// Run connects and serves the socket until the context is cancelled,
// reconnecting after a fixed delay on any transport failure.
func (c *Client) Run(ctx context.Context) {
	c.preflightToken()

	delay := time.Duration(c.cfg.ReconnectDelay) * time.Second

	for {
		if err := c.connectAndServe(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("channel connection lost", "error", err, "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			c.log.Info("channel client stopping", "reason", ctx.Err())
			return
		case <-time.After(delay):
		}
	}
}

// preflightToken inspects the configured API key locally so a mispasted
// or expired key is visible at startup rather than as a silent join
// rejection. The key is still validated server-side.
func (c *Client) preflightToken() {
	info, err := InspectToken(c.cfg.APIKey)
	if err != nil {
		c.log.Warn("API key is not a valid JWT", "error", err)
		return
	}
	if info.Expired() {
		c.log.Warn("API key has expired",
			"role", info.Role, "expires_at", info.ExpiresAt)
	}
}

// connectAndServe runs one connection lifetime: dial, rejoin every known
// subscription, heartbeat, and read until the socket fails.
func (c *Client) connectAndServe(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.socketURL(), nil)
	if err != nil {
		return fmt.Errorf("channel: dialling: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.ref = 0
	for _, sub := range c.subs {
		sub.joined = false
	}
	subs := append([]*subscription(nil), c.subs...)
	c.mu.Unlock()

	c.log.Info("channel connected", "host", c.cfg.Host, "subscriptions", len(subs))

	// Every subscription gets exactly one fresh join per connection.
	for _, sub := range subs {
		if err := c.sendJoin(sub); err != nil {
			c.teardown(conn)
			return err
		}
	}

	heartbeatDone := make(chan struct{})
	go c.heartbeatLoop(heartbeatDone)
	defer close(heartbeatDone)
	defer c.teardown(conn)

	// Close the socket when the context ends so the read loop unblocks.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("channel: reading: %w", err)
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			// Bad frames are dropped, never fatal.
			c.log.Warn("dropping undecodable channel frame", "error", err)
			continue
		}

		c.handleEnvelope(env)
	}
}

// teardown closes the socket and clears connection state.
func (c *Client) teardown(conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		for _, sub := range c.subs {
			sub.joined = false
		}
	}
	c.mu.Unlock()
}

// heartbeatLoop sends a heartbeat on the control topic every interval until
// the connection ends. A missing heartbeat reply is not itself a failure;
// only a transport error triggers reconnection.
func (c *Client) heartbeatLoop(done <-chan struct{}) {
	interval := time.Duration(c.cfg.HeartbeatInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.write(Envelope{
				Topic:   controlTopic,
				Event:   eventHeartbeat,
				Payload: json.RawMessage(`{}`),
			}); err != nil {
				c.log.Debug("heartbeat send failed", "error", err)
			}
		}
	}
}

// handleEnvelope routes one inbound envelope.
//
// Join acknowledgments flip the matching subscription's joined flag; all
// other events are delivered only to a joined subscription with the same
// topic. Envelopes for unjoined or unknown topics are dropped.
func (c *Client) handleEnvelope(env Envelope) {
	if env.Event == eventReply {
		var reply replyPayload
		if err := json.Unmarshal(env.Payload, &reply); err != nil || reply.Status != "ok" {
			if env.Topic != controlTopic {
				c.log.Warn("join not acknowledged", "topic", env.Topic, "payload", string(env.Payload))
			}
			return
		}

		c.mu.Lock()
		for _, sub := range c.subs {
			if sub.topic == env.Topic {
				sub.joined = true
				c.log.Info("channel joined", "topic", env.Topic)
				break
			}
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	var cb Callback
	for _, sub := range c.subs {
		if sub.topic == env.Topic && sub.joined {
			cb = sub.callback
			break
		}
	}
	c.mu.Unlock()

	if cb == nil {
		c.log.Debug("dropping event for unjoined topic",
			"topic", env.Topic, "event", env.Event)
		return
	}

	cb(env.Event, env.Payload)
}

// sendJoin writes the join envelope for one subscription.
func (c *Client) sendJoin(sub *subscription) error {
	payload := sub.joinPayload
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	return c.write(Envelope{
		Topic:   sub.topic,
		Event:   eventJoin,
		Payload: payload,
	})
}

// write assigns the next ref and sends one envelope.
func (c *Client) write(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	c.ref++
	env.Ref = strconv.FormatUint(c.ref, 10)

	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("channel: writing %s: %w", env.Event, err)
	}
	return nil
}

// Subscribe registers a callback for a topic.
//
// Topics are unique: subscribing a topic twice returns ErrDuplicateTopic.
// The subscription survives reconnects: it is rejoined automatically on
// every new connection. If the client is already connected, the join is
// sent immediately rather than waiting for the next reconnect cycle.
func (c *Client) Subscribe(topic string, joinPayload json.RawMessage, callback Callback) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	sub := &subscription{
		topic:       topic,
		joinPayload: joinPayload,
		callback:    callback,
	}

	c.mu.Lock()
	for _, existing := range c.subs {
		if existing.topic == topic {
			c.mu.Unlock()
			return ErrDuplicateTopic
		}
	}
	c.subs = append(c.subs, sub)
	connected := c.conn != nil
	c.mu.Unlock()

	if connected {
		return c.sendJoin(sub)
	}
	return nil
}

// SubscribeFiltered subscribes to a postgres change feed for one table.
//
// Parameters:
//   - schema: Database schema, e.g. "public"
//   - table: Table name, e.g. "system_commands"
//   - event: Change type filter ("INSERT", "UPDATE", "DELETE" or "*")
//   - callback: Invoked per change with the full change payload
func (c *Client) SubscribeFiltered(schema, table, event string, callback Callback) error {
	topic, payload, err := buildFilteredJoin(schema, table, event)
	if err != nil {
		return err
	}
	return c.Subscribe(topic, payload, callback)
}

// Send writes an application envelope to a topic.
//
// Returns ErrNotConnected while the socket is down; callers decide whether
// to retry.
func (c *Client) Send(topic, event string, payload any) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("channel: encoding payload: %w", err)
	}

	return c.write(Envelope{Topic: topic, Event: event, Payload: data})
}

// IsConnected reports whether the socket is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
