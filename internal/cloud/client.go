package cloud

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nerrad567/ghost-gateway/internal/infrastructure/config"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/logging"
)

// Buffer and retry limits.
const (
	// maxRequestLen is the fixed output buffer size; a request that does
	// not fit is rejected before connecting.
	maxRequestLen = 4096

	// maxResponseLen caps how much response the client will hold.
	maxResponseLen = 8192

	// readAttempts bounds the two-phase read loop. Each attempt blocks for
	// at most readAttemptTimeout, standing in for a would-block poll on a
	// non-blocking socket.
	readAttempts       = 50
	readAttemptTimeout = 200 * time.Millisecond

	// responseTimeout caps the total wall-clock time spent reading one
	// response. Would-block attempts are bounded by readAttempts, but a
	// peer trickling bytes never times out; without this cap it would
	// hold the exchange mutex indefinitely.
	responseTimeout = 15 * time.Second

	httpsPort = "443"
)

// Client posts JSON documents to the cloud over one-shot TLS connections.
//
// Thread Safety:
//   - All methods are safe for concurrent use; a single mutex serialises
//     exchanges so only one is in flight at a time.
type Client struct {
	cfg      config.CloudConfig
	deviceID string
	log      *logging.Logger

	// mu enforces one exchange at a time system-wide.
	mu sync.Mutex

	// dial opens the one-shot connection; tests swap in plain TCP.
	dial func(ctx context.Context) (net.Conn, error)

	// responseTimeout is the per-exchange read cap; tests shorten it.
	responseTimeout time.Duration
}

// New creates a cloud client for the configured endpoint.
func New(cfg config.CloudConfig, deviceID string, log *logging.Logger) *Client {
	c := &Client{
		cfg:      cfg,
		deviceID: deviceID,
		log:      log.With("component", "cloud"),
	}
	c.dial = c.dialTLS
	c.responseTimeout = responseTimeout
	return c
}

// dialTLS opens a fresh TLS connection with the configured timeout.
func (c *Client) dialTLS(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout: time.Duration(c.cfg.ConnectTimeout) * time.Second,
	}
	conn, err := tls.DialWithDialer(dialer, "tcp",
		net.JoinHostPort(c.cfg.Host, httpsPort),
		&tls.Config{ServerName: c.cfg.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	_ = ctx // connection-establish timeout is carried by the dialer
	return conn, nil
}

// buildRequest assembles the fixed HTTP/1.1 POST.
func (c *Client) buildRequest(path string, body []byte) ([]byte, error) {
	req := fmt.Sprintf("POST %s HTTP/1.1\r\n"+
		"Host: %s\r\n"+
		"Content-Type: application/json\r\n"+
		"X-Device-Key: %s\r\n"+
		"Content-Length: %d\r\n"+
		"Connection: close\r\n"+
		"\r\n", path, c.cfg.Host, c.cfg.DeviceKey, len(body))

	if len(req)+len(body) > maxRequestLen {
		return nil, ErrRequestTooLarge
	}
	return append([]byte(req), body...), nil
}

// exchange performs one full request/response cycle on a fresh connection.
func (c *Client) exchange(ctx context.Context, path string, body []byte) (int, []byte, error) {
	if c.cfg.Host == "" || c.cfg.DeviceKey == "" {
		return 0, nil, ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	req, err := c.buildRequest(path, body)
	if err != nil {
		return 0, nil, err
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return 0, nil, err
	}
	defer conn.Close()

	if _, err := conn.Write(req); err != nil {
		return 0, nil, fmt.Errorf("cloud: writing request: %w", err)
	}

	return c.readResponse(conn)
}

// readResponse reads headers then body with bounded retries.
//
// Phase one accumulates bytes until the header terminator appears. Phase
// two, when Content-Length was present and the body is still short,
// continues until satisfied or the retry budget runs out. A would-block
// read (deadline expiry with no data) consumes one attempt; EOF ends the
// response since the server closes after each exchange. The whole read is
// additionally capped at responseTimeout of wall-clock time, so a peer
// that keeps trickling bytes cannot pin the exchange mutex.
func (c *Client) readResponse(conn net.Conn) (int, []byte, error) {
	buf := make([]byte, 0, maxResponseLen)
	tmp := make([]byte, 1024)

	deadline := time.Now().Add(c.responseTimeout)
	attempts := 0
	budget := func() bool {
		return attempts < readAttempts && time.Now().Before(deadline)
	}
	read := func() (closed bool, err error) {
		if err := conn.SetReadDeadline(time.Now().Add(readAttemptTimeout)); err != nil {
			return false, fmt.Errorf("cloud: setting deadline: %w", err)
		}
		n, err := conn.Read(tmp)
		if n > 0 {
			if len(buf)+n > maxResponseLen {
				n = maxResponseLen - len(buf)
			}
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				// Would-block: no data this attempt.
				attempts++
				return false, nil
			}
			// EOF or hard failure: the connection is done either way.
			return true, nil
		}
		return false, nil
	}

	// Phase 1: headers.
	he := -1
	for he < 0 && budget() {
		closed, err := read()
		if err != nil {
			return 0, nil, err
		}
		he = headerEnd(buf)
		if closed {
			break
		}
	}
	if he < 0 {
		return 0, nil, ErrIncompleteResponse
	}

	status, err := parseStatusLine(buf)
	if err != nil {
		return 0, nil, err
	}

	headers := buf[:he]

	// Phase 2: body.
	if cl, ok := contentLength(headers); ok {
		for len(buf)-he < cl && budget() {
			closed, err := read()
			if err != nil {
				return 0, nil, err
			}
			if closed {
				break
			}
		}
		bodyEnd := he + cl
		if bodyEnd > len(buf) {
			bodyEnd = len(buf)
		}
		return status, buf[he:bodyEnd], nil
	}

	if isChunked(headers) {
		// Read until the server closes; the terminating chunk marks the end.
		for budget() {
			closed, err := read()
			if err != nil {
				return 0, nil, err
			}
			if closed {
				break
			}
		}
		return status, decodeChunked(buf[he:]), nil
	}

	// No framing header: whatever arrived before close is the body.
	for budget() {
		closed, err := read()
		if err != nil {
			return 0, nil, err
		}
		if closed {
			break
		}
	}
	return status, buf[he:], nil
}

// eventDocument is the body POSTed for each security event.
type eventDocument struct {
	DeviceID   string          `json:"device_id"`
	DeviceType string          `json:"device_type"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// SendEvent posts one security event.
//
// The payload is a JSON document produced by the event journal and is
// embedded verbatim. A 2xx status is success; anything else is reported as
// not-delivered and left to the caller to retry.
func (c *Client) SendEvent(ctx context.Context, eventType, payload string) error {
	doc := eventDocument{
		DeviceID:   c.deviceID,
		DeviceType: "GATEWAY",
		EventType:  eventType,
		CreatedAt:  timestamp(),
	}
	if payload != "" {
		doc.Payload = json.RawMessage(payload)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("cloud: encoding event: %w", err)
	}

	status, _, err := c.exchange(ctx, c.cfg.EventPath, body)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: status %d", ErrRejected, status)
	}

	c.log.Debug("event delivered", "type", eventType, "status", status)
	return nil
}

// linkCodeResponse is the body returned by the pairing endpoint.
type linkCodeResponse struct {
	LinkCode string `json:"link_code"`
}

// RequestLinkCode asks the cloud for a short-lived pairing code the user
// enters in the app to associate this gateway with their account.
func (c *Client) RequestLinkCode(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"device_id": c.deviceID})
	if err != nil {
		return "", fmt.Errorf("cloud: encoding link request: %w", err)
	}

	status, resp, err := c.exchange(ctx, c.cfg.TokenPath, body)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w: status %d", ErrRejected, status)
	}

	var decoded linkCodeResponse
	if err := json.Unmarshal(resp, &decoded); err != nil {
		return "", fmt.Errorf("cloud: decoding link response: %w", err)
	}
	if decoded.LinkCode == "" {
		return "", fmt.Errorf("cloud: empty link code in response")
	}
	return decoded.LinkCode, nil
}

// timestamp returns the current time in ISO-8601 UTC. The host clock is
// NTP-synced by the OS; there is no unsynced-clock state to handle here.
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
