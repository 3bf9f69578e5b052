package cloud

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ghost-gateway/internal/infrastructure/config"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/logging"
)

// =============================================================================
// Test Helpers
// =============================================================================

// fakeEndpoint accepts one-shot connections and plays back a scripted
// response, capturing the raw request bytes.
type fakeEndpoint struct {
	listener net.Listener
	response []byte

	mu       sync.Mutex
	requests [][]byte
}

func newFakeEndpoint(t *testing.T, response string) *fakeEndpoint {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	f := &fakeEndpoint{listener: ln, response: []byte(response)}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go f.serve(conn)
		}
	}()

	return f
}

func (f *fakeEndpoint) serve(conn net.Conn) {
	defer conn.Close()

	// Read until the request body has arrived; requests here are small
	// enough for one buffered read plus a drain pass.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 8192)
	total := 0
	for {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil || requestComplete(buf[:total]) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, append([]byte(nil), buf[:total]...))
	f.mu.Unlock()

	conn.Write(f.response)
}

// requestComplete reports whether the buffered request carries its full
// Content-Length body.
func requestComplete(req []byte) bool {
	he := headerEnd(req)
	if he < 0 {
		return false
	}
	cl, ok := contentLength(req[:he])
	if !ok {
		return true
	}
	return len(req)-he >= cl
}

func (f *fakeEndpoint) lastRequest() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, f *fakeEndpoint) *Client {
	t.Helper()

	c := New(config.CloudConfig{
		Host:           "cloud.test",
		EventPath:      "/functions/v1/ghost-event-public",
		TokenPath:      "/functions/v1/ghost-token-create",
		DeviceKey:      "device-secret",
		ConnectTimeout: 2,
	}, "GW-TEST", logging.Default())

	c.dial = func(_ context.Context) (net.Conn, error) {
		return net.Dial("tcp", f.listener.Addr().String())
	}
	return c
}

// =============================================================================
// Request Building
// =============================================================================

func TestBuildRequest_Headers(t *testing.T) {
	c := New(config.CloudConfig{Host: "cloud.test", DeviceKey: "secret"},
		"GW-TEST", logging.Default())

	req, err := c.buildRequest("/functions/v1/ghost-event-public", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("buildRequest failed: %v", err)
	}

	text := string(req)
	for _, want := range []string{
		"POST /functions/v1/ghost-event-public HTTP/1.1\r\n",
		"Host: cloud.test\r\n",
		"Content-Type: application/json\r\n",
		"X-Device-Key: secret\r\n",
		"Content-Length: 7\r\n",
		"Connection: close\r\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("request missing %q", want)
		}
	}
	if !strings.HasSuffix(text, "\r\n\r\n"+`{"a":1}`) {
		t.Error("body not appended after header terminator")
	}
}

func TestBuildRequest_TooLarge(t *testing.T) {
	c := New(config.CloudConfig{Host: "cloud.test", DeviceKey: "k"},
		"GW-TEST", logging.Default())

	_, err := c.buildRequest("/x", bytes.Repeat([]byte("a"), maxRequestLen))
	if !errors.Is(err, ErrRequestTooLarge) {
		t.Errorf("expected ErrRequestTooLarge, got %v", err)
	}
}

// =============================================================================
// Exchange
// =============================================================================

func TestSendEvent_Success(t *testing.T) {
	f := newFakeEndpoint(t,
		"HTTP/1.1 201 Created\r\nContent-Length: 2\r\n\r\nOK")
	c := newTestClient(t, f)

	if err := c.SendEvent(context.Background(), "state_change",
		`{"old":"ALARMA","new":"DESARMADO"}`); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}

	req := string(f.lastRequest())
	if !strings.Contains(req, `"device_id":"GW-TEST"`) {
		t.Error("device id missing from event body")
	}
	if !strings.Contains(req, `"event_type":"state_change"`) {
		t.Error("event type missing from event body")
	}
	if !strings.Contains(req, `"old":"ALARMA"`) {
		t.Error("payload not embedded verbatim")
	}
}

func TestSendEvent_RejectedStatus(t *testing.T) {
	f := newFakeEndpoint(t,
		"HTTP/1.1 401 Unauthorized\r\nContent-Length: 0\r\n\r\n")
	c := newTestClient(t, f)

	err := c.SendEvent(context.Background(), "state_change", "{}")
	if !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected, got %v", err)
	}
}

func TestExchange_ChunkedResponse(t *testing.T) {
	f := newFakeEndpoint(t,
		"HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n"+
			"5\r\nHello\r\n6\r\n World\r\n0\r\n\r\n")
	c := newTestClient(t, f)

	status, body, err := c.exchange(context.Background(), "/x", []byte("{}"))
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if status != 200 {
		t.Errorf("status = %d", status)
	}
	if string(body) != "Hello World" {
		t.Errorf("body = %q", body)
	}
}

func TestExchange_MissingStatusLine(t *testing.T) {
	f := newFakeEndpoint(t, "garbage without headers\r\n\r\n")
	c := newTestClient(t, f)

	_, _, err := c.exchange(context.Background(), "/x", []byte("{}"))
	if !errors.Is(err, ErrNoStatusLine) {
		t.Errorf("expected ErrNoStatusLine, got %v", err)
	}
}

func TestExchange_TricklingPeerIsBounded(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	// A peer that sends valid headers and then drips body bytes forever
	// without closing. Each byte arrives well inside the per-read
	// deadline, so only the wall-clock cap can end the exchange.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(time.Second))
		drain := make([]byte, 8192)
		conn.Read(drain)

		if _, err := conn.Write([]byte(
			"HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n")); err != nil {
			return
		}
		for {
			if _, err := conn.Write([]byte("a")); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	c := New(config.CloudConfig{
		Host:           "cloud.test",
		EventPath:      "/x",
		DeviceKey:      "k",
		ConnectTimeout: 2,
	}, "GW-TEST", logging.Default())
	c.dial = func(_ context.Context) (net.Conn, error) {
		return net.Dial("tcp", ln.Addr().String())
	}
	c.responseTimeout = 300 * time.Millisecond

	start := time.Now()
	_, _, err = c.exchange(context.Background(), "/x", []byte("{}"))
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("exchange took %v, want completion near the read cap", elapsed)
	}
}

func TestExchange_NotConfigured(t *testing.T) {
	c := New(config.CloudConfig{}, "GW-TEST", logging.Default())

	_, _, err := c.exchange(context.Background(), "/x", []byte("{}"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

// =============================================================================
// Pairing
// =============================================================================

func TestRequestLinkCode(t *testing.T) {
	body := `{"link_code":"ABC123"}`
	f := newFakeEndpoint(t,
		"HTTP/1.1 200 OK\r\nContent-Length: "+strconv.Itoa(len(body))+"\r\n\r\n"+body)
	c := newTestClient(t, f)

	code, err := c.RequestLinkCode(context.Background())
	if err != nil {
		t.Fatalf("RequestLinkCode failed: %v", err)
	}
	if code != "ABC123" {
		t.Errorf("link code = %q", code)
	}

	req := string(f.lastRequest())
	if !strings.Contains(req, "POST /functions/v1/ghost-token-create HTTP/1.1") {
		t.Error("request not sent to token path")
	}
}
