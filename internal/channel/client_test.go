package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/ghost-gateway/internal/infrastructure/config"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/logging"
)

// =============================================================================
// Test Helpers
// =============================================================================

// fakeRealtime is a scriptable websocket peer standing in for the cloud.
type fakeRealtime struct {
	server *httptest.Server

	mu    sync.Mutex
	conns chan *websocket.Conn
}

func newFakeRealtime(t *testing.T) *fakeRealtime {
	t.Helper()

	f := &fakeRealtime{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		f.conns <- conn
	}))
	t.Cleanup(f.server.Close)

	return f
}

// host returns the host:port the client should dial.
func (f *fakeRealtime) host() string {
	return strings.TrimPrefix(f.server.URL, "http://")
}

// accept waits for the next client connection.
func (f *fakeRealtime) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-f.conns:
		return conn
	case <-time.After(3 * time.Second):
		t.Fatal("no client connection arrived")
		return nil
	}
}

// readEnvelope reads one envelope with a bounded deadline.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("reading envelope: %v", err)
	}
	return env
}

// sendReplyOK acknowledges a join on the given topic.
func sendReplyOK(t *testing.T, conn *websocket.Conn, topic, ref string) {
	t.Helper()
	env := Envelope{
		Topic:   topic,
		Event:   eventReply,
		Ref:     ref,
		Payload: json.RawMessage(`{"status":"ok"}`),
	}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("writing reply: %v", err)
	}
}

func newTestClient(f *fakeRealtime) *Client {
	c := New(config.ChannelConfig{
		Host:              f.host(),
		APIKey:            "test-key",
		HeartbeatInterval: 60,
		ReconnectDelay:    1,
	}, logging.Default())
	c.scheme = "ws"
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// =============================================================================
// URL Building
// =============================================================================

func TestSocketURL(t *testing.T) {
	c := New(config.ChannelConfig{
		Host:   "example.supabase.co",
		APIKey: "anon-key",
	}, logging.Default())

	got := c.socketURL()
	want := "wss://example.supabase.co/realtime/v1/websocket?apikey=anon-key&vsn=2.0.0"
	if got != want {
		t.Errorf("socket URL = %q, want %q", got, want)
	}
}

// =============================================================================
// Filtered Subscriptions
// =============================================================================

func TestBuildFilteredJoin(t *testing.T) {
	topic, payload, err := buildFilteredJoin("public", "system_commands", "INSERT")
	if err != nil {
		t.Fatalf("buildFilteredJoin failed: %v", err)
	}

	if topic != "realtime:public:system_commands" {
		t.Errorf("topic = %q", topic)
	}

	var decoded postgresChangesPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("join payload is not valid JSON: %v", err)
	}
	changes := decoded.Config.PostgresChanges
	if len(changes) != 1 {
		t.Fatalf("expected 1 change filter, got %d", len(changes))
	}
	if changes[0].Event != "INSERT" || changes[0].Schema != "public" || changes[0].Table != "system_commands" {
		t.Errorf("unexpected filter: %+v", changes[0])
	}
}

// =============================================================================
// Join / Dispatch Protocol
// =============================================================================

func TestClient_JoinAndDispatch(t *testing.T) {
	f := newFakeRealtime(t)
	c := newTestClient(f)

	var mu sync.Mutex
	var events []string
	if err := c.Subscribe("realtime:public:things", nil, func(event string, _ json.RawMessage) {
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	server := f.accept(t)
	defer server.Close()

	join := readEnvelope(t, server)
	if join.Event != eventJoin || join.Topic != "realtime:public:things" {
		t.Fatalf("expected join for topic, got %+v", join)
	}
	if join.Ref != "1" {
		t.Errorf("first ref = %q, want 1", join.Ref)
	}

	// Before the ack, events must be dropped.
	server.WriteJSON(Envelope{
		Topic: "realtime:public:things", Event: "postgres_changes",
		Payload: json.RawMessage(`{}`),
	})
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	early := len(events)
	mu.Unlock()
	if early != 0 {
		t.Fatalf("callback fired before join ack")
	}

	sendReplyOK(t, server, "realtime:public:things", join.Ref)
	waitFor(t, c.IsConnected)

	server.WriteJSON(Envelope{
		Topic: "realtime:public:things", Event: "postgres_changes",
		Payload: json.RawMessage(`{"x":1}`),
	})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	})
	mu.Lock()
	if events[0] != "postgres_changes" {
		t.Errorf("unexpected event %q", events[0])
	}
	mu.Unlock()
}

func TestClient_UnknownTopicDropped(t *testing.T) {
	f := newFakeRealtime(t)
	c := newTestClient(f)

	fired := false
	c.Subscribe("realtime:public:things", nil, func(string, json.RawMessage) {
		fired = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	server := f.accept(t)
	defer server.Close()

	join := readEnvelope(t, server)
	sendReplyOK(t, server, join.Topic, join.Ref)

	// An event on a topic nobody subscribed to.
	server.WriteJSON(Envelope{
		Topic: "realtime:public:other", Event: "postgres_changes",
		Payload: json.RawMessage(`{}`),
	})
	time.Sleep(100 * time.Millisecond)

	if fired {
		t.Error("callback fired for unknown topic")
	}
}

// =============================================================================
// Reconnection
// =============================================================================

func TestClient_RejoinsAfterReconnect(t *testing.T) {
	f := newFakeRealtime(t)
	c := newTestClient(f)

	var mu sync.Mutex
	delivered := 0
	c.Subscribe("realtime:public:things", nil, func(string, json.RawMessage) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	// First connection: join, ack, then kill the socket.
	first := f.accept(t)
	join1 := readEnvelope(t, first)
	sendReplyOK(t, first, join1.Topic, join1.Ref)
	first.Close()

	// Second connection: exactly one fresh join, ref counter reset.
	second := f.accept(t)
	defer second.Close()

	join2 := readEnvelope(t, second)
	if join2.Event != eventJoin || join2.Topic != "realtime:public:things" {
		t.Fatalf("expected rejoin, got %+v", join2)
	}
	if join2.Ref != "1" {
		t.Errorf("ref not reset on reconnect: %q", join2.Ref)
	}

	// Events before the fresh ack must be dropped.
	second.WriteJSON(Envelope{
		Topic: "realtime:public:things", Event: "postgres_changes",
		Payload: json.RawMessage(`{}`),
	})
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	early := delivered
	mu.Unlock()
	if early != 0 {
		t.Fatal("callback fired before fresh join ack")
	}

	sendReplyOK(t, second, join2.Topic, join2.Ref)
	time.Sleep(100 * time.Millisecond)

	second.WriteJSON(Envelope{
		Topic: "realtime:public:things", Event: "postgres_changes",
		Payload: json.RawMessage(`{}`),
	})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 1
	})
}

// =============================================================================
// Send
// =============================================================================

func TestClient_SendWhileDisconnected(t *testing.T) {
	c := New(config.ChannelConfig{Host: "nowhere.invalid", APIKey: "k"},
		logging.Default())

	err := c.Send("realtime:public:things", "broadcast", map[string]any{"a": 1})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_SubscribeDuplicateTopic(t *testing.T) {
	c := New(config.ChannelConfig{Host: "nowhere.invalid", APIKey: "k"},
		logging.Default())

	if err := c.Subscribe("realtime:public:things", nil, func(string, json.RawMessage) {}); err != nil {
		t.Fatalf("first Subscribe failed: %v", err)
	}

	err := c.Subscribe("realtime:public:things", nil, func(string, json.RawMessage) {})
	if !errors.Is(err, ErrDuplicateTopic) {
		t.Errorf("expected ErrDuplicateTopic, got %v", err)
	}
	if len(c.subs) != 1 {
		t.Errorf("subscription count = %d, want 1", len(c.subs))
	}
}

func TestClient_SubscribeWhileConnectedJoinsImmediately(t *testing.T) {
	f := newFakeRealtime(t)
	c := newTestClient(f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	server := f.accept(t)
	defer server.Close()
	waitFor(t, c.IsConnected)

	if err := c.Subscribe("realtime:public:late", nil, func(string, json.RawMessage) {}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	join := readEnvelope(t, server)
	if join.Topic != "realtime:public:late" || join.Event != eventJoin {
		t.Errorf("expected immediate join, got %+v", join)
	}
}

// =============================================================================
// Token Inspection
// =============================================================================

func TestInspectToken(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "anon",
		"ref":  "abcdefgh",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	info, err := InspectToken(signed)
	if err != nil {
		t.Fatalf("InspectToken failed: %v", err)
	}
	if info.Role != "anon" {
		t.Errorf("role = %q", info.Role)
	}
	if info.ProjectRef != "abcdefgh" {
		t.Errorf("project ref = %q", info.ProjectRef)
	}
	if info.Expired() {
		t.Error("token reported expired")
	}
}

func TestInspectToken_Invalid(t *testing.T) {
	if _, err := InspectToken("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}

// captureLogger returns a logger writing to the returned buffer.
func captureLogger() (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &logging.Logger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}, &buf
}

func TestClient_PreflightWarnsOnMalformedKey(t *testing.T) {
	log, buf := captureLogger()
	c := New(config.ChannelConfig{Host: "nowhere.invalid", APIKey: "not-a-jwt"}, log)

	c.preflightToken()

	if !strings.Contains(buf.String(), "not a valid JWT") {
		t.Errorf("expected malformed-key warning, got %q", buf.String())
	}
}

func TestClient_PreflightWarnsOnExpiredKey(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "anon",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	log, buf := captureLogger()
	c := New(config.ChannelConfig{Host: "nowhere.invalid", APIKey: signed}, log)

	c.preflightToken()

	if !strings.Contains(buf.String(), "expired") {
		t.Errorf("expected expired-key warning, got %q", buf.String())
	}
}

func TestClient_PreflightQuietOnValidKey(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "anon",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	log, buf := captureLogger()
	c := New(config.ChannelConfig{Host: "nowhere.invalid", APIKey: signed}, log)

	c.preflightToken()

	if buf.Len() != 0 {
		t.Errorf("expected no warnings for a valid key, got %q", buf.String())
	}
}
