package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ccbeacon/ccbeacon/internal/event"
)

func wsURL(baseURL, path string) string {
	return "ws://" + strings.TrimPrefix(baseURL, "http://") + path
}

func readWSMessage(t *testing.T, conn *websocket.Conn) wsServerMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg wsServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	return msg
}

func TestWSUnauthorized(t *testing.T) {
	srv := NewServer(Config{Token: "secret", Sessions: &fakeSource{}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws"), nil)
	if err == nil {
		t.Fatal("expected websocket dial error for unauthorized request")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 response, got %+v", resp)
	}
}

func TestWSPushesSnapshots(t *testing.T) {
	e := startEngine(t)
	submit(t, e, event.Event{Type: event.TypeSessionStart, SessionID: "one", Cwd: "/w"})

	srv := NewServer(Config{Sessions: e})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readWSMessage(t, conn)
	if first.Type != "snapshot" || first.Snapshot == nil || len(first.Snapshot.Sessions) != 1 {
		t.Fatalf("expected initial snapshot with one session, got %+v", first)
	}

	submit(t, e, event.Event{Type: event.TypeStop, SessionID: "two", Cwd: "/w"})

	next := readWSMessage(t, conn)
	if next.Snapshot == nil || len(next.Snapshot.Sessions) != 2 {
		t.Fatalf("expected pushed snapshot with two sessions, got %+v", next)
	}
	if next.Snapshot.Sessions[0].ID != "two" {
		t.Fatalf("expected needs-input session first, got %s", next.Snapshot.Sessions[0].ID)
	}
}

func TestWSPingAndInvalid(t *testing.T) {
	srv := NewServer(Config{Sessions: &fakeSource{}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = readWSMessage(t, conn)

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg := readWSMessage(t, conn); msg.Event != "pong" {
		t.Fatalf("expected pong, got %+v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("write invalid: %v", err)
	}
	if msg := readWSMessage(t, conn); msg.Code != "INVALID_MESSAGE" {
		t.Fatalf("expected INVALID_MESSAGE, got %+v", msg)
	}
}

func TestAllowWSOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://localhost:8421/ws", nil)
	if !allowWSOrigin(req) {
		t.Fatal("missing origin should be allowed")
	}
	req.Header.Set("Origin", "http://localhost:8421")
	if !allowWSOrigin(req) {
		t.Fatal("same-host origin should be allowed")
	}
	req.Header.Set("Origin", "http://evil.example")
	if allowWSOrigin(req) {
		t.Fatal("cross-origin should be rejected")
	}
}
