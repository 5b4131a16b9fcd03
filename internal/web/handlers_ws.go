package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ccbeacon/ccbeacon/internal/session"
)

type wsClientMessage struct {
	Type string `json:"type"`
}

type wsServerMessage struct {
	Type     string            `json:"type"` // snapshot, status, error
	Event    string            `json:"event,omitempty"`
	Code     string            `json:"code,omitempty"`
	Message  string            `json:"message,omitempty"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Time     time.Time         `json:"time,omitzero"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     allowWSOrigin,
}

func allowWSOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}
	return strings.EqualFold(originURL.Host, r.Host)
}

type wsConnWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConnWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteJSON(v)
}

// handleWS pushes a snapshot on connect and after every change. Clients may
// send {"type":"ping"}.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodGet) {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	writer := &wsConnWriter{conn: conn}

	changes, unsubscribe := s.cfg.Sessions.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	push := func() error {
		snap, err := s.cfg.Sessions.Snapshot(ctx)
		if err != nil {
			_ = writer.WriteJSON(wsServerMessage{Type: "error", Code: "UNAVAILABLE", Message: "failed to load sessions", Time: time.Now().UTC()})
			return err
		}
		return writer.WriteJSON(wsServerMessage{Type: "snapshot", Snapshot: &snap, Time: time.Now().UTC()})
	}
	if err := push(); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseNoStatusReceived) {
					webLog.Warn("websocket_closed_unexpectedly", slog.String("error", err.Error()))
				}
				return
			}
			var msg wsClientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				_ = writer.WriteJSON(wsServerMessage{Type: "error", Code: "INVALID_MESSAGE", Message: "invalid json payload", Time: time.Now().UTC()})
				continue
			}
			switch msg.Type {
			case "ping":
				_ = writer.WriteJSON(wsServerMessage{Type: "status", Event: "pong", Time: time.Now().UTC()})
			default:
				_ = writer.WriteJSON(wsServerMessage{Type: "error", Code: "UNSUPPORTED_MESSAGE", Message: "supported message types: ping", Time: time.Now().UTC()})
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-changes:
			if err := push(); err != nil {
				return
			}
		}
	}
}
