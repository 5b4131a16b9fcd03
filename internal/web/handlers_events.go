package web

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ccbeacon/ccbeacon/internal/session"
)

var sessionEventsHeartbeatInterval = 15 * time.Second

// handleSessionEvents streams a "sessions" event with the full snapshot
// whenever the store changes.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodGet) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "stream unavailable")
		return
	}

	// Subscribe before the first read so no change slips between them.
	changes, unsubscribe := s.cfg.Sessions.Subscribe()
	defer unsubscribe()

	snap, err := s.cfg.Sessions.Snapshot(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "failed to load sessions")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	last := snapshotFingerprint(snap)
	if err := writeSSEEvent(w, flusher, "sessions", snap); err != nil {
		return
	}

	heartbeat := time.NewTicker(sessionEventsHeartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := writeSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		case <-changes:
			next, err := s.cfg.Sessions.Snapshot(ctx)
			if err != nil {
				webLog.Debug("session_stream_refresh_failed", slog.String("error", err.Error()))
				return
			}
			fp := snapshotFingerprint(next)
			if fp == last {
				continue
			}
			if err := writeSSEEvent(w, flusher, "sessions", next); err != nil {
				return
			}
			last = fp
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEComment(w http.ResponseWriter, flusher http.Flusher, comment string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", comment); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// snapshotFingerprint hashes the session records, ignoring derived idle
// durations that change with the clock.
func snapshotFingerprint(snap session.Snapshot) string {
	records := make([]session.Session, 0, len(snap.Sessions))
	for _, v := range snap.Sessions {
		records = append(records, v.Session)
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return "marshal-error"
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
