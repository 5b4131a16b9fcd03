package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ccbeacon/ccbeacon/internal/event"
	"github.com/ccbeacon/ccbeacon/internal/session"
)

type recordingFocuser struct{ pids []int }

func (f *recordingFocuser) Focus(_ context.Context, pid int) error {
	f.pids = append(f.pids, pid)
	return nil
}

func TestSessionsEndpoint(t *testing.T) {
	src := &fakeSource{snap: snapshotOf(
		session.Session{ID: "a", Cwd: "/w", Status: session.StatusWorking},
		session.Session{ID: "b", Cwd: "/w", Status: session.StatusNeedsInput},
	)}
	srv := NewServer(Config{Sessions: src})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var got session.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Sessions) != 2 || got.Sessions[0].ID != "b" {
		t.Fatalf("expected needs-input session first, got %+v", got.Sessions)
	}
	if got.Indicator != session.IndicatorNeedsInput {
		t.Fatalf("unexpected indicator %q", got.Indicator)
	}
}

func TestSessionsEndpointUnauthorized(t *testing.T) {
	srv := NewServer(Config{Token: "secret", Sessions: &fakeSource{}})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"code":"UNAUTHORIZED"`) {
		t.Fatalf("expected UNAUTHORIZED body, got: %s", rr.Body.String())
	}
}

func TestSessionsEndpointUnavailable(t *testing.T) {
	srv := NewServer(Config{Sessions: &fakeSource{err: session.ErrEngineStopped}})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestSessionByID(t *testing.T) {
	src := &fakeSource{snap: snapshotOf(session.Session{ID: "abc", Cwd: "/w", Status: session.StatusWorking})}
	srv := NewServer(Config{Sessions: src})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"id":"abc"`) {
		t.Fatalf("expected session body, got: %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions/zzz", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions/", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestSessionMutationsRejectedWhenReadOnly(t *testing.T) {
	e := startEngine(t)
	submit(t, e, event.Event{Type: event.TypeStop, SessionID: "a", PID: 9})
	srv := NewServer(Config{Sessions: e, Actions: e, ReadOnly: true, Focuser: &recordingFocuser{}})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodDelete, "/api/sessions/a", nil),
		httptest.NewRequest(http.MethodPost, "/api/sessions/a/focus", nil),
	} {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected status %d, got %d", req.Method, req.URL.Path, http.StatusForbidden, rr.Code)
		}
	}
}

func TestSessionFocusAndForget(t *testing.T) {
	e := startEngine(t)
	submit(t, e, event.Event{Type: event.TypeStop, SessionID: "a", PID: 9})
	submit(t, e, event.Event{Type: event.TypeStop, SessionID: "nopid"})
	f := &recordingFocuser{}
	srv := NewServer(Config{Sessions: e, Actions: e, Focuser: f})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/sessions/a/focus", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("focus: expected status %d, got %d: %s", http.StatusNoContent, rr.Code, rr.Body.String())
	}
	if len(f.pids) != 1 || f.pids[0] != 9 {
		t.Fatalf("expected focus on pid 9, got %v", f.pids)
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/sessions/nopid/focus", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("focus without pid: expected status %d, got %d", http.StatusConflict, rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/sessions/a", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("forget: expected status %d, got %d", http.StatusNoContent, rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/sessions/a", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second forget: expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestSessionFocusWithoutFocuser(t *testing.T) {
	e := startEngine(t)
	submit(t, e, event.Event{Type: event.TypeStop, SessionID: "a", PID: 9})
	srv := NewServer(Config{Sessions: e, Actions: e})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/sessions/a/focus", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected status %d, got %d", http.StatusNotImplemented, rr.Code)
	}
}

func TestSessionUnknownAction(t *testing.T) {
	srv := NewServer(Config{Sessions: &fakeSource{}})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/sessions/a/explode", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
