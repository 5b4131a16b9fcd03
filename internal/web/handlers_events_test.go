package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ccbeacon/ccbeacon/internal/session"
)

// readSSEEvent returns the data line of the next event with the given name.
func readSSEEvent(t *testing.T, reader *bufio.Reader, name string) string {
	t.Helper()
	want := "event: " + name
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.TrimSpace(line) != want {
			continue
		}
		data, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read data: %v", err)
		}
		return strings.TrimPrefix(strings.TrimSpace(data), "data: ")
	}
}

func TestSessionEventsUnauthorized(t *testing.T) {
	srv := NewServer(Config{Token: "secret", Sessions: &fakeSource{}})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events/sessions", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestSessionEventsStream(t *testing.T) {
	src := &fakeSource{snap: snapshotOf(session.Session{ID: "first", Cwd: "/w", Status: session.StatusWorking})}
	srv := NewServer(Config{Sessions: src})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events/sessions", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if data := readSSEEvent(t, reader, "sessions"); !strings.Contains(data, `"id":"first"`) {
		t.Fatalf("expected initial snapshot, got %s", data)
	}

	// An identical snapshot is suppressed; a changed one is sent.
	deadline := time.Now().Add(2 * time.Second)
	for src.subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	src.set(src.snap)
	src.set(snapshotOf(session.Session{ID: "second", Cwd: "/w", Status: session.StatusNeedsInput}))

	if data := readSSEEvent(t, reader, "sessions"); !strings.Contains(data, `"id":"second"`) {
		t.Fatalf("expected updated snapshot, got %s", data)
	}
}

func TestSnapshotFingerprintIgnoresClock(t *testing.T) {
	since := time.Now().Add(-time.Minute)
	sessions := []session.Session{{ID: "a", Cwd: "/w", Status: session.StatusNeedsInput, NeedsInputSince: since}}

	a := session.NewSnapshot(sessions, time.Now())
	b := session.NewSnapshot(sessions, time.Now().Add(10*time.Second))
	if snapshotFingerprint(a) != snapshotFingerprint(b) {
		t.Fatal("fingerprint should not depend on the snapshot time")
	}

	sessions[0].Status = session.StatusWorking
	c := session.NewSnapshot(sessions, time.Now())
	if snapshotFingerprint(a) == snapshotFingerprint(c) {
		t.Fatal("fingerprint should change with session state")
	}
}
