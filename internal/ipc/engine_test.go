package ipc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccbeacon/ccbeacon/internal/session"
)

func runEngine(t *testing.T) *session.Engine {
	t.Helper()
	e := session.NewEngine()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return e
}

func TestListenerFeedsEngine(t *testing.T) {
	e := runEngine(t)
	l := startListener(t, e)

	conn := dial(t, l.Path())
	_, err := conn.Write([]byte(`{"event_type":"user_pr`))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = conn.Write([]byte(`ompt","session_id":"s1","cwd":"/work","pid":4242}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	var snap session.Snapshot
	require.Eventually(t, func() bool {
		s, serr := e.Snapshot(context.Background())
		snap = s
		return serr == nil && len(s.Sessions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := snap.Sessions[0]
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "/work", got.Cwd)
	assert.Equal(t, session.StatusWorking, got.Status)
	assert.Equal(t, 4242, got.PID)
}

func TestListenerSessionEndThroughEngine(t *testing.T) {
	e := runEngine(t)
	l := startListener(t, e)

	conn := dial(t, l.Path())
	_, err := conn.Write([]byte(`{"event_type":"stop","session_id":"s1"}` + "\n" +
		`{"event_type":"session_end","session_id":"s1"}` + "\n" +
		`{"event_type":"idle_prompt","transcript_path":"/t/s2.jsonl"}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	var snap session.Snapshot
	require.Eventually(t, func() bool {
		s, serr := e.Snapshot(context.Background())
		snap = s
		return serr == nil && len(s.Sessions) == 1 && s.Sessions[0].ID == "s2"
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, snap.Sessions[0].NeedsInput())
}
