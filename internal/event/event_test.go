package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFullMessage(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"session_start","session_id":"s1","cwd":"/p","transcript_path":"/t/s1.jsonl","source":"resume","pid":4242,"extra":{"x":1}}`))
	require.NoError(t, err)

	assert.Equal(t, Event{
		Type:           TypeSessionStart,
		SessionID:      "s1",
		Cwd:            "/p",
		TranscriptPath: "/t/s1.jsonl",
		Source:         SourceResume,
		PID:            4242,
	}, ev)
	assert.True(t, ev.IsResume())
}

func TestDecodeOptionalFieldsAbsent(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"stop"}`))
	require.NoError(t, err)
	assert.Equal(t, Event{Type: TypeStop}, ev)
}

func TestDecodeUnknownTypeAccepted(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"subagent_stop","session_id":"s"}`))
	require.NoError(t, err)
	assert.Equal(t, "subagent_stop", ev.Type)
}

func TestDecodeNonPositivePIDIsAbsent(t *testing.T) {
	ev, err := Decode([]byte(`{"event_type":"stop","pid":0}`))
	require.NoError(t, err)
	assert.Zero(t, ev.PID)

	ev, err = Decode([]byte(`{"event_type":"stop","pid":-7}`))
	require.NoError(t, err)
	assert.Zero(t, ev.PID)
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `hello`,
		"truncated":         `{"event_type":"stop"`,
		"array":             `[1,2]`,
		"null":              `null`,
		"missing type":      `{"session_id":"s1"}`,
		"type not a string": `{"event_type":7}`,
		"pid not a number":  `{"event_type":"stop","pid":"12"}`,
		"empty":             ``,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedMessage), "got %v", err)
		})
	}
}

func TestResolveSessionIDPrefersExplicitID(t *testing.T) {
	id, err := Event{SessionID: "explicit", TranscriptPath: "/a/other.jsonl"}.ResolveSessionID()
	require.NoError(t, err)
	assert.Equal(t, "explicit", id)
}

func TestResolveSessionIDFromTranscript(t *testing.T) {
	id, err := Event{TranscriptPath: "/home/u/.claude/projects/-p/abc-123.jsonl"}.ResolveSessionID()
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
}

func TestResolveSessionIDUnresolvable(t *testing.T) {
	cases := []Event{
		{},
		{TranscriptPath: "/a/b/notes.txt"},
		{TranscriptPath: "/a/b/.jsonl"},
		{TranscriptPath: "/a/b/"},
	}
	for _, ev := range cases {
		_, err := ev.ResolveSessionID()
		assert.ErrorIs(t, err, ErrUnresolvableIdentity, "transcript %q", ev.TranscriptPath)
	}
}

func TestEncodeRoundTripsThroughDecode(t *testing.T) {
	in := Event{Type: TypeUserPrompt, SessionID: "s1", PID: 99}
	line, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), line[len(line)-1])

	out, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestIsTermination(t *testing.T) {
	assert.True(t, Event{Type: TypeSessionEnd}.IsTermination())
	assert.False(t, Event{Type: TypeStop}.IsTermination())
	assert.False(t, Event{Type: TypeSessionStart, Source: "startup"}.IsResume())
}
