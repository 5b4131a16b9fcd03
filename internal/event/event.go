// Package event defines the wire message hooks send to the daemon and the
// rule that maps a message to the session it belongs to.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Known event types. The set is open: anything else is still a valid event.
const (
	TypeSessionStart     = "session_start"
	TypeSessionEnd       = "session_end"
	TypeUserPrompt       = "user_prompt"
	TypePreToolUse       = "pre_tool_use"
	TypeStop             = "stop"
	TypeIdlePrompt       = "idle_prompt"
	TypePermissionPrompt = "permission_prompt"
)

// SourceResume marks a session_start emitted by a resumed session.
const SourceResume = "resume"

const transcriptSuffix = ".jsonl"

var (
	// ErrMalformedMessage means the bytes are not a decodable event.
	ErrMalformedMessage = errors.New("malformed event message")
	// ErrUnresolvableIdentity means neither session_id nor transcript_path names a session.
	ErrUnresolvableIdentity = errors.New("event has no resolvable session id")
)

// Event is one lifecycle notification from a session hook.
// Optional string fields are empty when absent; PID is 0 when absent.
type Event struct {
	Type           string `json:"event_type"`
	SessionID      string `json:"session_id,omitempty"`
	Cwd            string `json:"cwd,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	Source         string `json:"source,omitempty"`
	PID            int    `json:"pid,omitempty"`
}

// wireEvent distinguishes a missing event_type from an empty one.
type wireEvent struct {
	Type           *string `json:"event_type"`
	SessionID      *string `json:"session_id"`
	Cwd            *string `json:"cwd"`
	TranscriptPath *string `json:"transcript_path"`
	Source         *string `json:"source"`
	PID            *int    `json:"pid"`
}

// Decode parses one message. Unknown fields are ignored; a message that is not
// a JSON object, carries mistyped fields, or has no event_type fails with
// ErrMalformedMessage.
func Decode(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if w.Type == nil {
		return Event{}, fmt.Errorf("%w: missing event_type", ErrMalformedMessage)
	}

	ev := Event{
		Type:           *w.Type,
		SessionID:      deref(w.SessionID),
		Cwd:            deref(w.Cwd),
		TranscriptPath: deref(w.TranscriptPath),
		Source:         deref(w.Source),
	}
	if w.PID != nil && *w.PID > 0 {
		ev.PID = *w.PID
	}
	return ev, nil
}

// Encode renders ev as a single newline-terminated wire line.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ResolveSessionID returns the effective session id: SessionID when set,
// otherwise the transcript file name without its .jsonl suffix.
func (e Event) ResolveSessionID() (string, error) {
	if e.SessionID != "" {
		return e.SessionID, nil
	}
	if e.TranscriptPath != "" {
		name := path.Base(e.TranscriptPath)
		if id, ok := strings.CutSuffix(name, transcriptSuffix); ok && id != "" {
			return id, nil
		}
	}
	return "", ErrUnresolvableIdentity
}

// IsTermination reports whether the event ends its session.
func (e Event) IsTermination() bool {
	return e.Type == TypeSessionEnd
}

// IsResume reports whether the event is the start of a resumed session.
func (e Event) IsResume() bool {
	return e.Type == TypeSessionStart && e.Source == SourceResume
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
