package hooks

import (
	"encoding/json"
	"strings"

	"github.com/ccbeacon/ccbeacon/internal/event"
)

// Payload is the JSON the assistant writes to a hook's stdin. Only the fields
// ccbeacon needs are decoded.
type Payload struct {
	HookEventName    string `json:"hook_event_name"`
	SessionID        string `json:"session_id"`
	TranscriptPath   string `json:"transcript_path"`
	Cwd              string `json:"cwd"`
	Source           string `json:"source"`
	NotificationType string `json:"notification_type"`
	Message          string `json:"message"`
}

// ParsePayload decodes data. Empty input yields a zero Payload.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if len(strings.TrimSpace(string(data))) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// EventType maps the hook event name to a wire event type. It returns "" for
// hooks ccbeacon does not track.
func (p Payload) EventType() string {
	switch p.HookEventName {
	case "SessionStart":
		return event.TypeSessionStart
	case "SessionEnd":
		return event.TypeSessionEnd
	case "UserPromptSubmit":
		return event.TypeUserPrompt
	case "PreToolUse":
		return event.TypePreToolUse
	case "Stop", "SubagentStop":
		return event.TypeStop
	case "PermissionRequest":
		return event.TypePermissionPrompt
	case "Notification":
		return p.notificationType()
	default:
		return ""
	}
}

func (p Payload) notificationType() string {
	switch p.NotificationType {
	case "idle_prompt":
		return event.TypeIdlePrompt
	case "permission_prompt", "elicitation_dialog":
		return event.TypePermissionPrompt
	}
	msg := strings.ToLower(p.Message)
	if strings.Contains(msg, "permission") {
		return event.TypePermissionPrompt
	}
	return event.TypeIdlePrompt
}

// Event builds the wire event. explicitType, when set, wins over the hook
// event name. pid <= 0 leaves the pid absent.
func (p Payload) Event(explicitType string, pid int) event.Event {
	typ := explicitType
	if typ == "" {
		typ = p.EventType()
	}
	ev := event.Event{
		Type:           typ,
		SessionID:      p.SessionID,
		Cwd:            p.Cwd,
		TranscriptPath: p.TranscriptPath,
		Source:         p.Source,
	}
	if pid > 0 {
		ev.PID = pid
	}
	return ev
}
