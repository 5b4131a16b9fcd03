package session

import (
	"time"

	"github.com/ccbeacon/ccbeacon/internal/event"
)

// DefaultOrphanWindow is how recent a same-cwd session must be for a resume
// start to discard it.
const DefaultOrphanWindow = 5 * time.Second

// Classify maps an event type to the status it implies. Unknown types count
// as working.
func Classify(eventType string) Status {
	switch eventType {
	case event.TypeStop, event.TypeIdlePrompt, event.TypePermissionPrompt:
		return StatusNeedsInput
	case event.TypeSessionStart, event.TypeUserPrompt, event.TypePreToolUse:
		return StatusWorking
	default:
		return StatusWorking
	}
}

// Machine applies events to a Store.
type Machine struct {
	Store        *Store
	Now          func() time.Time
	OrphanWindow time.Duration
	// Notify runs after every accepted event, including termination of an
	// unknown session.
	Notify func()
}

// Apply folds ev into the store. It returns the orphan ids removed by a resume
// start alongside any identity error; an event with no resolvable id leaves
// the store untouched.
func (m *Machine) Apply(ev event.Event) ([]string, error) {
	id, err := ev.ResolveSessionID()
	if err != nil {
		return nil, err
	}
	now := m.now()

	if ev.IsTermination() {
		m.Store.Remove(id)
		m.notify()
		return nil, nil
	}

	var orphans []string
	if ev.IsResume() {
		orphans = m.dropOrphans(id, ev.Cwd, now)
	}

	status := Classify(ev.Type)
	sess, exists := m.Store.Get(id)
	if !exists {
		sess = Session{ID: id, Cwd: UnknownCwd, Status: status}
		if status == StatusNeedsInput {
			sess.NeedsInputSince = now
		}
	} else {
		switch {
		case status == StatusNeedsInput && sess.Status != StatusNeedsInput:
			sess.NeedsInputSince = now
		case status == StatusWorking:
			sess.NeedsInputSince = time.Time{}
		}
		sess.Status = status
	}
	if ev.Cwd != "" {
		sess.Cwd = ev.Cwd
	}
	if ev.PID > 0 {
		sess.PID = ev.PID
	}
	if now.After(sess.LastEventTime) {
		sess.LastEventTime = now
	}
	m.Store.Put(sess)

	m.notify()
	return orphans, nil
}

// dropOrphans removes every other session in cwd whose last event is younger
// than the orphan window.
func (m *Machine) dropOrphans(keep, cwd string, now time.Time) []string {
	window := m.OrphanWindow
	if window <= 0 {
		window = DefaultOrphanWindow
	}
	var removed []string
	for _, sess := range m.Store.All() {
		if sess.ID == keep || sess.Cwd != cwd {
			continue
		}
		if now.Sub(sess.LastEventTime) < window {
			m.Store.Remove(sess.ID)
			removed = append(removed, sess.ID)
		}
	}
	return removed
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Machine) notify() {
	if m.Notify != nil {
		m.Notify()
	}
}
