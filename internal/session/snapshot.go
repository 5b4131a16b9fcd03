package session

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

const (
	IndicatorNeedsInput = "🔴"
	IndicatorWorking    = "🟢"
	IndicatorNone       = "⚪"
)

// maxCwdWidth bounds the cwd part of a title in terminal cells.
const maxCwdWidth = 48

// homeDir is swapped in tests.
var homeDir = os.UserHomeDir

// View is a session plus the strings an observer renders for it.
type View struct {
	Session
	Indicator string        `json:"indicator"`
	ShortCwd  string        `json:"short_cwd"`
	IdleFor   time.Duration `json:"idle_ns,omitempty"`
	Title     string        `json:"title"`
}

// Snapshot is a read-only copy of the store at one instant.
type Snapshot struct {
	Sessions  []View    `json:"sessions"`
	Indicator string    `json:"indicator"`
	Tooltip   string    `json:"tooltip"`
	TakenAt   time.Time `json:"taken_at"`
}

// NeedsInputCount counts sessions waiting on the user.
func (s Snapshot) NeedsInputCount() int {
	n := 0
	for _, v := range s.Sessions {
		if v.NeedsInput() {
			n++
		}
	}
	return n
}

// NewSnapshot orders sessions needs-input first, then by cwd, then by id, and
// derives their display strings relative to now.
func NewSnapshot(sessions []Session, now time.Time) Snapshot {
	sorted := make([]Session, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.NeedsInput() != b.NeedsInput() {
			return a.NeedsInput()
		}
		if a.Cwd != b.Cwd {
			return a.Cwd < b.Cwd
		}
		return a.ID < b.ID
	})

	snap := Snapshot{Sessions: make([]View, 0, len(sorted)), TakenAt: now}
	for _, sess := range sorted {
		snap.Sessions = append(snap.Sessions, newView(sess, now))
	}

	needs := snap.NeedsInputCount()
	switch {
	case len(snap.Sessions) == 0:
		snap.Indicator = IndicatorNone
		snap.Tooltip = "ccbeacon: no sessions"
	case needs > 0:
		snap.Indicator = IndicatorNeedsInput
		snap.Tooltip = fmt.Sprintf("ccbeacon: %d of %d needs input", needs, len(snap.Sessions))
	default:
		snap.Indicator = IndicatorWorking
		snap.Tooltip = fmt.Sprintf("ccbeacon: %d working", len(snap.Sessions))
	}
	return snap
}

func newView(sess Session, now time.Time) View {
	v := View{Session: sess, Indicator: IndicatorWorking, ShortCwd: ShortenPath(sess.Cwd)}
	cwd := runewidth.Truncate(v.ShortCwd, maxCwdWidth, "…")
	if sess.NeedsInput() {
		v.Indicator = IndicatorNeedsInput
		if !sess.NeedsInputSince.IsZero() {
			v.IdleFor = now.Sub(sess.NeedsInputSince)
			if v.IdleFor < 0 {
				v.IdleFor = 0
			}
		}
		v.Title = fmt.Sprintf("%s %s  idle %s", v.Indicator, cwd, FormatIdle(v.IdleFor))
		return v
	}
	v.Title = v.Indicator + " " + cwd
	return v
}

// ShortenPath replaces the home directory with ~ and collapses paths with more
// than three components to their last two.
func ShortenPath(path string) string {
	short := path
	if home, err := homeDir(); err == nil && home != "" && home != "/" {
		if short == home {
			short = "~"
		} else if rest, ok := strings.CutPrefix(short, home+"/"); ok {
			short = "~/" + rest
		}
	}
	var parts []string
	for _, p := range strings.Split(short, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 3 {
		return ".../" + strings.Join(parts[len(parts)-2:], "/")
	}
	return short
}

// FormatIdle renders d as "Xm Ys", or "Ys" under a minute.
func FormatIdle(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	if m := secs / 60; m > 0 {
		return fmt.Sprintf("%dm %ds", m, secs%60)
	}
	return fmt.Sprintf("%ds", secs)
}
