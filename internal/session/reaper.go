package session

import (
	"time"

	"github.com/ccbeacon/ccbeacon/internal/process"
)

// DefaultReaperInterval is how often the engine probes session pids.
const DefaultReaperInterval = 30 * time.Second

// Reaper evicts sessions whose process has exited. Sessions without a pid are
// left alone.
type Reaper struct {
	Store  *Store
	Prober process.Prober
}

// Sweep probes every session with a pid and returns the ids it removed.
func (r *Reaper) Sweep() []string {
	prober := r.Prober
	if prober == nil {
		prober = process.OS
	}
	var removed []string
	for _, sess := range r.Store.All() {
		if sess.PID <= 0 {
			continue
		}
		if !prober.Alive(sess.PID) {
			r.Store.Remove(sess.ID)
			removed = append(removed, sess.ID)
		}
	}
	return removed
}
