package orchestrator

import "time"

// Crash loop detection defaults: the 4th crash within a rolling 5 minute
// window suspends automatic restart.
const (
	DefaultCrashWindow    = 5 * time.Minute
	DefaultCrashThreshold = 4
)

// crashWindow tracks crash timestamps for one key inside a rolling window.
type crashWindow struct {
	times []time.Time
}

// add records a crash at now, drops timestamps older than window, and
// returns how many crashes remain inside the window (including this one).
func (w *crashWindow) add(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	kept := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.times = append(kept, now)
	return len(w.times)
}
