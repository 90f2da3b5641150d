package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/wethinkt/go-sentinel/internal/watchlog"
)

// DefaultPollInterval is how often tracked processes are checked.
const DefaultPollInterval = 5 * time.Second

// ExitInfo is the exit status reported for a tracked process, typically
// supplied by whatever spawned it. When a process simply vanishes the
// poller emits a ProcessStopped event with no exit information.
type ExitInfo struct {
	ExitCode int
	Killed   bool
}

// ProcessWatcher polls tracked PIDs and emits start/stop events. Tracking
// is explicit: the daemon registers a PID together with the session file it
// belongs to.
type ProcessWatcher struct {
	interval time.Duration

	mu       sync.Mutex
	tracked  map[int]string    // pid -> session path
	reported map[int]*ExitInfo // exit info posted before the poll noticed
	pending  []Event           // start events awaiting the next poll
}

// NewProcessWatcher creates a poller. A zero interval takes the default.
func NewProcessWatcher(interval time.Duration) *ProcessWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &ProcessWatcher{
		interval: interval,
		tracked:  make(map[int]string),
		reported: make(map[int]*ExitInfo),
	}
}

// Track registers a PID as belonging to the given session file. The next
// poll emits a ProcessStarted event for it.
func (p *ProcessWatcher) Track(pid int, sessionPath string) {
	p.mu.Lock()
	p.tracked[pid] = sessionPath
	p.pending = append(p.pending, Event{Type: ProcessStarted, PID: pid, Path: sessionPath})
	p.mu.Unlock()
	watchlog.Log.Info("Tracking process", "pid", pid, "session", sessionPath)
}

// SessionFor returns the session path a PID was registered under.
func (p *ProcessWatcher) SessionFor(pid int) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	path, ok := p.tracked[pid]
	return path, ok
}

// ReportExit records exit status for a tracked PID so the next poll emits
// a ProcessStopped event carrying it. Used by spawner integrations that
// actually collect the status.
func (p *ProcessWatcher) ReportExit(pid int, info ExitInfo) {
	p.mu.Lock()
	p.reported[pid] = &info
	p.mu.Unlock()
}

// Run polls until the context is canceled, sending events to out.
func (p *ProcessWatcher) Run(ctx context.Context, out chan<- Event) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ev := range p.sweep() {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// sweep drains pending start events and checks every tracked PID,
// returning stop events for the dead ones.
func (p *ProcessWatcher) sweep() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := p.pending
	p.pending = nil
	for pid := range p.tracked {
		if alive(pid) {
			continue
		}
		ev := Event{Type: ProcessStopped, PID: pid, Path: p.tracked[pid]}
		if info := p.reported[pid]; info != nil {
			ev.Exited = true
			ev.ExitCode = info.ExitCode
			ev.Killed = info.Killed
		}
		events = append(events, ev)
		delete(p.tracked, pid)
		delete(p.reported, pid)
		watchlog.Log.Info("Process stopped", "pid", pid, "exited", ev.Exited, "code", ev.ExitCode)
	}
	return events
}
