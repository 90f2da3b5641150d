package watcher

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"
)

func TestProcessWatcher_TrackAndLookup(t *testing.T) {
	p := NewProcessWatcher(0)
	p.Track(1234, "/tmp/a.md")

	path, ok := p.SessionFor(1234)
	if !ok || path != "/tmp/a.md" {
		t.Errorf("SessionFor = %q, %v", path, ok)
	}
	if _, ok := p.SessionFor(999999); ok {
		t.Error("expected unknown pid")
	}
}

func TestProcessWatcher_SweepDetectsDeadProcess(t *testing.T) {
	// Spawn a short-lived process and wait for it to exit.
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := cmd.Process.Pid
	cmd.Wait()

	p := NewProcessWatcher(time.Millisecond)
	p.Track(pid, "/tmp/dead.md")
	p.ReportExit(pid, ExitInfo{ExitCode: 0})

	events := p.sweep()
	if len(events) != 2 {
		t.Fatalf("expected start and stop events, got %d", len(events))
	}
	if events[0].Type != ProcessStarted || events[0].PID != pid {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	ev := events[1]
	if ev.Type != ProcessStopped || ev.PID != pid || ev.Path != "/tmp/dead.md" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if !ev.Exited || ev.ExitCode != 0 {
		t.Errorf("expected reported exit info, got %+v", ev)
	}

	// Dead processes are dropped from tracking.
	if _, ok := p.SessionFor(pid); ok {
		t.Error("expected pid forgotten after sweep")
	}
}

func TestProcessWatcher_LiveProcessNotSwept(t *testing.T) {
	p := NewProcessWatcher(time.Millisecond)
	p.Track(os.Getpid(), "/tmp/self.md")

	events := p.sweep()
	if len(events) != 1 || events[0].Type != ProcessStarted {
		t.Fatalf("expected only the start event, got %+v", events)
	}

	// The start event is emitted once; a live process produces nothing more.
	if events := p.sweep(); len(events) != 0 {
		t.Errorf("live process swept: %+v", events)
	}
}

func TestProcessWatcher_RunStopsOnCancel(t *testing.T) {
	p := NewProcessWatcher(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	out := make(chan Event, 1)
	go func() {
		p.Run(ctx, out)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
