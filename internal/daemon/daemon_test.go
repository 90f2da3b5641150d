package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/wethinkt/go-sentinel/internal/audit"
	"github.com/wethinkt/go-sentinel/internal/watcher"
)

func TestRefreshCachesRecord(t *testing.T) {
	d := newTestDaemon(t)
	key := filepath.Join(t.TempDir(), "task.md")
	writeFileT(t, key, "+++\nsession = \"task\"\nsteps_completed = [1]\ntotal_steps = 3\n+++\n")

	rec := d.refresh(key)
	if rec == nil {
		t.Fatal("refresh returned nil for valid session file")
	}
	if rec.ContinuationStep() != 2 {
		t.Errorf("continuation step = %d, want 2", rec.ContinuationStep())
	}

	d.mu.Lock()
	_, cached := d.records[key]
	d.mu.Unlock()
	if !cached {
		t.Error("record should be cached after refresh")
	}
}

func TestRefreshKeepsLastGoodRecord(t *testing.T) {
	d := newTestDaemon(t)
	key := filepath.Join(t.TempDir(), "task.md")
	writeFileT(t, key, "+++\nsteps_completed = [1, 2]\n+++\n")

	first := d.refresh(key)
	if first == nil {
		t.Fatal("first refresh returned nil")
	}

	// A truncated rewrite must not discard what we already know.
	writeFileT(t, key, "+++\nsteps_completed = [broken")
	second := d.refresh(key)
	if second != first {
		t.Error("refresh should fall back to the cached record on extraction failure")
	}
}

func TestRefreshSupersededSessionResetsState(t *testing.T) {
	d := newTestDaemon(t)
	key := filepath.Join(t.TempDir(), "task.md")
	writeFileT(t, key, "+++\nsteps_completed = [1, 2, 3]\n+++\n")
	d.refresh(key)

	// Progress going backwards means the file now holds a new session.
	writeFileT(t, key, "+++\nsteps_completed = [1]\n+++\n")
	rec := d.refresh(key)
	if rec == nil {
		t.Fatal("refresh returned nil")
	}
	if rec.MaxCompletedStep() != 1 {
		t.Errorf("max completed step = %d, want 1", rec.MaxCompletedStep())
	}
}

func TestProcessRateLimitedStopResumes(t *testing.T) {
	d := newTestDaemon(t)
	dir := t.TempDir()
	key := filepath.Join(dir, "task.md")
	writeFileT(t, key, "+++\nsession = \"task\"\nsteps_completed = [1]\ntotal_steps = 4\n+++\n")
	writeFileT(t, key+".log", "error: 429 too many requests\n")

	d.process(context.Background(), key, watcher.Event{Type: watcher.FileChanged, Path: key})

	entries, err := audit.Tail(d.auditPath, 1)
	if err != nil {
		t.Fatalf("audit tail: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Outcome != "resumed" {
		t.Errorf("outcome = %q, want resumed", entries[0].Outcome)
	}
	if entries[0].Verdict != "rate_limit" {
		t.Errorf("verdict = %q, want rate_limit", entries[0].Verdict)
	}
}

func TestProcessCrashRestarts(t *testing.T) {
	d := newTestDaemon(t)
	dir := t.TempDir()
	key := filepath.Join(dir, "task.md")
	writeFileT(t, key, "+++\nsteps_completed = [1]\ntotal_steps = 4\n+++\n")

	ev := watcher.Event{
		Type:     watcher.ProcessStopped,
		Path:     key,
		Exited:   true,
		ExitCode: 1,
	}
	d.process(context.Background(), key, ev)

	entries, err := audit.Tail(d.auditPath, 1)
	if err != nil {
		t.Fatalf("audit tail: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != "restarted" {
		t.Fatalf("entries = %+v, want one restarted entry", entries)
	}
}

func TestProcessCompletedSessionNoAction(t *testing.T) {
	d := newTestDaemon(t)
	key := filepath.Join(t.TempDir(), "task.md")
	writeFileT(t, key, "+++\nsteps_completed = [1, 2, 3]\ntotal_steps = 3\n+++\n")

	d.process(context.Background(), key, watcher.Event{Type: watcher.FileChanged, Path: key})

	entries, err := audit.Tail(d.auditPath, 1)
	if err != nil {
		t.Fatalf("audit tail: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != "not_applicable" {
		t.Fatalf("entries = %+v, want one not_applicable entry", entries)
	}
}
