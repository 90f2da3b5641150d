package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileWatcher_EmitsDebouncedChange(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWatcher([]string{dir}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	path := filepath.Join(dir, "session.md")
	// Burst of writes should coalesce into a single event.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("+++\ncurrent_step = 1\n+++\n"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case ev := <-events:
		if ev.Type != FileChanged {
			t.Errorf("expected FileChanged, got %v", ev.Type)
		}
		if filepath.Base(ev.Path) != "session.md" {
			t.Errorf("unexpected path %q", ev.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	// No second event for the same burst.
	select {
	case ev := <-events:
		t.Errorf("unexpected extra event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFileWatcher_IgnoresNonSessionFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWatcher([]string{dir}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ev := <-events:
		t.Errorf("unexpected event for non-markdown file: %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestFileWatcher_ShutdownWithPendingTimers(t *testing.T) {
	// Cancel while debounce timers are still pending. The pending timers
	// fire after the event channel closes; they must not panic the process.
	for i := 0; i < 40; i++ {
		dir := t.TempDir()

		w, err := NewFileWatcher([]string{dir}, 5*time.Millisecond)
		if err != nil {
			t.Fatalf("NewFileWatcher: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		events, err := w.Start(ctx)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}

		for j := 0; j < 3; j++ {
			name := filepath.Join(dir, "s"+string(rune('a'+j))+".md")
			if err := os.WriteFile(name, []byte("+++\n+++\n"), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
		}
		// Let fsnotify deliver so timers get scheduled, then tear down
		// before the debounce elapses.
		time.Sleep(2 * time.Millisecond)
		cancel()

		for range events {
			// Drain until the loop closes the channel.
		}
		w.Stop()
	}
	// Wait out any stray timer; a send after close would panic here.
	time.Sleep(20 * time.Millisecond)
}

func TestFileWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWatcher([]string{dir}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	sub := filepath.Join(dir, "project")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(sub, "s.md"), []byte("+++\n+++\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ev := <-events:
		if filepath.Base(ev.Path) != "s.md" {
			t.Errorf("unexpected path %q", ev.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event for file in new subdirectory")
	}
}
