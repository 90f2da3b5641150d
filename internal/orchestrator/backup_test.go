package orchestrator

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestBackup_CreatesTimestampedCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plan.md")
	writeFile(t, src, "+++\ncurrent_step = 3\n+++\nbody\n")

	b := &BackupManager{Dir: filepath.Join(dir, "backups")}
	path, err := b.Backup(src)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(data) != "+++\ncurrent_step = 3\n+++\nbody\n" {
		t.Errorf("backup content mismatch: %q", data)
	}
	if filepath.Ext(path) != ".bak" {
		t.Errorf("unexpected backup name %q", path)
	}
}

func TestBackup_MissingSourceFails(t *testing.T) {
	b := &BackupManager{Dir: t.TempDir()}
	if _, err := b.Backup("/nonexistent/session.md"); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestBackup_PrunesOldestFirst(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plan.md")
	writeFile(t, src, "content")

	b := &BackupManager{Dir: filepath.Join(dir, "backups"), Retention: 3}
	var created []string
	for i := 0; i < 5; i++ {
		p, err := b.Backup(src)
		if err != nil {
			t.Fatalf("Backup %d: %v", i, err)
		}
		created = append(created, p)
	}

	remaining, _ := filepath.Glob(filepath.Join(b.Dir, "*.bak"))
	if len(remaining) != 3 {
		t.Fatalf("expected 3 backups after pruning, got %d", len(remaining))
	}

	// The newest three survive.
	sort.Strings(remaining)
	for i, want := range created[2:] {
		if remaining[i] != want {
			t.Errorf("remaining[%d] = %s, want %s", i, remaining[i], want)
		}
	}
}

func TestBackup_PruneScopedPerSession(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.md")
	other := filepath.Join(dir, "b.md")
	writeFile(t, a, "a")
	writeFile(t, other, "b")

	b := &BackupManager{Dir: filepath.Join(dir, "backups"), Retention: 2}
	if _, err := b.Backup(other); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := b.Backup(a); err != nil {
			t.Fatalf("Backup: %v", err)
		}
	}

	bBackups, _ := filepath.Glob(filepath.Join(b.Dir, "b.*.bak"))
	if len(bBackups) != 1 {
		t.Errorf("pruning of a.md removed b.md backups: %d left", len(bBackups))
	}
}
