package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultRetention is how many backups are kept per session file.
const DefaultRetention = 10

// BackupManager makes timestamped copies of session files before
// destructive transitions and prunes old copies oldest-first.
type BackupManager struct {
	// Dir is where backups live.
	Dir string

	// Retention is the number of backups kept per session; zero means
	// DefaultRetention.
	Retention int
}

// Backup copies the session file into the backup directory with a
// timestamped name and prunes older copies. Returns the backup path.
func (b *BackupManager) Backup(sessionPath string) (string, error) {
	if err := os.MkdirAll(b.Dir, 0755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	src, err := os.Open(sessionPath)
	if err != nil {
		return "", fmt.Errorf("open session for backup: %w", err)
	}
	defer src.Close()

	stamp := time.Now().UTC().Format("20060102-150405.000000000")
	name := fmt.Sprintf("%s.%s.bak", baseName(sessionPath), stamp)
	dstPath := filepath.Join(b.Dir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return "", fmt.Errorf("copy backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close backup: %w", err)
	}

	b.prune(baseName(sessionPath))
	return dstPath, nil
}

// prune removes the oldest backups of one session beyond the retention
// count. Backup names sort lexicographically by timestamp.
func (b *BackupManager) prune(base string) {
	keep := b.Retention
	if keep <= 0 {
		keep = DefaultRetention
	}

	matches, err := filepath.Glob(filepath.Join(b.Dir, base+".*.bak"))
	if err != nil || len(matches) <= keep {
		return
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-keep] {
		os.Remove(old)
	}
}

// baseName strips the directory and the markdown extension from a session
// path so backup names stay readable.
func baseName(sessionPath string) string {
	return strings.TrimSuffix(filepath.Base(sessionPath), ".md")
}
