// Package audit keeps an append-only record of every monitoring decision.
// Entries are JSONL, one immutable line per decision, including decisions
// that resulted in no action. Audit failures are degraded-mode: callers log
// them and continue.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded decision.
type Entry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	SessionKey string    `json:"session_key"`
	Verdict    string    `json:"verdict"`
	Outcome    string    `json:"outcome"`
	Attempt    uint32    `json:"attempt,omitempty"`
	Delay      string    `json:"delay,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Recorder appends entries to a durable log file.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates or opens the audit log at path, creating parent directories
// as needed.
func Open(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Recorder{file: f}, nil
}

// Record appends one entry. A zero ID or Time is filled in.
func (r *Recorder) Record(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Close closes the underlying log file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// Tail reads up to n most recent entries from the audit log at path.
// Malformed lines are skipped.
func Tail(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("read audit log: %w", err)
	}

	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
