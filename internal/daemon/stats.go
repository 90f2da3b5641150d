package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// estimatedSavePerResume is the credited operator time per automatic
// resumption, on top of the actual time waited out.
const estimatedSavePerResume = 5 * time.Minute

// Stats are aggregate monitoring counters. All fields are monotonically
// non-decreasing.
type Stats struct {
	SavesCount       int64 `json:"saves_count"`
	TotalResumes     int64 `json:"total_resumes"`
	TimeSavedSeconds int64 `json:"time_saved_seconds"`
}

// StatsStore persists Stats as a JSON snapshot.
type StatsStore struct {
	mu    sync.Mutex
	path  string
	stats Stats
}

// OpenStats loads the stats snapshot at path, starting from zero when the
// file does not exist yet.
func OpenStats(path string) (*StatsStore, error) {
	s := &StatsStore{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}
	if err := json.Unmarshal(data, &s.stats); err != nil {
		return nil, fmt.Errorf("parse stats: %w", err)
	}
	return s, nil
}

// AddResume credits one successful resumption and persists the snapshot.
func (s *StatsStore) AddResume(waited time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalResumes++
	s.stats.SavesCount++
	s.stats.TimeSavedSeconds += int64((waited + estimatedSavePerResume).Seconds())
	return s.flushLocked()
}

// Snapshot returns a copy of the current counters.
func (s *StatsStore) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *StatsStore) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create stats dir: %w", err)
	}
	data, err := json.MarshalIndent(s.stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}
