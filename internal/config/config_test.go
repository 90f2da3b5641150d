package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFrom_CreatesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.UsageThreshold != 0.8 {
		t.Errorf("default usage threshold = %v, want 0.8", cfg.UsageThreshold)
	}
	if cfg.Retention != 10 {
		t.Errorf("default retention = %d, want 10", cfg.Retention)
	}
	if !cfg.Backoff.Jitter {
		t.Error("jitter should default on")
	}

	// The defaults were persisted.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestLoadFrom_MissingKeysKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"watch_dirs": ["/tmp/sessions"]}`), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if len(cfg.WatchDirs) != 1 || cfg.WatchDirs[0] != "/tmp/sessions" {
		t.Errorf("watch dirs = %v", cfg.WatchDirs)
	}
	if cfg.BackoffBase() != 30*time.Second {
		t.Errorf("backoff base = %v, want default 30s", cfg.BackoffBase())
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
}

func TestLoadFrom_InvalidThresholdFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"usage_threshold": 4.2}`), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.UsageThreshold != 0.8 {
		t.Errorf("threshold = %v, want fallback 0.8", cfg.UsageThreshold)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Config{
		Debounce: "150ms",
		Poll:     "nonsense",
		Backoff:  BackoffConfig{Base: "1m", Max: ""},
	}
	if got := cfg.DebounceDuration(); got != 150*time.Millisecond {
		t.Errorf("debounce = %v", got)
	}
	if got := cfg.PollDuration(); got != 5*time.Second {
		t.Errorf("poll fallback = %v", got)
	}
	if got := cfg.BackoffBase(); got != time.Minute {
		t.Errorf("base = %v", got)
	}
	if got := cfg.BackoffMax(); got != 5*time.Minute {
		t.Errorf("max fallback = %v", got)
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	in := Default()
	in.WatchDirs = []string{"/work"}
	in.MaxRetries = 7

	if err := SaveTo(path, in); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	out, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if out.MaxRetries != 7 || len(out.WatchDirs) != 1 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}
