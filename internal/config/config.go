// Package config provides configuration management for the sentinel daemon.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/wethinkt/go-sentinel/internal/watchlog"
)

// Config holds the sentinel configuration.
type Config struct {
	WatchDirs []string `json:"watch_dirs"`          // Directory trees watched for session files
	Debounce  string   `json:"debounce"`            // File event debounce (e.g. "2s")
	Poll      string   `json:"poll,omitempty"`      // Process poll interval (e.g. "5s")
	LogPath   string   `json:"log_path,omitempty"`  // Daemon log file (default ~/.sentinel/sentinel.log)
	LogLevel  string   `json:"log_level,omitempty"` // debug, info, warn, error

	UsageThreshold float64 `json:"usage_threshold"` // Context fullness ratio treated as exhaustion
	MaxRetries     int     `json:"max_retries"`     // Resume retry budget, 0 = unbounded
	Retention      int     `json:"backup_retention"`

	Backoff BackoffConfig `json:"backoff"`
	Server  ServerConfig  `json:"server"`

	WebhookURL string `json:"webhook_url,omitempty"` // Notification sink, empty = log only

	// ResumeCommand is the assistant CLI invoked to resume or start
	// sessions (default "claude").
	ResumeCommand string `json:"resume_command,omitempty"`
}

// BackoffConfig holds retry wait settings.
type BackoffConfig struct {
	Base   string `json:"base"`   // e.g. "30s"
	Max    string `json:"max"`    // e.g. "5m"
	Jitter bool   `json:"jitter"` // perturb delays by ±10%
}

// ServerConfig holds the control API settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DefaultPort is the control API port.
const DefaultPort = 8765

// DebounceDuration returns the parsed debounce duration (default: 2s).
func (c Config) DebounceDuration() time.Duration {
	return parseDuration(c.Debounce, 2*time.Second)
}

// PollDuration returns the parsed process poll interval (default: 5s).
func (c Config) PollDuration() time.Duration {
	return parseDuration(c.Poll, 5*time.Second)
}

// BackoffBase returns the parsed base delay (default: 30s).
func (c Config) BackoffBase() time.Duration {
	return parseDuration(c.Backoff.Base, 30*time.Second)
}

// BackoffMax returns the parsed max delay (default: 5m).
func (c Config) BackoffMax() time.Duration {
	return parseDuration(c.Backoff.Max, 5*time.Minute)
}

// Level returns the parsed log level (default: info).
func (c Config) Level() watchlog.Level {
	switch c.LogLevel {
	case "debug":
		return watchlog.LevelDebug
	case "warn":
		return watchlog.LevelWarn
	case "error":
		return watchlog.LevelError
	default:
		return watchlog.LevelInfo
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// Dir returns the path to the .sentinel directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sentinel"), nil
}

// Path returns the path to the main config file.
func Path() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Load loads the configuration from ~/.sentinel/config.json, creating it
// with defaults on first run.
func Load() (Config, error) {
	configPath, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from an explicit path.
func LoadFrom(configPath string) (Config, error) {
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		cfg := Default()
		if saveErr := SaveTo(configPath, cfg); saveErr != nil {
			return cfg, nil // return defaults even if save fails
		}
		return cfg, nil
	} else if err != nil {
		return Config{}, err
	}

	// Start from defaults so missing keys get correct values.
	config := Default()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	if config.UsageThreshold <= 0 || config.UsageThreshold > 1 {
		config.UsageThreshold = Default().UsageThreshold
	}
	return config, nil
}

// Default returns a default configuration with all defaults set.
func Default() Config {
	return Config{
		WatchDirs:      []string{},
		Debounce:       "2s",
		Poll:           "5s",
		UsageThreshold: 0.8,
		MaxRetries:     0,
		Retention:      10,
		Backoff: BackoffConfig{
			Base:   "30s",
			Max:    "5m",
			Jitter: true,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: DefaultPort,
		},
		ResumeCommand: "claude",
	}
}

// Save saves the configuration to ~/.sentinel/config.json.
func Save(config Config) error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(configPath, config)
}

// SaveTo saves the configuration to an explicit path.
func SaveTo(configPath string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}
