package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-sentinel/internal/config"
	"github.com/wethinkt/go-sentinel/internal/daemon"
	"github.com/wethinkt/go-sentinel/internal/watchlog"
)

// Watch command flags
var (
	watchDirs    []string
	watchCommand string
	watchWebhook string
	watchPort    int
	watchLogPath string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the monitor daemon",
	Long: `Run the monitor daemon in the foreground.

The daemon watches the configured directory trees for session files,
classifies every stop, and resumes interrupted sessions automatically. A
local control API serves status, pause/resume and the audit tail.

Examples:
  sentinel watch                       # Watch dirs from ~/.sentinel/config.json
  sentinel watch --dir ~/work          # Watch an explicit tree
  sentinel watch --webhook https://... # Notify on give-ups and crash loops`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags override the config file.
	if len(watchDirs) > 0 {
		cfg.WatchDirs = watchDirs
	}
	if watchCommand != "" {
		cfg.ResumeCommand = watchCommand
	}
	if watchWebhook != "" {
		cfg.WebhookURL = watchWebhook
	}
	if watchPort != 0 {
		cfg.Server.Port = watchPort
	}
	if len(cfg.WatchDirs) == 0 {
		return fmt.Errorf("no watch directories: pass --dir or set watch_dirs in the config")
	}

	logPath := watchLogPath
	if logPath == "" {
		logPath = cfg.LogPath
	}
	if logPath == "" {
		dir, err := config.Dir()
		if err != nil {
			return fmt.Errorf("resolve state dir: %w", err)
		}
		logPath = filepath.Join(dir, "sentinel.log")
	}
	level := cfg.Level()
	if verbose {
		level = watchlog.LevelDebug
	}
	if err := watchlog.Init(logPath, level); err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer watchlog.Log.Close()

	d, err := daemon.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("sentinel watching %v (control API on %s)\n", cfg.WatchDirs, d.Addr())
	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	fmt.Println("sentinel stopped")
	return nil
}
