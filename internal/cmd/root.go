// Package cmd provides the CLI commands for sentinel.
package cmd

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-sentinel/internal/config"
)

// global flags
var (
	profileFile *os.File // held open for profiling
	configPath  string
	verbose     bool
)

// rootCmd is the root command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Background monitor that keeps AI assistant sessions moving",
	Long: `sentinel watches AI coding assistant session files, classifies why a
session stopped, and automatically resumes interrupted work.

Rate-limited sessions are retried with exponential backoff, sessions that
ran out of context are continued in a fresh session file, and crashed
assistants are relaunched with crash loop protection. Every decision is
written to an append-only audit log.

Commands:
  watch     Run the monitor daemon (foreground)
  status    Show daemon status and saved-time stats
  pause     Pause automatic resumption
  resume    Return the daemon to active monitoring
  rearm     Clear crash loop suspension for a session
  continue  Force a session to continue in a fresh session file
  classify  Classify a session file once and print the verdict
  audit     Show recent decisions from the audit log

Examples:
  sentinel watch --dir ~/work            # Monitor session files under ~/work
  sentinel status                        # What is the daemon doing right now
  sentinel rearm ~/work/task.md          # Re-enable restarts after a crash loop
  sentinel audit -n 50                   # The last 50 decisions`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Start pprof profiling if SENTINEL_PROFILE is set
		if profilePath := os.Getenv("SENTINEL_PROFILE"); profilePath != "" {
			f, err := os.Create(profilePath)
			if err != nil {
				return fmt.Errorf("create profile file: %w", err)
			}
			profileFile = f

			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				profileFile = nil
				return fmt.Errorf("start CPU profile: %w", err)
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		// Stop CPU profiling
		if profileFile != nil {
			pprof.StopCPUProfile()
			profileFile.Close()
			profileFile = nil
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags on root
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.sentinel/config.json)")

	// Watch command flags
	watchCmd.Flags().StringArrayVarP(&watchDirs, "dir", "d", nil, "directory tree to watch (can be specified multiple times)")
	watchCmd.Flags().StringVar(&watchCommand, "command", "", "assistant CLI used for resumption (default from config)")
	watchCmd.Flags().StringVar(&watchWebhook, "webhook", "", "notification webhook URL")
	watchCmd.Flags().IntVar(&watchPort, "port", 0, "control API port (default 8765)")
	watchCmd.Flags().StringVar(&watchLogPath, "log", "", "write daemon log to file")

	// Status command flags
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")

	// Audit command flags
	auditCmd.Flags().IntVarP(&auditCount, "count", "n", 20, "number of entries to show")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "output as JSON")

	// Classify command flags
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(rearmCmd)
	rootCmd.AddCommand(continueCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the effective configuration, honoring --config.
func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}
