package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-sentinel/internal/daemon"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause automatic resumption",
	Long: `Pause automatic resumption.

While paused the daemon keeps watching and classifying stops, and records
every decision in the audit log, but takes no resumption actions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := controlClient()
		if err != nil {
			return err
		}
		state, err := client.Pause()
		if err != nil {
			return err
		}
		fmt.Printf("daemon state: %s\n", state)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Return the daemon to active monitoring",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := controlClient()
		if err != nil {
			return err
		}
		state, err := client.Resume()
		if err != nil {
			return err
		}
		fmt.Printf("daemon state: %s\n", state)
		return nil
	},
}

var rearmCmd = &cobra.Command{
	Use:   "rearm <session-file>",
	Short: "Clear crash loop suspension for a session",
	Long: `Clear crash loop suspension for a session.

After repeated crashes in a short window the daemon stops relaunching a
session until an operator rearms it. Rearming also resets the crash
window.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := controlClient()
		if err != nil {
			return err
		}
		was, err := client.Rearm(args[0])
		if err != nil {
			return err
		}
		if was {
			fmt.Printf("%s rearmed\n", args[0])
		} else {
			fmt.Printf("%s was not suspended\n", args[0])
		}
		return nil
	},
}

var continueCmd = &cobra.Command{
	Use:   "continue <session-file>",
	Short: "Force a session to continue in a fresh session file",
	Long: `Force a session to continue in a fresh session file.

The daemon backs up the session, computes the continuation step from the
completed steps in its header, and starts a new session from there. This
works even while the daemon is paused.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := controlClient()
		if err != nil {
			return err
		}
		outcome, err := client.ForceNew(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", args[0], outcome)
		return nil
	},
}

// controlClient builds a client for the configured control API address.
func controlClient() (*daemon.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return daemon.NewClient(cfg.Server), nil
}
