package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-sentinel/internal/daemon"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and saved-time stats",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	status, err := daemon.NewClient(cfg.Server).Status()
	if err != nil {
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Printf("sentinel %s, up %s, state %s\n", status.Version, status.Uptime, status.Monitor.State)
	fmt.Printf("sessions tracked: %d\n", status.Sessions)
	fmt.Printf("resumes: %d, time saved: %s\n",
		status.Stats.TotalResumes,
		(time.Duration(status.Stats.TimeSavedSeconds) * time.Second).String())

	if len(status.Monitor.Suspended) > 0 {
		fmt.Println("\nCrash loop suspended (rearm to re-enable):")
		for _, key := range status.Monitor.Suspended {
			fmt.Printf("  %s\n", key)
		}
	}

	if len(status.Monitor.Attempts) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tSTRATEGY\tATTEMPTS\tLAST DELAY\tLAST OUTCOME")
		for _, a := range status.Monitor.Attempts {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				a.SessionKey, a.StrategyName, a.Count, a.LastDelay, a.LastOutcome)
		}
		w.Flush()
	}
	return nil
}
