package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-sentinel/internal/audit"
	"github.com/wethinkt/go-sentinel/internal/config"
	"github.com/wethinkt/go-sentinel/internal/daemon"
)

// Audit command flags
var (
	auditCount int
	auditJSON  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent decisions from the audit log",
	Long: `Show recent decisions from the audit log.

Asks the running daemon first; when no daemon is reachable the audit file
is read directly, so the trail stays inspectable after a shutdown.`,
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	entries, err := daemon.NewClient(cfg.Server).Audit(auditCount)
	if err != nil {
		dir, dirErr := config.Dir()
		if dirErr != nil {
			return err
		}
		entries, err = audit.Tail(filepath.Join(dir, "audit.jsonl"), auditCount)
		if err != nil {
			return err
		}
	}

	if auditJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("no audit entries")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSESSION\tVERDICT\tOUTCOME\tATTEMPT\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.Time.Format("2006-01-02 15:04:05"),
			e.SessionKey, e.Verdict, e.Outcome, e.Attempt, e.Detail)
	}
	return w.Flush()
}
