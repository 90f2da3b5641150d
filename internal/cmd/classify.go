package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-sentinel/internal/classify"
	"github.com/wethinkt/go-sentinel/internal/session"
)

var classifyJSON bool

var classifyCmd = &cobra.Command{
	Use:   "classify <session-file>",
	Short: "Classify a session file once and print the verdict",
	Long: `Classify a session file once and print the verdict.

Runs the same extraction and classification pipeline the daemon uses,
without taking any action. Useful for checking what the daemon would
decide about a stopped session.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

// classifyResult is the one-shot classification output.
type classifyResult struct {
	Session          string  `json:"session"`
	Verdict          string  `json:"verdict"`
	RetryAfter       string  `json:"retry_after,omitempty"`
	UsageRatio       float64 `json:"usage_ratio,omitempty"`
	ContinuationStep int     `json:"continuation_step,omitempty"`
	HeaderError      string  `json:"header_error,omitempty"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	key := args[0]
	result := classifyResult{Session: key}

	rec, err := session.Extract(key)
	if err != nil {
		if !errors.Is(err, session.ErrNoHeader) {
			var malformed *session.MalformedHeaderError
			if !errors.As(err, &malformed) {
				return err
			}
		}
		result.HeaderError = err.Error()
	}

	classifier := &classify.Classifier{Threshold: cfg.UsageThreshold}
	cls := classifier.Classify(rec, classify.ProcessSignal{}, readSidecar(key))

	result.Verdict = cls.Verdict.String()
	if cls.RetryAfter > 0 {
		result.RetryAfter = cls.RetryAfter.String()
	}
	if cls.UsageRatio >= 0 {
		result.UsageRatio = cls.UsageRatio
	}
	if rec != nil {
		result.ContinuationStep = rec.ContinuationStep()
	}

	if classifyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("%s: %s\n", key, result.Verdict)
	if result.RetryAfter != "" {
		fmt.Printf("  retry after: %s\n", result.RetryAfter)
	}
	if result.UsageRatio > 0 {
		fmt.Printf("  context usage: %.0f%%\n", result.UsageRatio*100)
	}
	if rec != nil {
		fmt.Printf("  continuation step: %d\n", rec.ContinuationStep())
	}
	if result.HeaderError != "" {
		fmt.Printf("  header: %s\n", result.HeaderError)
	}
	return nil
}

// readSidecar reads the diagnostics sidecar next to a session file. An
// empty string means no diagnostics were available.
func readSidecar(sessionPath string) string {
	data, err := os.ReadFile(sessionPath + ".log")
	if err != nil {
		return ""
	}
	return string(data)
}
