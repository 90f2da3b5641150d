package daemon

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wethinkt/go-sentinel/internal/session"
	"github.com/wethinkt/go-sentinel/internal/watchlog"
)

// CommandTarget carries out resumption by invoking the assistant CLI. The
// command runs from the session's directory, matching how assistants
// resolve their project context.
type CommandTarget struct {
	// Command is the assistant binary, resolved via PATH.
	Command string
}

// ResumeSame relaunches the assistant against an existing session file.
func (t *CommandTarget) ResumeSame(ctx context.Context, sessionKey string) error {
	bin, err := exec.LookPath(t.Command)
	if err != nil {
		return fmt.Errorf("%s not found: %w", t.Command, err)
	}

	cmd := exec.CommandContext(ctx, bin, "--resume", sessionKey)
	cmd.Dir = filepath.Dir(sessionKey)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("resume %s: %w: %s", sessionKey, err, strings.TrimSpace(string(out)))
	}
	watchlog.Log.Info("Resumed session", "session", sessionKey)
	return nil
}

// StartNew writes a fresh session file continuing from the given step and
// launches the assistant against it. Returns the new session key.
func (t *CommandTarget) StartNew(ctx context.Context, sessionKey string, continuationStep int) (string, error) {
	bin, err := exec.LookPath(t.Command)
	if err != nil {
		return "", fmt.Errorf("%s not found: %w", t.Command, err)
	}

	newKey, err := writeContinuation(sessionKey, continuationStep)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, bin, "--session", newKey, "--from-step", strconv.Itoa(continuationStep))
	cmd.Dir = filepath.Dir(newKey)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("start new session %s: %w: %s", newKey, err, strings.TrimSpace(string(out)))
	}
	watchlog.Log.Info("Started replacement session", "old", sessionKey, "new", newKey, "step", continuationStep)
	return newKey, nil
}

// writeContinuation creates the replacement session file next to the old
// one, carrying over header metadata so progress context is not lost.
func writeContinuation(sessionKey string, step int) (string, error) {
	base := strings.TrimSuffix(sessionKey, ".md")
	newKey := fmt.Sprintf("%s.r%d.md", base, step)

	var meta strings.Builder
	if rec, err := session.Extract(sessionKey); err == nil && len(rec.Meta) > 0 {
		meta.WriteString("\n[meta]\n")
		for k, v := range rec.Meta {
			fmt.Fprintf(&meta, "%s = %q\n", k, v)
		}
	}

	content := fmt.Sprintf("+++\ncurrent_step = %d\n%s+++\n", step, meta.String())
	if err := writeNewFile(newKey, content); err != nil {
		return "", fmt.Errorf("write continuation session: %w", err)
	}
	return newKey, nil
}
