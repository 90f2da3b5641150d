// Package classify determines why a monitored session stopped.
//
// Classification is a pure, total function: every call yields exactly one
// verdict, falling through to Unknown rather than failing. Precedence is
// strict and deliberate: a crash must never be downgraded to a context
// issue on stale diagnostics, and finished work must be recognized before
// it can be mistaken for an interruption.
package classify

import (
	"time"

	"github.com/wethinkt/go-sentinel/internal/session"
)

// DefaultUsageThreshold is the context-fullness ratio above which a stop is
// treated as context exhaustion even without an explicit provider error.
const DefaultUsageThreshold = 0.8

// Verdict is the determined reason a session stopped.
type Verdict int

const (
	Unknown Verdict = iota
	Crashed
	RateLimit
	ContextExhausted
	Completed
	UserExit
)

// String returns the snake_case name of the verdict.
func (v Verdict) String() string {
	switch v {
	case Crashed:
		return "crashed"
	case RateLimit:
		return "rate_limit"
	case ContextExhausted:
		return "context_exhausted"
	case Completed:
		return "completed"
	case UserExit:
		return "user_exit"
	default:
		return "unknown"
	}
}

// Classification is one immutable verdict with its variant data. Only the
// fields matching the verdict are meaningful.
type Classification struct {
	Verdict Verdict

	// RetryAfter is the provider-stated retry interval for RateLimit,
	// 0 when none was stated.
	RetryAfter time.Duration

	// UsageRatio is the estimated context fullness for ContextExhausted,
	// negative when no estimate was available.
	UsageRatio float64

	// ExitCode is the process exit code for Crashed; HasExitCode reports
	// whether one was observed.
	ExitCode    int
	HasExitCode bool
}

// ProcessSignal describes how the monitored process ended, as reported by
// the event source. The zero value means no process information.
type ProcessSignal struct {
	// Exited reports whether an exit was observed at all.
	Exited bool
	// ExitCode is valid only when Exited is true.
	ExitCode int
	// Killed reports a forcible termination signal (SIGKILL etc).
	Killed bool
}

// crashed reports a non-zero exit or forcible termination.
func (s ProcessSignal) crashed() bool {
	return s.Killed || (s.Exited && s.ExitCode != 0)
}

// cleanExit reports a voluntary zero-status exit.
func (s ProcessSignal) cleanExit() bool {
	return s.Exited && s.ExitCode == 0 && !s.Killed
}

// Classifier evaluates stop signals against a usage estimator and threshold.
type Classifier struct {
	// Threshold is the usage ratio above which ContextExhausted applies;
	// zero means DefaultUsageThreshold.
	Threshold float64

	// Estimator supplies context-fullness estimates when diagnostics carry
	// no explicit marker. Nil means the conservative MetaEstimator.
	Estimator UsageEstimator
}

// Classify maps a stop signal to exactly one verdict, first match wins:
// crash, rate limit, context exhaustion, completion, user exit, unknown.
// rec may be nil when extraction failed; that path can still yield Crashed
// or RateLimit but never Completed.
func (c *Classifier) Classify(rec *session.Record, sig ProcessSignal, diagnostics string) Classification {
	if sig.crashed() {
		return Classification{
			Verdict:     Crashed,
			ExitCode:    sig.ExitCode,
			HasExitCode: sig.Exited,
		}
	}

	markers := ScanDiagnostics(diagnostics)

	if markers.RateLimit {
		return Classification{Verdict: RateLimit, RetryAfter: markers.RetryAfter}
	}

	if markers.ContextFull {
		ratio, ok := c.estimate(rec)
		if !ok {
			ratio = -1
		}
		return Classification{Verdict: ContextExhausted, UsageRatio: ratio}
	}
	if ratio, ok := c.estimate(rec); ok && ratio >= c.threshold() {
		return Classification{Verdict: ContextExhausted, UsageRatio: ratio}
	}

	if rec != nil && rec.Completed() {
		return Classification{Verdict: Completed}
	}

	if sig.cleanExit() && diagnostics == "" {
		return Classification{Verdict: UserExit}
	}

	return Classification{Verdict: Unknown, UsageRatio: -1}
}

func (c *Classifier) threshold() float64 {
	if c.Threshold > 0 {
		return c.Threshold
	}
	return DefaultUsageThreshold
}

func (c *Classifier) estimate(rec *session.Record) (float64, bool) {
	if rec == nil {
		return 0, false
	}
	est := c.Estimator
	if est == nil {
		est = MetaEstimator{}
	}
	return est.Estimate(rec)
}
