package orchestrator

import "time"

// Strategy is how a session gets resumed.
type Strategy int

const (
	// StrategySame waits out the interruption and continues the same session.
	StrategySame Strategy = iota
	// StrategyNew backs up the session and starts a fresh one at a
	// continuation step.
	StrategyNew
	// StrategyRestart relaunches a crashed assistant process.
	StrategyRestart
)

// String returns the snake_case name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategySame:
		return "same_session"
	case StrategyNew:
		return "new_session"
	case StrategyRestart:
		return "restart"
	default:
		return "none"
	}
}

// Outcome is the result of one orchestration decision.
type Outcome int

const (
	// OutcomeNotApplicable means the classification called for no action.
	OutcomeNotApplicable Outcome = iota
	// OutcomeSuppressed means the daemon state forbade action.
	OutcomeSuppressed
	// OutcomeSkipped means another attempt already held the session key.
	OutcomeSkipped
	// OutcomeResumed means the same session was successfully continued.
	OutcomeResumed
	// OutcomeNewSession means a fresh session was started.
	OutcomeNewSession
	// OutcomeRestarted means a crashed process was relaunched.
	OutcomeRestarted
	// OutcomeFailed means the action failed without exhausting retries.
	OutcomeFailed
	// OutcomeGaveUp means the retry budget was exhausted.
	OutcomeGaveUp
	// OutcomeCrashLoop means automatic restart is suspended for the key.
	OutcomeCrashLoop
	// OutcomeAborted means cancellation interrupted the attempt.
	OutcomeAborted
)

// String returns the snake_case name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeSkipped:
		return "skipped_in_flight"
	case OutcomeResumed:
		return "resumed"
	case OutcomeNewSession:
		return "new_session"
	case OutcomeRestarted:
		return "restarted"
	case OutcomeFailed:
		return "failed"
	case OutcomeGaveUp:
		return "gave_up"
	case OutcomeCrashLoop:
		return "crash_loop_suspended"
	case OutcomeAborted:
		return "aborted"
	default:
		return "not_applicable"
	}
}

// Attempt is the per-session resumption record. Owned exclusively by the
// orchestrator; callers only ever see copies.
type Attempt struct {
	SessionKey   string        `json:"session_key"`
	Strategy     Strategy      `json:"-"`
	StrategyName string        `json:"strategy"`
	Count        uint32        `json:"count"`
	LastDelay    time.Duration `json:"last_delay"`
	LastOutcome  string        `json:"last_outcome"`
	First        time.Time     `json:"first_attempt"`
	Last         time.Time     `json:"last_attempt"`
}

// touch stamps the attempt timestamps for a new action.
func (a *Attempt) touch(now time.Time) {
	if a.First.IsZero() {
		a.First = now
	}
	a.Last = now
}
