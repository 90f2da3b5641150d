// Package orchestrator owns per-session resumption state. It turns stop
// classifications into resumption actions: waiting out rate limits,
// starting replacement sessions when context runs out, and restarting
// crashed processes while guarding against crash loops.
//
// Work for one session key is strictly serialized through an in-flight
// ownership token; the token is released on every exit path so a canceled
// or failed attempt never strands the key.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wethinkt/go-sentinel/internal/audit"
	"github.com/wethinkt/go-sentinel/internal/backoff"
	"github.com/wethinkt/go-sentinel/internal/classify"
	"github.com/wethinkt/go-sentinel/internal/notify"
	"github.com/wethinkt/go-sentinel/internal/session"
	"github.com/wethinkt/go-sentinel/internal/state"
	"github.com/wethinkt/go-sentinel/internal/watchlog"
)

// ErrAlreadyInFlight is returned when a session key is owned by another
// active attempt.
var ErrAlreadyInFlight = errors.New("resume attempt already in flight for session")

// Target performs the actual resumption actions. Both operations may block
// on the network or a child process and must honor the context.
type Target interface {
	ResumeSame(ctx context.Context, sessionKey string) error
	StartNew(ctx context.Context, sessionKey string, continuationStep int) (string, error)
}

// Config tunes the orchestrator.
type Config struct {
	// Policy computes retry delays. Required.
	Policy *backoff.Policy

	// MaxRetries bounds same-session retry loops; zero means unbounded.
	MaxRetries int

	// Backups makes pre-transition copies; nil disables backups.
	Backups *BackupManager

	// CrashWindow and CrashThreshold tune crash loop detection; zero
	// values take the package defaults.
	CrashWindow    time.Duration
	CrashThreshold int
}

// Orchestrator is the per-session resumption state machine.
type Orchestrator struct {
	cfg      Config
	gate     *state.Gate
	target   Target
	notifier notify.Sink
	recorder *audit.Recorder

	// OnResumed is an optional hook invoked after every successful
	// resumption, with the strategy used and the total time waited.
	OnResumed func(strategy Strategy, waited time.Duration)

	mu        sync.Mutex
	inflight  map[string]struct{}
	attempts  map[string]*Attempt
	crashes   map[string]*crashWindow
	suspended map[string]bool
}

// New creates an Orchestrator. The recorder may be nil (audit disabled);
// the notifier may be nil (notifications dropped).
func New(cfg Config, gate *state.Gate, target Target, notifier notify.Sink, recorder *audit.Recorder) *Orchestrator {
	if cfg.Policy == nil {
		cfg.Policy = backoff.New(0, 0, true, time.Now().UnixNano())
	}
	if cfg.CrashWindow <= 0 {
		cfg.CrashWindow = DefaultCrashWindow
	}
	if cfg.CrashThreshold <= 0 {
		cfg.CrashThreshold = DefaultCrashThreshold
	}
	return &Orchestrator{
		cfg:       cfg,
		gate:      gate,
		target:    target,
		notifier:  notifier,
		recorder:  recorder,
		inflight:  make(map[string]struct{}),
		attempts:  make(map[string]*Attempt),
		crashes:   make(map[string]*crashWindow),
		suspended: make(map[string]bool),
	}
}

// Handle takes one classification for one session and carries out the
// matching resumption strategy. Every decision is recorded, including the
// ones that act on nothing. rec may be nil when extraction failed.
func (o *Orchestrator) Handle(ctx context.Context, key string, cls classify.Classification, rec *session.Record) Outcome {
	switch cls.Verdict {
	case classify.Completed:
		// Finished work is never treated as an interruption.
		o.Forget(key)
		return o.record(key, cls, OutcomeNotApplicable, nil, "")
	case classify.UserExit, classify.Unknown:
		return o.record(key, cls, OutcomeNotApplicable, nil, "")
	}

	if o.gate.Current() != state.Monitoring {
		return o.record(key, cls, OutcomeSuppressed, nil, "daemon state "+o.gate.Current().String())
	}

	if err := o.acquire(key); err != nil {
		watchlog.Log.Debug("Skipping decision, key in flight", "session", key)
		return o.record(key, cls, OutcomeSkipped, nil, "")
	}
	defer o.release(key)

	switch cls.Verdict {
	case classify.RateLimit:
		return o.resumeSame(ctx, key, cls)
	case classify.ContextExhausted:
		return o.startNew(ctx, key, cls, rec)
	case classify.Crashed:
		return o.restart(ctx, key, cls)
	}
	return o.record(key, cls, OutcomeNotApplicable, nil, "")
}

// resumeSame waits out a rate limit and continues the same session,
// retrying under backoff until success or until the retry budget runs out.
func (o *Orchestrator) resumeSame(ctx context.Context, key string, cls classify.Classification) Outcome {
	att := o.attemptFor(key, StrategySame)
	hint := cls.RetryAfter
	failures := 0
	waited := time.Duration(0)

	for {
		o.mu.Lock()
		attemptNo := att.Count + 1
		o.mu.Unlock()

		delay := o.cfg.Policy.Next(attemptNo, hint)
		hint = 0 // an explicit hint applies to the first wait only

		o.mu.Lock()
		att.LastDelay = delay.Wait
		att.touch(time.Now())
		o.mu.Unlock()

		watchlog.Log.Info("Waiting before resume", "session", key, "attempt", attemptNo, "delay", delay.Wait)
		if !o.wait(ctx, delay.Wait) {
			o.setLastOutcome(att, OutcomeAborted)
			return o.record(key, cls, OutcomeAborted, att, "wait canceled")
		}
		waited += delay.Wait

		err := o.target.ResumeSame(ctx, key)
		if err == nil {
			o.mu.Lock()
			att.Count = 0
			o.mu.Unlock()
			o.setLastOutcome(att, OutcomeResumed)
			o.resumed(StrategySame, waited)
			return o.record(key, cls, OutcomeResumed, att, "")
		}
		if ctx.Err() != nil {
			o.setLastOutcome(att, OutcomeAborted)
			return o.record(key, cls, OutcomeAborted, att, ctx.Err().Error())
		}

		failures++
		watchlog.Log.Warn("Resume failed", "session", key, "attempt", attemptNo, "error", err)

		o.mu.Lock()
		if delay.ResetCurve {
			// The hint was authoritative; restart the curve at attempt 1.
			att.Count = 0
		} else {
			att.Count = attemptNo
		}
		o.mu.Unlock()

		if o.cfg.MaxRetries > 0 && failures >= o.cfg.MaxRetries {
			o.setLastOutcome(att, OutcomeGaveUp)
			o.notify(fmt.Sprintf("gave up resuming %s after %d attempts: %v", key, failures, err))
			return o.record(key, cls, OutcomeGaveUp, att, err.Error())
		}
		o.record(key, cls, OutcomeFailed, att, err.Error())
	}
}

// startNew backs up the session file and starts a replacement session at
// the continuation point. The backup is best-effort: its failure is logged
// and never blocks the transition.
func (o *Orchestrator) startNew(ctx context.Context, key string, cls classify.Classification, rec *session.Record) Outcome {
	att := o.attemptFor(key, StrategyNew)
	o.mu.Lock()
	att.touch(time.Now())
	o.mu.Unlock()

	if o.cfg.Backups != nil {
		if path, err := o.cfg.Backups.Backup(key); err != nil {
			watchlog.Log.Warn("Session backup failed", "session", key, "error", err)
		} else {
			watchlog.Log.Info("Session backed up", "session", key, "backup", path)
		}
	}

	step := continuationStep(rec)
	newKey, err := o.target.StartNew(ctx, key, step)
	if err != nil {
		if ctx.Err() != nil {
			o.setLastOutcome(att, OutcomeAborted)
			return o.record(key, cls, OutcomeAborted, att, ctx.Err().Error())
		}
		o.setLastOutcome(att, OutcomeFailed)
		o.notify(fmt.Sprintf("failed to start replacement session for %s: %v", key, err))
		return o.record(key, cls, OutcomeFailed, att, err.Error())
	}

	o.setLastOutcome(att, OutcomeNewSession)
	o.resumed(StrategyNew, 0)
	outcome := o.record(key, cls, OutcomeNewSession, att, fmt.Sprintf("continuation step %d, new session %s", step, newKey))
	o.Forget(key) // old key is superseded
	return outcome
}

// restart relaunches a crashed process unless the key is inside a crash
// loop, in which case automatic restart stays suspended until Rearm.
func (o *Orchestrator) restart(ctx context.Context, key string, cls classify.Classification) Outcome {
	o.mu.Lock()
	if o.suspended[key] {
		o.mu.Unlock()
		return o.record(key, cls, OutcomeCrashLoop, nil, "restart suspended, rearm required")
	}
	w := o.crashes[key]
	if w == nil {
		w = &crashWindow{}
		o.crashes[key] = w
	}
	count := w.add(time.Now(), o.cfg.CrashWindow)
	if count >= o.cfg.CrashThreshold {
		o.suspended[key] = true
		o.mu.Unlock()
		watchlog.Log.Error("Crash loop detected, suspending restarts", "session", key, "crashes", count)
		o.notify(fmt.Sprintf("crash loop on %s: %d crashes in %s, automatic restart suspended", key, count, o.cfg.CrashWindow))
		return o.record(key, cls, OutcomeCrashLoop, nil, fmt.Sprintf("%d crashes in window", count))
	}
	o.mu.Unlock()

	att := o.attemptFor(key, StrategyRestart)
	o.mu.Lock()
	att.touch(time.Now())
	o.mu.Unlock()

	if err := o.target.ResumeSame(ctx, key); err != nil {
		if ctx.Err() != nil {
			o.setLastOutcome(att, OutcomeAborted)
			return o.record(key, cls, OutcomeAborted, att, ctx.Err().Error())
		}
		o.setLastOutcome(att, OutcomeFailed)
		o.notify(fmt.Sprintf("failed to restart %s: %v", key, err))
		return o.record(key, cls, OutcomeFailed, att, err.Error())
	}
	o.setLastOutcome(att, OutcomeRestarted)
	o.resumed(StrategyRestart, 0)
	return o.record(key, cls, OutcomeRestarted, att, "")
}

// ForceNew starts a replacement session on explicit operator command. The
// daemon state gate is deliberately bypassed: an explicit command carries
// its own intent.
func (o *Orchestrator) ForceNew(ctx context.Context, key string, rec *session.Record) (Outcome, error) {
	if err := o.acquire(key); err != nil {
		return OutcomeSkipped, err
	}
	defer o.release(key)
	cls := classify.Classification{Verdict: classify.ContextExhausted, UsageRatio: -1}
	return o.startNew(ctx, key, cls, rec), nil
}

// Rearm clears crash loop suspension for a key and resets its window.
func (o *Orchestrator) Rearm(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	was := o.suspended[key]
	delete(o.suspended, key)
	delete(o.crashes, key)
	return was
}

// Forget drops all per-session state for a key: the session completed or
// was superseded by a new one.
func (o *Orchestrator) Forget(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.attempts, key)
	delete(o.crashes, key)
	delete(o.suspended, key)
}

// Snapshot is a point-in-time view of orchestrator state for the status
// surface.
type Snapshot struct {
	State     string    `json:"state"`
	InFlight  []string  `json:"in_flight"`
	Suspended []string  `json:"suspended"`
	Attempts  []Attempt `json:"attempts"`
}

// Status returns a snapshot of current orchestrator state.
func (o *Orchestrator) Status() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		State:     o.gate.Current().String(),
		InFlight:  []string{},
		Suspended: []string{},
		Attempts:  []Attempt{},
	}
	for k := range o.inflight {
		snap.InFlight = append(snap.InFlight, k)
	}
	for k := range o.suspended {
		snap.Suspended = append(snap.Suspended, k)
	}
	for _, a := range o.attempts {
		cp := *a
		cp.StrategyName = a.Strategy.String()
		snap.Attempts = append(snap.Attempts, cp)
	}
	return snap
}

// acquire takes exclusive ownership of a session key.
func (o *Orchestrator) acquire(key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, held := o.inflight[key]; held {
		return ErrAlreadyInFlight
	}
	o.inflight[key] = struct{}{}
	return nil
}

// release gives up ownership. Called on every exit path.
func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	delete(o.inflight, key)
	o.mu.Unlock()
}

// attemptFor returns the attempt record for a key, creating it if needed.
func (o *Orchestrator) attemptFor(key string, strategy Strategy) *Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	att := o.attempts[key]
	if att == nil {
		att = &Attempt{SessionKey: key}
		o.attempts[key] = att
	}
	att.Strategy = strategy
	return att
}

func (o *Orchestrator) setLastOutcome(att *Attempt, outcome Outcome) {
	o.mu.Lock()
	att.LastOutcome = outcome.String()
	o.mu.Unlock()
}

// wait blocks for d or until the context is canceled. Returns false on
// cancellation.
func (o *Orchestrator) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// record appends an audit entry for a decision and returns the outcome so
// call sites can record-and-return in one statement. Audit failure is
// degraded-mode: logged, never propagated.
func (o *Orchestrator) record(key string, cls classify.Classification, outcome Outcome, att *Attempt, detail string) Outcome {
	e := audit.Entry{
		SessionKey: key,
		Verdict:    cls.Verdict.String(),
		Outcome:    outcome.String(),
		Detail:     detail,
	}
	if att != nil {
		o.mu.Lock()
		e.Attempt = att.Count
		if att.LastDelay > 0 {
			e.Delay = att.LastDelay.String()
		}
		o.mu.Unlock()
	}
	if o.recorder != nil {
		if err := o.recorder.Record(e); err != nil {
			watchlog.Log.Warn("Audit write failed", "session", key, "error", err)
		}
	}
	return outcome
}

func (o *Orchestrator) notify(summary string) {
	if o.notifier != nil {
		o.notifier.Notify(summary)
	}
}

func (o *Orchestrator) resumed(strategy Strategy, waited time.Duration) {
	if o.OnResumed != nil {
		o.OnResumed(strategy, waited)
	}
}

// continuationStep resolves where a replacement session should start: an
// explicit continue_from override in the header wins, otherwise one past
// the highest completed step.
func continuationStep(rec *session.Record) int {
	if rec == nil {
		return 1
	}
	if v := rec.Meta["continue_from"]; v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return n
		}
	}
	return rec.ContinuationStep()
}
