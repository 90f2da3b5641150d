// Package daemon wires the monitoring core together: a single typed event
// channel feeds per-session-key workers, each running the extract ->
// classify -> orchestrate pipeline. Events for one key are processed in
// arrival order; distinct keys progress independently.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wethinkt/go-sentinel/internal/audit"
	"github.com/wethinkt/go-sentinel/internal/backoff"
	"github.com/wethinkt/go-sentinel/internal/classify"
	"github.com/wethinkt/go-sentinel/internal/config"
	"github.com/wethinkt/go-sentinel/internal/notify"
	"github.com/wethinkt/go-sentinel/internal/orchestrator"
	"github.com/wethinkt/go-sentinel/internal/session"
	"github.com/wethinkt/go-sentinel/internal/state"
	"github.com/wethinkt/go-sentinel/internal/watcher"
	"github.com/wethinkt/go-sentinel/internal/watchlog"
)

// workerQueueSize bounds the per-key event backlog.
const workerQueueSize = 16

// Daemon is the session monitor process.
type Daemon struct {
	cfg        config.Config
	gate       *state.Gate
	classifier *classify.Classifier
	orch       *orchestrator.Orchestrator
	files      *watcher.FileWatcher
	procs      *watcher.ProcessWatcher
	stats      *StatsStore
	recorder   *audit.Recorder
	auditPath  string
	server     *Server

	mu      sync.Mutex
	records map[string]*session.Record
	workers map[string]chan watcher.Event
	wg      sync.WaitGroup
}

// New builds a daemon from configuration. The target may be nil, in which
// case the configured assistant CLI is used.
func New(cfg config.Config, target orchestrator.Target) (*Daemon, error) {
	if len(cfg.WatchDirs) == 0 {
		return nil, errors.New("no watch directories configured")
	}

	dir, err := config.Dir()
	if err != nil {
		return nil, fmt.Errorf("resolve state dir: %w", err)
	}

	auditPath := filepath.Join(dir, "audit.jsonl")
	recorder, err := audit.Open(auditPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	stats, err := OpenStats(filepath.Join(dir, "stats.json"))
	if err != nil {
		return nil, fmt.Errorf("open stats: %w", err)
	}

	files, err := watcher.NewFileWatcher(cfg.WatchDirs, cfg.DebounceDuration())
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	var sink notify.Sink = notify.LogSink{}
	if cfg.WebhookURL != "" {
		sink = notify.Multi{notify.LogSink{}, notify.NewWebhook(cfg.WebhookURL)}
	}

	if target == nil {
		cmd := cfg.ResumeCommand
		if cmd == "" {
			cmd = "claude"
		}
		target = &CommandTarget{Command: cmd}
	}

	gate := state.NewGate()
	policy := backoff.New(cfg.BackoffBase(), cfg.BackoffMax(), cfg.Backoff.Jitter, seed())
	orch := orchestrator.New(orchestrator.Config{
		Policy:     policy,
		MaxRetries: cfg.MaxRetries,
		Backups: &orchestrator.BackupManager{
			Dir:       filepath.Join(dir, "backups"),
			Retention: cfg.Retention,
		},
	}, gate, target, sink, recorder)

	d := &Daemon{
		cfg:        cfg,
		gate:       gate,
		classifier: &classify.Classifier{Threshold: cfg.UsageThreshold},
		orch:       orch,
		files:      files,
		procs:      watcher.NewProcessWatcher(cfg.PollDuration()),
		stats:      stats,
		recorder:   recorder,
		auditPath:  auditPath,
		records:    make(map[string]*session.Record),
		workers:    make(map[string]chan watcher.Event),
	}
	orch.OnResumed = d.onResumed
	d.server = NewServer(cfg.Server, d)
	return d, nil
}

// Run starts the daemon and blocks until the context is canceled. On
// return all workers have drained and state is ShuttingDown.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fileEvents, err := d.files.Start(ctx)
	if err != nil {
		return fmt.Errorf("start file watcher: %w", err)
	}
	defer d.files.Stop()

	procEvents := make(chan watcher.Event, 64)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.procs.Run(ctx, procEvents)
		return nil
	})
	g.Go(func() error {
		return d.server.ListenAndServe(ctx)
	})
	g.Go(func() error {
		d.dispatchLoop(ctx, fileEvents, procEvents)
		return nil
	})

	watchlog.Log.Info("Daemon running", "watch_dirs", d.cfg.WatchDirs)
	err = g.Wait()

	// Mark terminal state and let in-flight workers unwind.
	d.gate.Transition(state.ShuttingDown)
	cancel()
	d.wg.Wait()
	d.recorder.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// dispatchLoop fans events out to per-key workers until both sources close
// or the context is canceled.
func (d *Daemon) dispatchLoop(ctx context.Context, files <-chan watcher.Event, procs <-chan watcher.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-files:
			if !ok {
				return
			}
			d.dispatch(ctx, ev)
		case ev := <-procs:
			d.dispatch(ctx, ev)
		}
	}
}

// dispatch routes an event to its session key worker, starting one if
// needed. A full worker queue drops the event: the next file change or
// poll will regenerate the state anyway.
func (d *Daemon) dispatch(ctx context.Context, ev watcher.Event) {
	key := ev.Path
	if key == "" {
		watchlog.Log.Debug("Dropping event without session key", "pid", ev.PID)
		return
	}

	d.mu.Lock()
	ch, ok := d.workers[key]
	if !ok {
		ch = make(chan watcher.Event, workerQueueSize)
		d.workers[key] = ch
		d.wg.Add(1)
		go d.worker(ctx, key, ch)
	}
	d.mu.Unlock()

	select {
	case ch <- ev:
	default:
		watchlog.Log.Warn("Worker queue full, dropping event", "session", key)
	}
}

// worker serializes all processing for one session key.
func (d *Daemon) worker(ctx context.Context, key string, ch <-chan watcher.Event) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			d.process(ctx, key, ev)
		}
	}
}

// process runs the extract -> classify -> orchestrate pipeline for one
// event.
func (d *Daemon) process(ctx context.Context, key string, ev watcher.Event) {
	if ev.Type == watcher.ProcessStarted {
		// A fresh process is not a stop; just prime the record cache.
		d.refresh(key)
		return
	}

	rec := d.refresh(key)

	var sig classify.ProcessSignal
	if ev.Type == watcher.ProcessStopped {
		sig = classify.ProcessSignal{Exited: ev.Exited, ExitCode: ev.ExitCode, Killed: ev.Killed}
	}

	cls := d.classifier.Classify(rec, sig, readDiagnostics(key))
	classificationsTotal.WithLabelValues(cls.Verdict.String()).Inc()
	watchlog.Log.Debug("Classified stop", "session", key, "verdict", cls.Verdict)

	outcome := d.orch.Handle(ctx, key, cls, rec)
	decisionsTotal.WithLabelValues(cls.Verdict.String(), outcome.String()).Inc()
	if outcome == orchestrator.OutcomeCrashLoop {
		crashLoopsTotal.Inc()
	}
}

// refresh re-extracts the session record and updates the cache, handling
// new-session transitions. Extraction failure logs and falls back to the
// last good record, nil if there never was one.
func (d *Daemon) refresh(key string) *session.Record {
	rec, err := session.Extract(key)
	if err != nil {
		if errors.Is(err, session.ErrNoHeader) {
			watchlog.Log.Debug("Session file has no header", "session", key)
		} else {
			watchlog.Log.Warn("Session extraction failed", "session", key, "error", err)
		}
		d.mu.Lock()
		prev := d.records[key]
		d.mu.Unlock()
		return prev
	}

	d.mu.Lock()
	prev := d.records[key]
	d.records[key] = rec
	trackedSessions.Set(float64(len(d.records)))
	d.mu.Unlock()

	if rec.Supersedes(prev) {
		watchlog.Log.Info("New session detected, resetting state", "session", key)
		d.orch.Forget(key)
	}
	return rec
}

// Addr returns the control API address.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// Track registers an assistant process as belonging to a session file.
func (d *Daemon) Track(pid int, sessionPath string) {
	d.procs.Track(pid, sessionPath)
}

// ReportExit records collected exit status for a tracked process.
func (d *Daemon) ReportExit(pid int, info watcher.ExitInfo) {
	d.procs.ReportExit(pid, info)
}

// onResumed feeds successful resumptions into metrics and stats.
func (d *Daemon) onResumed(strategy orchestrator.Strategy, waited time.Duration) {
	resumesTotal.WithLabelValues(strategy.String()).Inc()
	resumeWaitSeconds.Observe(waited.Seconds())
	if err := d.stats.AddResume(waited); err != nil {
		watchlog.Log.Warn("Stats persistence failed", "error", err)
	}
}

// seed returns the jitter seed for the backoff policy.
func seed() int64 {
	return time.Now().UnixNano()
}
