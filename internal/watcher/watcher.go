// Package watcher is the event source boundary: it turns filesystem changes
// and process exits into Events consumed by the daemon core.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wethinkt/go-sentinel/internal/watchlog"
)

// EventType discriminates MonitorEvent variants.
type EventType int

const (
	// FileChanged reports a session file was created or modified.
	FileChanged EventType = iota
	// ProcessStarted reports a tracked assistant process began.
	ProcessStarted
	// ProcessStopped reports a tracked assistant process ended.
	ProcessStopped
)

// Event is one monitoring event. Path is set for FileChanged; PID and the
// exit fields are set for process events.
type Event struct {
	Type EventType
	Path string
	PID  int

	// Exit information for ProcessStopped. Exited is false when the
	// process vanished without a collectable status.
	Exited   bool
	ExitCode int
	Killed   bool
}

// DefaultDebounce coalesces rapid writes to the same session file.
const DefaultDebounce = 2 * time.Second

// FileWatcher monitors directory trees for session markdown files.
type FileWatcher struct {
	roots    []string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}

	mu     sync.Mutex
	closed bool // set before the event channel closes; gates timer sends
}

// NewFileWatcher creates a watcher over the given root directories.
// A zero debounce takes DefaultDebounce.
func NewFileWatcher(roots []string, debounce time.Duration) (*FileWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FileWatcher{
		roots:    roots,
		debounce: debounce,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching and returns a channel of events. The channel closes
// when the context is canceled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) (<-chan Event, error) {
	for _, root := range w.roots {
		w.addRecursive(root)
	}

	events := make(chan Event, 64)
	go w.watchLoop(ctx, events)
	return events, nil
}

// Stop stops the watcher and releases resources.
func (w *FileWatcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

// addRecursive walks a directory tree and adds all directories to the watcher.
func (w *FileWatcher) addRecursive(root string) {
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if !d.IsDir() {
			return nil
		}
		// Skip hidden subdirectories (except the root itself)
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			watchlog.Log.Warn("Failed to watch directory", "dir", path, "error", err)
		}
		return nil
	})
	watchlog.Log.Info("Watching directory tree", "root", root)
}

func (w *FileWatcher) watchLoop(ctx context.Context, events chan<- Event) {
	// Debounce timers keyed by path so a burst of writes emits one event.
	timers := make(map[string]*time.Timer)

	defer func() {
		// A pending timer must never fire into a closed channel. Setting
		// closed under the lock first means every send observes it before
		// the close below.
		w.mu.Lock()
		w.closed = true
		for _, timer := range timers {
			timer.Stop()
		}
		w.mu.Unlock()
		close(events)
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// New directories join the watch set.
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addRecursive(event.Name)
					continue
				}
			}

			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			w.mu.Lock()
			if timer, ok := timers[event.Name]; ok {
				timer.Stop()
			}
			path := event.Name
			timers[path] = time.AfterFunc(w.debounce, func() {
				w.send(events, path)
			})
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			watchlog.Log.Error("Watcher error", "error", err)

		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// send delivers a debounced file event. The lock orders the send against
// shutdown; a full channel drops the event since the next write refires it.
func (w *FileWatcher) send(events chan<- Event, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case events <- Event{Type: FileChanged, Path: path}:
		watchlog.Log.Debug("Session file changed", "path", path)
	default:
		watchlog.Log.Warn("Event channel full, dropping file event", "path", path)
	}
}
