// Package watchlog provides file-based logging for the sentinel daemon.
// The daemon runs detached from any terminal, so stdout/stderr are not
// reliable destinations; everything goes to a log file instead.
package watchlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a log severity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger writes timestamped key/value log lines to a file.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	level   Level
	enabled bool
}

var (
	// Log is the global logger instance for the daemon.
	Log     = &Logger{level: LevelInfo}
	logOnce sync.Once
)

// Init initializes the global logger to write to the specified file.
// If path is empty, logging is disabled.
func Init(path string, level Level) error {
	if path == "" {
		Log.enabled = false
		return nil
	}

	var initErr error
	logOnce.Do(func() {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			initErr = err
			return
		}
		Log.file = f
		Log.level = level
		Log.enabled = true
		Log.Info("Logger initialized", "path", path)
	})
	return initErr
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Enabled returns whether logging is active.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Writer returns the underlying io.Writer for use with other libraries.
func (l *Logger) Writer() io.Writer {
	if !l.enabled || l.file == nil {
		return io.Discard
	}
	return l.file
}

func (l *Logger) log(level Level, tag string, msg string, keyvals ...any) {
	if !l.enabled || l.file == nil || level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	line := fmt.Sprintf("%s [%s] %s", timestamp, tag, msg)

	for i := 0; i < len(keyvals)-1; i += 2 {
		line += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}

	fmt.Fprintln(l.file, line)
	l.file.Sync()
}

// Debug logs a debug message with optional key-value pairs.
func (l *Logger) Debug(msg string, keyvals ...any) {
	l.log(LevelDebug, "DEBUG", msg, keyvals...)
}

// Info logs an info message with optional key-value pairs.
func (l *Logger) Info(msg string, keyvals ...any) {
	l.log(LevelInfo, "INFO", msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func (l *Logger) Warn(msg string, keyvals ...any) {
	l.log(LevelWarn, "WARN", msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func (l *Logger) Error(msg string, keyvals ...any) {
	l.log(LevelError, "ERROR", msg, keyvals...)
}

// Timed logs the duration of an operation. Usage:
//
//	defer watchlog.Log.Timed("operation name")()
func (l *Logger) Timed(operation string) func() {
	if !l.enabled {
		return func() {}
	}
	start := time.Now()
	l.Debug(operation, "status", "started")
	return func() {
		l.Debug(operation, "status", "completed", "duration", time.Since(start))
	}
}
