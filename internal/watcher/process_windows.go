//go:build windows

package watcher

import "os"

// alive checks whether a process with the given PID exists. On Windows
// Signal(0) is not supported, so this is a best-effort FindProcess check.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
