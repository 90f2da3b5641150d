//go:build !windows

package watcher

import "syscall"

// alive reports whether a process with the given PID exists. Signal 0
// performs the existence check without delivering anything; EPERM means
// the process exists but belongs to another user.
func alive(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
