package daemon

import (
	"io"
	"os"
)

// diagnosticsTailBytes bounds how much of a diagnostics sidecar is read.
// Stop errors are written at the end, so the tail is all that matters.
const diagnosticsTailBytes = 4096

// readDiagnostics returns the tail of the session's diagnostics sidecar
// ("<session>.log"). Missing or unreadable sidecars yield an empty string:
// classification then proceeds on process state alone.
func readDiagnostics(sessionPath string) string {
	f, err := os.Open(sessionPath + ".log")
	if err != nil {
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	if size := info.Size(); size > diagnosticsTailBytes {
		if _, err := f.Seek(size-diagnosticsTailBytes, io.SeekStart); err != nil {
			return ""
		}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return ""
	}
	return string(data)
}

// writeNewFile creates a file that must not already exist.
func writeNewFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
