// Package session extracts structured progress records from session files.
//
// A session file is a markdown document whose state lives entirely in a TOML
// frontmatter header delimited by "+++" lines. The body is free-form prose
// written by the assistant and is deliberately never parsed.
package session

import "time"

// Record is the structured view of one session file at one point in time.
// Records are immutable: a file change produces a fresh Record rather than
// mutating the previous one, so readers never observe a partial update.
type Record struct {
	// Path is the session file path and the stable key for all per-session
	// state in the daemon.
	Path string

	// StepsCompleted lists completed step identifiers in header order.
	StepsCompleted []int

	// CurrentStep is the step the session was working on, 0 if unknown.
	CurrentStep int

	// TotalSteps is the planned step count, 0 if the header omits it
	// (normal for in-progress sessions).
	TotalSteps int

	// Meta carries free-form header metadata (model, project, limits).
	Meta map[string]string

	// ExtractedAt is when this record was parsed.
	ExtractedAt time.Time
}

// MaxCompletedStep returns the highest completed step identifier, 0 if none.
func (r *Record) MaxCompletedStep() int {
	max := 0
	for _, s := range r.StepsCompleted {
		if s > max {
			max = s
		}
	}
	return max
}

// ContinuationStep returns the step a new session should start from.
func (r *Record) ContinuationStep() int {
	return r.MaxCompletedStep() + 1
}

// Completed reports whether the final expected step is in the completed set.
// Always false when the total step count is unknown.
func (r *Record) Completed() bool {
	if r.TotalSteps <= 0 {
		return false
	}
	for _, s := range r.StepsCompleted {
		if s == r.TotalSteps {
			return true
		}
	}
	return false
}

// Supersedes reports whether this record represents a new session relative
// to prev: progress moving backwards on the same path means the file was
// recreated for a fresh run, not that steps were un-completed.
func (r *Record) Supersedes(prev *Record) bool {
	if prev == nil {
		return false
	}
	return r.MaxCompletedStep() < prev.MaxCompletedStep()
}
