// Package state holds the process-wide daemon state gate. The gate decides
// whether the orchestrator is allowed to take resumption actions; it is
// passed explicitly into components rather than read as a global.
package state

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the daemon's lifecycle state.
type State int32

const (
	// Monitoring means the daemon classifies stops and acts on them.
	Monitoring State = iota
	// Paused means the daemon classifies and records but takes no actions.
	Paused
	// ShuttingDown is terminal; no further transitions are legal.
	ShuttingDown
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case Monitoring:
		return "monitoring"
	case Paused:
		return "paused"
	case ShuttingDown:
		return "shutting_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// InvalidTransitionError is returned when a requested state transition is
// not legal.
type InvalidTransitionError struct {
	From, To State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// Gate serializes writes to the daemon state while keeping reads lock-free.
// Legal transitions are Monitoring <-> Paused and anything -> ShuttingDown.
type Gate struct {
	mu    sync.Mutex
	state atomic.Int32
}

// NewGate returns a gate in the Monitoring state.
func NewGate() *Gate {
	return &Gate{}
}

// Current returns a snapshot of the state without locking.
func (g *Gate) Current() State {
	return State(g.state.Load())
}

// Transition moves the gate to the requested state. ShuttingDown is
// terminal: once entered, every further transition fails. Transitioning to
// the current state is a no-op.
func (g *Gate) Transition(to State) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	from := State(g.state.Load())
	if from == to {
		return nil
	}

	switch {
	case from == ShuttingDown:
		return &InvalidTransitionError{From: from, To: to}
	case to == ShuttingDown:
		// any state may shut down
	case from == Monitoring && to == Paused:
	case from == Paused && to == Monitoring:
	default:
		return &InvalidTransitionError{From: from, To: to}
	}

	g.state.Store(int32(to))
	return nil
}
