package state

import (
	"errors"
	"sync"
	"testing"
)

func TestGate_LegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		ok   bool
	}{
		{"monitoring to paused", Monitoring, Paused, true},
		{"paused to monitoring", Paused, Monitoring, true},
		{"monitoring to shutdown", Monitoring, ShuttingDown, true},
		{"paused to shutdown", Paused, ShuttingDown, true},
		{"shutdown to monitoring", ShuttingDown, Monitoring, false},
		{"shutdown to paused", ShuttingDown, Paused, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate()
			g.state.Store(int32(tt.from))

			err := g.Transition(tt.to)
			if tt.ok && err != nil {
				t.Fatalf("Transition(%s) from %s: unexpected error %v", tt.to, tt.from, err)
			}
			if !tt.ok {
				var ite *InvalidTransitionError
				if !errors.As(err, &ite) {
					t.Fatalf("Transition(%s) from %s: expected InvalidTransitionError, got %v", tt.to, tt.from, err)
				}
				if g.Current() != tt.from {
					t.Errorf("state changed on rejected transition: %s", g.Current())
				}
			}
		})
	}
}

func TestGate_SelfTransitionIsNoop(t *testing.T) {
	g := NewGate()
	if err := g.Transition(Monitoring); err != nil {
		t.Fatalf("self transition: %v", err)
	}
	if g.Current() != Monitoring {
		t.Errorf("expected monitoring, got %s", g.Current())
	}
}

func TestGate_ShutdownIsTerminal(t *testing.T) {
	g := NewGate()
	if err := g.Transition(ShuttingDown); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// Even a repeated shutdown must not error (no-op), but leaving must.
	if err := g.Transition(ShuttingDown); err != nil {
		t.Fatalf("repeated shutdown: %v", err)
	}
	if err := g.Transition(Monitoring); err == nil {
		t.Fatal("expected error leaving shutdown")
	}
}

func TestGate_ConcurrentReads(t *testing.T) {
	g := NewGate()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = g.Current()
			}
		}()
	}
	for i := 0; i < 100; i++ {
		_ = g.Transition(Paused)
		_ = g.Transition(Monitoring)
	}
	wg.Wait()
}
