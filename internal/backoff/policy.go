// Package backoff computes retry wait intervals for resumption attempts.
//
// The policy is deliberately self-contained math rather than a wrapper over
// a retry library: an explicit provider hint must be returned verbatim and
// reset the exponential curve, and tests need determinism from a fixed seed.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// Defaults used when a field is left zero.
const (
	DefaultBase = 30 * time.Second
	DefaultMax  = 5 * time.Minute
)

// jitterFraction is the maximum relative perturbation applied to a delay.
const jitterFraction = 0.10

// Delay is one computed wait interval.
type Delay struct {
	Wait time.Duration

	// ResetCurve signals that the interval came from an explicit provider
	// hint: the hint is authoritative, so a failure after it restarts the
	// exponential curve at attempt 1.
	ResetCurve bool
}

// Policy computes exponential backoff with optional jitter. The zero value
// is not usable; construct with New.
type Policy struct {
	base   time.Duration
	max    time.Duration
	jitter bool

	// One policy is shared by every session worker; rand.Rand is not safe
	// for concurrent use, so draws are serialized.
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Policy. Zero base or max take the package defaults. The
// seed fixes the jitter sequence; pass time.Now().UnixNano() outside tests.
func New(base, max time.Duration, jitter bool, seed int64) *Policy {
	if base <= 0 {
		base = DefaultBase
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &Policy{
		base:   base,
		max:    max,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Next returns the wait before retry number attempt (1-based). A positive
// hint is returned verbatim with ResetCurve set. Otherwise the delay is
// min(base * 2^(attempt-1), max), perturbed by up to ±10% when jitter is
// enabled so multiple monitored sessions do not resume in lockstep.
func (p *Policy) Next(attempt uint32, hint time.Duration) Delay {
	if hint > 0 {
		return Delay{Wait: hint, ResetCurve: true}
	}
	if attempt < 1 {
		attempt = 1
	}

	d := p.base
	for i := uint32(1); i < attempt; i++ {
		d *= 2
		if d >= p.max || d < 0 { // overflow guard
			d = p.max
			break
		}
	}
	if d > p.max {
		d = p.max
	}

	if p.jitter {
		// Uniform in [-10%, +10%].
		p.mu.Lock()
		f := 1 + jitterFraction*(2*p.rng.Float64()-1)
		p.mu.Unlock()
		d = time.Duration(float64(d) * f)
	}
	return Delay{Wait: d}
}
