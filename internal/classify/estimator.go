package classify

import (
	"strconv"

	"github.com/wethinkt/go-sentinel/internal/session"
)

// UsageEstimator estimates context-window fullness for a session as a ratio
// in [0, 1]. Implementations return ok=false when no estimate is possible;
// the classifier then never infers exhaustion from the ratio path.
type UsageEstimator interface {
	Estimate(rec *session.Record) (ratio float64, ok bool)
}

// MetaEstimator is the conservative default estimator: it only trusts
// explicit context_used / context_limit values the assistant wrote into the
// session header, and refuses to guess otherwise.
type MetaEstimator struct{}

// Estimate reads context_used and context_limit from the record metadata.
func (MetaEstimator) Estimate(rec *session.Record) (float64, bool) {
	used, err := strconv.ParseFloat(rec.Meta["context_used"], 64)
	if err != nil || used < 0 {
		return 0, false
	}
	limit, err := strconv.ParseFloat(rec.Meta["context_limit"], 64)
	if err != nil || limit <= 0 {
		return 0, false
	}
	ratio := used / limit
	if ratio > 1 {
		ratio = 1
	}
	return ratio, true
}

// FixedEstimator always reports the same ratio. Useful in tests and as an
// override when an external tool computes fullness out of band.
type FixedEstimator struct {
	Ratio float64
}

// Estimate returns the fixed ratio.
func (f FixedEstimator) Estimate(*session.Record) (float64, bool) {
	return f.Ratio, true
}
