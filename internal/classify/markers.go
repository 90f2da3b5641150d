package classify

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Markers is the closed set of semantic tags recognized in stop diagnostics.
// All provider-specific error text is translated here, in one place, so a new
// provider's error format is a one-line addition rather than a string
// comparison scattered through the classifier.
type Markers struct {
	RateLimit   bool
	ContextFull bool

	// RetryAfter is an explicit retry interval stated in the diagnostics,
	// 0 when none was stated.
	RetryAfter time.Duration
}

// rateLimitPatterns match provider rate-limit errors, matched lowercase.
var rateLimitPatterns = []string{
	"429",
	"rate limit",
	"rate_limit_error",
	"rate-limited",
	"too many requests",
	"overloaded_error",
	"quota exceeded",
	"usage limit reached",
}

// contextFullPatterns match provider context/capacity-exceeded errors.
var contextFullPatterns = []string{
	"context window",
	"context length",
	"context_length_exceeded",
	"prompt is too long",
	"maximum context",
	"input is too long",
	"conversation too long",
}

var (
	// "retry after 62s", "retry after 2 minutes", "try again in 1m30s"
	retryAfterRe = regexp.MustCompile(`(?i)(?:retry[- ]after[:\s]+|try again in\s+)(\d+(?:[a-z]+\d+)*[a-z]*|\d+)\s*(seconds?|minutes?|hours?)?`)
)

// ScanDiagnostics translates raw diagnostic text into semantic markers.
// Pure function; the only place provider error formats are interpreted.
func ScanDiagnostics(diagnostics string) Markers {
	var m Markers
	lower := strings.ToLower(diagnostics)

	for _, p := range rateLimitPatterns {
		if strings.Contains(lower, p) {
			m.RateLimit = true
			break
		}
	}
	for _, p := range contextFullPatterns {
		if strings.Contains(lower, p) {
			m.ContextFull = true
			break
		}
	}

	if m.RateLimit {
		m.RetryAfter = extractRetryAfter(lower)
	}
	return m
}

// extractRetryAfter pulls an explicit retry interval out of diagnostics.
// Bare numbers are interpreted as seconds, matching the HTTP Retry-After
// header convention.
func extractRetryAfter(lower string) time.Duration {
	match := retryAfterRe.FindStringSubmatch(lower)
	if match == nil {
		return 0
	}

	value, unit := match[1], match[2]

	// Plain integer: seconds, possibly qualified by a spelled-out unit.
	if n, err := strconv.Atoi(value); err == nil {
		switch {
		case strings.HasPrefix(unit, "minute"):
			return time.Duration(n) * time.Minute
		case strings.HasPrefix(unit, "hour"):
			return time.Duration(n) * time.Hour
		default:
			return time.Duration(n) * time.Second
		}
	}

	// Otherwise accept Go duration syntax like "1m30s".
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return 0
}
