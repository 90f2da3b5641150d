package classify

import (
	"testing"
	"time"

	"github.com/wethinkt/go-sentinel/internal/session"
)

func record(steps []int, total int, meta map[string]string) *session.Record {
	if meta == nil {
		meta = map[string]string{}
	}
	return &session.Record{
		Path:           "/tmp/session.md",
		StepsCompleted: steps,
		TotalSteps:     total,
		Meta:           meta,
		ExtractedAt:    time.Now(),
	}
}

func TestClassify_Precedence(t *testing.T) {
	c := &Classifier{}
	done := record([]int{1, 2, 3}, 3, nil)

	tests := []struct {
		name        string
		rec         *session.Record
		sig         ProcessSignal
		diagnostics string
		want        Verdict
	}{
		{
			name:        "crash beats rate limit markers",
			rec:         done,
			sig:         ProcessSignal{Exited: true, ExitCode: 1},
			diagnostics: "error 429: rate limit exceeded",
			want:        Crashed,
		},
		{
			name:        "kill signal beats everything",
			rec:         done,
			sig:         ProcessSignal{Killed: true},
			diagnostics: "context window exceeded",
			want:        Crashed,
		},
		{
			name:        "rate limit beats context markers",
			rec:         done,
			sig:         ProcessSignal{Exited: true, ExitCode: 0},
			diagnostics: "rate_limit_error; also context length exceeded",
			want:        RateLimit,
		},
		{
			name:        "context marker beats completion",
			rec:         done,
			sig:         ProcessSignal{Exited: true, ExitCode: 0},
			diagnostics: "prompt is too long",
			want:        ContextExhausted,
		},
		{
			name: "completion beats user exit",
			rec:  done,
			sig:  ProcessSignal{Exited: true, ExitCode: 0},
			want: Completed,
		},
		{
			name: "clean exit with no progress is user exit",
			rec:  record([]int{1}, 5, nil),
			sig:  ProcessSignal{Exited: true, ExitCode: 0},
			want: UserExit,
		},
		{
			name:        "no signal and no markers is unknown",
			rec:         record([]int{1}, 5, nil),
			diagnostics: "something odd happened",
			want:        Unknown,
		},
		{
			name: "nil record crash still classifies",
			sig:  ProcessSignal{Exited: true, ExitCode: 137},
			want: Crashed,
		},
		{
			name:        "nil record rate limit still classifies",
			diagnostics: "too many requests",
			want:        RateLimit,
		},
		{
			name: "nil record clean exit is still a user exit",
			sig:  ProcessSignal{Exited: true, ExitCode: 0},
			want: UserExit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.rec, tt.sig, tt.diagnostics)
			if got.Verdict != tt.want {
				t.Errorf("Classify() = %s, want %s", got.Verdict, tt.want)
			}
		})
	}
}

func TestClassify_CrashExitCode(t *testing.T) {
	c := &Classifier{}
	got := c.Classify(nil, ProcessSignal{Exited: true, ExitCode: 2}, "")
	if got.Verdict != Crashed || !got.HasExitCode || got.ExitCode != 2 {
		t.Errorf("expected crashed with exit code 2, got %+v", got)
	}

	killed := c.Classify(nil, ProcessSignal{Killed: true}, "")
	if killed.Verdict != Crashed || killed.HasExitCode {
		t.Errorf("kill without exit status must not carry an exit code, got %+v", killed)
	}
}

func TestClassify_RetryAfterExtraction(t *testing.T) {
	c := &Classifier{}

	tests := []struct {
		diagnostics string
		want        time.Duration
	}{
		{"429 too many requests, retry after 60", 60 * time.Second},
		{"rate limited, retry-after: 90 seconds", 90 * time.Second},
		{"usage limit reached, try again in 5 minutes", 5 * time.Minute},
		{"rate limit exceeded, try again in 1m30s", 90 * time.Second},
		{"rate limit exceeded", 0},
	}

	for _, tt := range tests {
		got := c.Classify(nil, ProcessSignal{}, tt.diagnostics)
		if got.Verdict != RateLimit {
			t.Errorf("%q: expected rate limit, got %s", tt.diagnostics, got.Verdict)
			continue
		}
		if got.RetryAfter != tt.want {
			t.Errorf("%q: RetryAfter = %v, want %v", tt.diagnostics, got.RetryAfter, tt.want)
		}
	}
}

func TestClassify_UsageRatioThreshold(t *testing.T) {
	c := &Classifier{}

	over := record([]int{1}, 10, map[string]string{
		"context_used":  "170000",
		"context_limit": "200000",
	})
	got := c.Classify(over, ProcessSignal{}, "")
	if got.Verdict != ContextExhausted {
		t.Fatalf("expected context_exhausted at 0.85 usage, got %s", got.Verdict)
	}
	if got.UsageRatio < 0.84 || got.UsageRatio > 0.86 {
		t.Errorf("UsageRatio = %v, want ~0.85", got.UsageRatio)
	}

	under := record([]int{1}, 10, map[string]string{
		"context_used":  "100000",
		"context_limit": "200000",
	})
	if got := c.Classify(under, ProcessSignal{}, ""); got.Verdict == ContextExhausted {
		t.Errorf("0.5 usage must not classify as context_exhausted")
	}
}

func TestClassify_CustomThresholdAndEstimator(t *testing.T) {
	c := &Classifier{Threshold: 0.5, Estimator: FixedEstimator{Ratio: 0.6}}
	got := c.Classify(record(nil, 0, nil), ProcessSignal{}, "")
	if got.Verdict != ContextExhausted {
		t.Errorf("expected context_exhausted with custom threshold, got %s", got.Verdict)
	}
}

func TestClassify_ContextMarkerWithoutEstimate(t *testing.T) {
	c := &Classifier{}
	got := c.Classify(record(nil, 0, nil), ProcessSignal{}, "maximum context reached")
	if got.Verdict != ContextExhausted {
		t.Fatalf("expected context_exhausted, got %s", got.Verdict)
	}
	if got.UsageRatio >= 0 {
		t.Errorf("expected unknown usage ratio, got %v", got.UsageRatio)
	}
}

func TestScanDiagnostics_ClosedSet(t *testing.T) {
	m := ScanDiagnostics("Error: rate_limit_error and context window exceeded")
	if !m.RateLimit || !m.ContextFull {
		t.Errorf("expected both markers, got %+v", m)
	}

	none := ScanDiagnostics("panic: runtime error")
	if none.RateLimit || none.ContextFull {
		t.Errorf("expected no markers, got %+v", none)
	}
}

func TestMetaEstimator_RefusesToGuess(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]string
	}{
		{"no meta", map[string]string{}},
		{"missing limit", map[string]string{"context_used": "100"}},
		{"zero limit", map[string]string{"context_used": "100", "context_limit": "0"}},
		{"garbage", map[string]string{"context_used": "lots", "context_limit": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := (MetaEstimator{}).Estimate(record(nil, 0, tt.meta)); ok {
				t.Error("estimator must refuse to guess")
			}
		})
	}
}

func TestMetaEstimator_ClampsToOne(t *testing.T) {
	rec := record(nil, 0, map[string]string{"context_used": "300", "context_limit": "200"})
	ratio, ok := (MetaEstimator{}).Estimate(rec)
	if !ok || ratio != 1 {
		t.Errorf("expected clamped ratio 1, got %v ok=%v", ratio, ok)
	}
}
