package daemon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "classifications_total",
		Help:      "Total stop classifications, by verdict.",
	}, []string{"verdict"})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "decisions_total",
		Help:      "Total orchestration decisions, by verdict and outcome.",
	}, []string{"verdict", "outcome"})

	resumesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "resumes_total",
		Help:      "Total successful resumptions, by strategy.",
	}, []string{"strategy"})

	resumeWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "resume_wait_seconds",
		Help:      "Time waited out before a successful resumption.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	crashLoopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "crash_loops_total",
		Help:      "Total crash loop suspensions.",
	})

	trackedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sentinel",
		Subsystem: "monitor",
		Name:      "tracked_sessions",
		Help:      "Number of session files with cached records.",
	})
)
