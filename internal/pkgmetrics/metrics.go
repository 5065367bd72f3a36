// Package pkgmetrics registers the daemon's Prometheus collectors.
package pkgmetrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds pkgkitd's own collectors, kept separate from the
// default global registry so the introspection endpoint can expose
// exactly this set.
var Registry = prometheus.NewRegistry()

var (
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pkgkitd",
			Subsystem: "jobs",
			Name:      "total",
			Help:      "Total number of jobs run, by role and exit status.",
		},
		[]string{"role", "exit"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pkgkitd",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Duration of a job from start_job to Finished.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"role"},
	)

	SackCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pkgkitd",
			Subsystem: "sack",
			Name:      "lookups_total",
			Help:      "Sack cache lookups, by outcome (hit, miss).",
		},
		[]string{"outcome"},
	)

	RepoRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pkgkitd",
			Subsystem: "refresh",
			Name:      "repo_total",
			Help:      "Per-repo refresh outcomes.",
		},
		[]string{"repo_id", "outcome"},
	)
)

func init() {
	Registry.MustRegister(JobsTotal, JobDuration, SackCacheLookups, RepoRefreshTotal)
}
