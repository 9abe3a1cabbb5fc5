// Package metrics is Component H (SPEC_FULL.md §4.H): a process-wide
// Prometheus registry for the reference cache and fetch engine. All
// recorder functions are no-ops until Enable is called, following the
// teacher's nil-check pattern so callers never need to branch on whether
// metrics are configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mirrorOperations       *prometheus.CounterVec
	mirrorEvictions        *prometheus.CounterVec
	retries                *prometheus.CounterVec
	submoduleFetchDuration *prometheus.HistogramVec
	cacheHits              prometheus.Counter
	cacheMisses            prometheus.Counter
)

// Enable registers all metrics under namespace with registerer. Available
// metrics:
//   - git_fastclone_mirror_operations_total (tags: repo, outcome)
//   - git_fastclone_mirror_eviction_total (tags: repo)
//   - git_fastclone_retry_total (tags: repo)
//   - git_fastclone_submodule_fetch_duration_seconds (tags: repo)
//   - git_fastclone_cache_hit_total
//   - git_fastclone_cache_miss_total
func Enable(namespace string, registerer prometheus.Registerer) {
	mirrorOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mirror_operations_total",
		Help:      "Count of reference-cache mirror operations (clone/update) by outcome",
	}, []string{"repo", "outcome"})

	mirrorEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mirror_eviction_total",
		Help:      "Count of mirror entries evicted due to corruption",
	}, []string{"repo"})

	retries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retry_total",
		Help:      "Count of with_mirror body retries after a retriable failure",
	}, []string{"repo"})

	submoduleFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "submodule_fetch_duration_seconds",
		Help:      "Latency of a successful mirror clone/update (store_updated), for top-level and submodule mirrors alike",
		Buckets:   []float64{0.5, 1, 5, 10, 20, 30, 60, 90, 120, 150, 300},
	}, []string{"repo"})

	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hit_total",
		Help:      "Count of with_mirror calls that found an already-fresh mirror this run",
	})

	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_miss_total",
		Help:      "Count of with_mirror calls that had to clone or update the mirror",
	})

	registerer.MustRegister(mirrorOperations, mirrorEvictions, retries, submoduleFetchDuration, cacheHits, cacheMisses)
}

// RecordMirrorOperation records a mirror clone/update attempt for repo with
// the given outcome ("success" or "failure").
func RecordMirrorOperation(repo, outcome string) {
	if mirrorOperations == nil {
		return
	}
	mirrorOperations.WithLabelValues(repo, outcome).Inc()
}

// RecordEviction records a corruption-triggered mirror eviction for repo.
func RecordEviction(repo string) {
	if mirrorEvictions == nil {
		return
	}
	mirrorEvictions.WithLabelValues(repo).Inc()
}

// RecordRetry records a with_mirror retry for repo.
func RecordRetry(repo string) {
	if retries == nil {
		return
	}
	retries.WithLabelValues(repo).Inc()
}

// ObserveSubmoduleFetchDuration records how long a successful mirror
// clone/update for repo took, measured from start. The reference cache calls
// it once per successful store_updated, for top-level and submodule mirrors
// alike; the `submodule update` run inside a with_mirror body is not timed.
func ObserveSubmoduleFetchDuration(repo string, start time.Time) {
	if submoduleFetchDuration == nil {
		return
	}
	submoduleFetchDuration.WithLabelValues(repo).Observe(time.Since(start).Seconds())
}

// RecordCacheHit records a with_mirror call that found its mirror already
// marked fresh this run.
func RecordCacheHit() {
	if cacheHits == nil {
		return
	}
	cacheHits.Inc()
}

// RecordCacheMiss records a with_mirror call that had to clone or update.
func RecordCacheMiss() {
	if cacheMisses == nil {
		return
	}
	cacheMisses.Inc()
}
