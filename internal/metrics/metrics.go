// Package metrics exposes Prometheus collectors for the tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "osrs_tracker",
		Name:      "ingestions_total",
		Help:      "Successful player stat ingestions.",
	})

	UpstreamErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "osrs_tracker",
		Name:      "upstream_errors_total",
		Help:      "Failed hiscores fetches.",
	})

	GainsComputedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "osrs_tracker",
		Name:      "gains_computed_total",
		Help:      "Gain records computed and upserted, by period.",
	}, []string{"period"})

	GroupGainsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "osrs_tracker",
		Name:      "group_gains_duration_seconds",
		Help:      "Wall time of group-wide gains computations, by period.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"period"})

	SchedulerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "osrs_tracker",
		Name:      "scheduler_runs_total",
		Help:      "Scheduled gains sweeps, by period and outcome.",
	}, []string{"period", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "osrs_tracker",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by path and status code.",
	}, []string{"path", "status"})
)
