package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type jobMetrics struct {
	runCounter          *prometheus.CounterVec
	runDuration         prometheus.Histogram
	methodOutcomes      *prometheus.CounterVec
	methodDuration      *prometheus.HistogramVec
	reportFailures      prometheus.Counter
	lockContentionCount prometheus.Counter
}

func newJobMetrics() *jobMetrics {
	return &jobMetrics{
		runCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "myelectricaldata_import_runs_total",
			Help: "The total number of import runs by status",
		}, []string{"status"}),
		runDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "myelectricaldata_import_run_duration_seconds",
			Help:    "Duration of a complete import run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		methodOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "myelectricaldata_import_method_outcomes_total",
			Help: "The total number of method invocations by outcome",
		}, []string{"method", "outcome"}),
		methodDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "myelectricaldata_import_method_duration_seconds",
			Help: "Duration of one method invocation",
		}, []string{"method"}),
		reportFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "myelectricaldata_import_run_report_failures_total",
			Help: "The total number of run reports that could not be produced",
		}),
		lockContentionCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "myelectricaldata_import_lock_contention_total",
			Help: "The total number of runs refused because another run was active",
		}),
	}
}

var metrics = newJobMetrics()
