package metering_repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type meteringRepositoryMetrics struct {
	sqlLookupUsagePointsDuration prometheus.Histogram
	sqlSetErrorLogDuration       prometheus.Histogram
	sqlSetLastCallDuration       prometheus.Histogram
	sqlStoreReadingsDuration     *prometheus.HistogramVec
	sqlLoadReadingsDuration      *prometheus.HistogramVec
}

var metrics *meteringRepositoryMetrics

func init() {
	metrics = new(meteringRepositoryMetrics)

	metrics.sqlLookupUsagePointsDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "myelectricaldata_sql_lookup_usage_points_duration",
		Help: "The amount of time it took to lookup the usage point states",
	})

	metrics.sqlSetErrorLogDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "myelectricaldata_sql_set_error_log_duration",
		Help: "The amount of time it took to record the last error of a usage point",
	})

	metrics.sqlSetLastCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "myelectricaldata_sql_set_last_call_duration",
		Help: "The amount of time it took to record the last call of a usage point",
	})

	metrics.sqlStoreReadingsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "myelectricaldata_sql_store_readings_duration",
		Help: "The amount of time it took to store a batch of readings",
	}, []string{"table"})

	metrics.sqlLoadReadingsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "myelectricaldata_sql_load_readings_duration",
		Help: "The amount of time it took to load a range of readings",
	}, []string{"table"})
}
