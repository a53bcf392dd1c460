package exporters

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type exporterMetrics struct {
	influxPointsWritten         prometheus.Counter
	homeAssistantStatsImported  prometheus.Counter
	homeAssistantImportFailures prometheus.Counter
}

func newExporterMetrics() *exporterMetrics {
	return &exporterMetrics{
		influxPointsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "myelectricaldata_influxdb_points_written_total",
			Help: "The total number of points written to InfluxDB",
		}),
		homeAssistantStatsImported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "myelectricaldata_home_assistant_statistics_imported_total",
			Help: "The total number of statistics rows imported into Home Assistant",
		}),
		homeAssistantImportFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "myelectricaldata_home_assistant_import_failures_total",
			Help: "The total number of rejected Home Assistant statistics imports",
		}),
	}
}

var metrics = newExporterMetrics()
