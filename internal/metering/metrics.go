package metering

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type meteringClientMetrics struct {
	gatewayRequestDuration *prometheus.HistogramVec
	gatewayResponses       *prometheus.CounterVec
	calendarCacheHits      prometheus.Counter
}

var metrics *meteringClientMetrics

func init() {
	metrics = new(meteringClientMetrics)

	metrics.gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "myelectricaldata_gateway_request_duration",
		Help: "The amount of time it took to call the gateway",
	}, []string{"endpoint"})

	metrics.gatewayResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "myelectricaldata_gateway_responses_total",
		Help: "The number of gateway answers by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	metrics.calendarCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "myelectricaldata_gateway_calendar_cache_hits_total",
		Help: "The number of tempo and ecowatt lookups answered from the cache",
	})
}
