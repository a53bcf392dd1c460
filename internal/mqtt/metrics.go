package mqtt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	messagePublishedSuccessCounter prometheus.Counter
	messagePublishedFailureCounter prometheus.Counter
	publishDuration                prometheus.Histogram
	brokerConnectionFailures       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.messagePublishedSuccessCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "myelectricaldata_mqtt_message_published_success_count",
		Help: "The number of messages published to the MQTT broker",
	})

	metrics.messagePublishedFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "myelectricaldata_mqtt_message_published_failure_count",
		Help: "The number of messages that could not be published to the MQTT broker",
	})

	metrics.publishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "myelectricaldata_mqtt_publish_duration",
		Help: "The amount of time it took to publish a message",
	})

	metrics.brokerConnectionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "myelectricaldata_mqtt_broker_connection_failure_count",
		Help: "The number of MQTT broker connection failures per category",
	}, []string{"category"})

	return metrics
}

var (
	metrics = NewMetrics()
)
