package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/myelectricaldata/importer/internal/platform/logger"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected   = errors.New("mqtt client is not connected")
	ErrPublishTimeout = errors.New("mqtt publish timed out")
)

// Publisher sends values to the broker with a fixed qos and retain flag
type Publisher struct {
	client  MQTT.Client
	topics  *TopicBuilder
	qos     byte
	retain  bool
	timeout time.Duration
}

func NewPublisher(client MQTT.Client, topics *TopicBuilder, qos byte, retain bool, timeout time.Duration) *Publisher {
	return &Publisher{
		client:  client,
		topics:  topics,
		qos:     qos,
		retain:  retain,
		timeout: timeout,
	}
}

func (p *Publisher) Topics() *TopicBuilder {
	return p.topics
}

// Publish sends one value to <base prefix>/<prefix>/<topic>
func (p *Publisher) Publish(topic string, value interface{}, prefix string) error {
	if p.client == nil || !p.client.IsConnectionOpen() {
		metrics.messagePublishedFailureCounter.Inc()
		return ErrNotConnected
	}

	payload, err := encodePayload(value)
	if err != nil {
		metrics.messagePublishedFailureCounter.Inc()
		return fmt.Errorf("encode payload for %s: %w", topic, err)
	}

	fullTopic := p.topics.Build(prefix, topic)
	log := logger.Log.WithFields(logrus.Fields{"topic": fullTopic, "qos": p.qos, "retain": p.retain})

	callDurationTimer := prometheus.NewTimer(metrics.publishDuration)
	defer callDurationTimer.ObserveDuration()

	token := p.client.Publish(fullTopic, p.qos, p.retain, payload)

	if p.timeout > 0 {
		if !token.WaitTimeout(p.timeout) {
			log.Info(" - Failed to send message to topic")
			metrics.messagePublishedFailureCounter.Inc()
			return ErrPublishTimeout
		}
	} else {
		token.Wait()
	}

	if token.Error() != nil {
		log.WithFields(logrus.Fields{"error": token.Error()}).Info(" - Failed to send message to topic")
		metrics.messagePublishedFailureCounter.Inc()
		return token.Error()
	}

	log.Debugf(" MQTT Send : %s => %s", fullTopic, payload)
	metrics.messagePublishedSuccessCounter.Inc()

	return nil
}

// PublishMultiple sends every value in topic order and reports all failures at once
func (p *Publisher) PublishMultiple(data map[string]interface{}, prefix string) error {
	if len(data) == 0 {
		return nil
	}

	topics := make([]string, 0, len(data))
	for topic := range data {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	var errs []error
	for _, topic := range topics {
		if err := p.Publish(topic, data[topic], prefix); err != nil {
			if errors.Is(err, ErrNotConnected) {
				return err
			}
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
		}
	}

	return errors.Join(errs...)
}

func encodePayload(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return []byte{}, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case fmt.Stringer:
		return []byte(v.String()), nil
	case bool, int, int64, uint, uint64, float32, float64:
		return []byte(fmt.Sprint(v)), nil
	}

	messageBuffer := &bytes.Buffer{}
	encoder := json.NewEncoder(messageBuffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}

	return bytes.TrimRight(messageBuffer.Bytes(), "\n"), nil
}
