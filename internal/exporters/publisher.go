package exporters

import "github.com/myelectricaldata/importer/internal/mqtt"

// Publisher is satisfied by *mqtt.Publisher
type Publisher interface {
	Publish(topic string, value interface{}, prefix string) error
	PublishMultiple(data map[string]interface{}, prefix string) error
	Topics() *mqtt.TopicBuilder
}
