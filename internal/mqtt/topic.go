package mqtt

import (
	"strings"
)

const defaultTopicPrefix string = "myelectricaldata"

// TopicBuilder roots every published topic under a base prefix
type TopicBuilder struct {
	prefix string
}

func NewTopicBuilder(prefix string) *TopicBuilder {

	topicBuilder := &TopicBuilder{prefix: defaultTopicPrefix}
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		topicBuilder.prefix = prefix
	}

	return topicBuilder
}

// Build joins the base prefix, the optional sub prefix and the topic
func (tb *TopicBuilder) Build(subPrefix string, topic string) string {
	parts := []string{tb.prefix}
	if subPrefix = strings.Trim(subPrefix, "/"); subPrefix != "" {
		parts = append(parts, subPrefix)
	}
	if topic = strings.Trim(topic, "/"); topic != "" {
		parts = append(parts, topic)
	}
	return strings.Join(parts, "/")
}
