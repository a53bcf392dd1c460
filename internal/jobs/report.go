package jobs

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// RunReporter publishes the result of every completed run
type RunReporter interface {
	Report(ctx context.Context, result *RunResult) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewRunReporter(impl string, writerFactory func() (MessageWriter, error)) (RunReporter, error) {
	switch impl {
	case "kafka":
		writer, err := writerFactory()
		if err != nil {
			return nil, err
		}
		return &KafkaRunReporter{writer: writer}, nil
	case "fake":
		return &FakeRunReporter{}, nil
	default:
		return nil, errors.New("Invalid RunReporter impl requested")
	}
}

type KafkaRunReporter struct {
	writer MessageWriter
}

func (r *KafkaRunReporter) Report(ctx context.Context, result *RunResult) error {
	log := logger.Log.WithFields(logrus.Fields{"run_id": result.RunID})

	jsonMessage, err := json.Marshal(result)
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("JSON marshal of run report failed")
		return err
	}

	headers := []kafka.Header{
		{Key: "run_id", Value: []byte(result.RunID)},
	}
	if result.Target != "" {
		headers = append(headers, kafka.Header{Key: "usage_point_id", Value: []byte(result.Target)})
	}

	err = r.writer.WriteMessages(ctx,
		kafka.Message{
			Key:     []byte(result.RunID),
			Value:   jsonMessage,
			Headers: headers,
		})
	if err != nil {
		return err
	}

	log.Debug("Run report kafka message written")
	return nil
}

type FakeRunReporter struct {
}

func (r *FakeRunReporter) Report(ctx context.Context, result *RunResult) error {
	logger.Log.WithFields(logrus.Fields{"run_id": result.RunID}).Debug("FAKE: run report ", result.Outcomes)
	return nil
}
