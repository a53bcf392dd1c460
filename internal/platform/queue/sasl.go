package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/myelectricaldata/importer/internal/platform/logger"
	"github.com/myelectricaldata/importer/internal/platform/utils/tls_utils"

	kafka "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

func saslMechanism(cfg *SaslConfig) (sasl.Mechanism, error) {
	switch strings.ToLower(cfg.SaslMechanism) {
	case "plain":
		return plain.Mechanism{
			Username: cfg.SaslUsername,
			Password: cfg.SaslPassword,
		}, nil
	case "scram-sha-512":
		return scram.Mechanism(scram.SHA512, cfg.SaslUsername, cfg.SaslPassword)
	case "scram-sha-256":
		return scram.Mechanism(scram.SHA256, cfg.SaslUsername, cfg.SaslPassword)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.SaslMechanism)
	}
}

func saslDialer(cfg *SaslConfig) (*kafka.Dialer, error) {

	mechanism, err := saslMechanism(cfg)
	if err != nil {
		logger.Log.Error("Failed to create the SASL mechanism: ", err)
		return nil, err
	}

	var tlsOptions []tls_utils.TlsConfigFunc
	if cfg.KafkaCA != "" {
		tlsOptions = append(tlsOptions, tls_utils.WithCACerts(cfg.KafkaCA))
	}

	tlsConfig, err := tls_utils.NewTlsConfig(tlsOptions...)
	if err != nil {
		logger.Log.Error("Unable to read kafka cert: ", err)
		return nil, err
	}

	return &kafka.Dialer{
		Timeout:       10 * time.Second,
		DualStack:     true,
		SASLMechanism: mechanism,
		TLS:           tlsConfig,
	}, nil
}
