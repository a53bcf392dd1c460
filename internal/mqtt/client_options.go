package mqtt

import (
	"crypto/tls"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

type MqttClientOptionsFunc func(*MQTT.ClientOptions) error

func WithTlsConfig(tlsConfig *tls.Config) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		logger.Log.Debug("Setting the MQTT TLS config")
		opts.SetTLSConfig(tlsConfig)
		return nil
	}
}

func WithClientID(clientID string) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		logger.Log.Debugf("Setting the MQTT client id: %s", clientID)
		opts.SetClientID(clientID)
		return nil
	}
}

// WithCredentials is a no-op unless both username and password are set
func WithCredentials(username string, password string) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		if username == "" || password == "" {
			return nil
		}
		logger.Log.Debugf("Setting the MQTT username: %s", username)
		opts.SetUsername(username)
		opts.SetPassword(password)
		return nil
	}
}

func WithCleanSession(cleanSession bool) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetCleanSession(cleanSession)
		return nil
	}
}

func WithConnectTimeout(timeout time.Duration) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetConnectTimeout(timeout)
		return nil
	}
}

func WithAutoReconnect(autoReconnect bool) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetAutoReconnect(autoReconnect)
		return nil
	}
}

// WithConnectionLostLogger logs a classified error whenever the broker drops the connection
func WithConnectionLostLogger() MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetConnectionLostHandler(func(c MQTT.Client, err error) {
			connectErr := classifyConnectError(CategoryRuntime, err)
			logger.Log.WithFields(logrus.Fields{"error": connectErr}).Warn("MQTT connection lost")
			metrics.brokerConnectionFailures.WithLabelValues(CategoryRuntime).Inc()
		})
		return nil
	}
}

func NewBrokerOptions(brokerUrl string, opts ...MqttClientOptionsFunc) (*MQTT.ClientOptions, error) {
	connOpts := MQTT.NewClientOptions()

	connOpts.AddBroker(brokerUrl)

	for _, opt := range opts {
		err := opt(connOpts)
		if err != nil {
			return nil, err
		}
	}

	return connOpts, nil
}
