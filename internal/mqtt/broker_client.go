package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/myelectricaldata/importer/internal/platform/logger"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/sirupsen/logrus"
)

var (
	ErrTLSHandshake      = errors.New("mqtt tls handshake failed")
	ErrBrokerConnect     = errors.New("mqtt broker connection failed")
	ErrConnectionLost    = errors.New("mqtt connection lost")
	ErrConnectionRefused = errors.New("mqtt connection refused")
	ErrHostUnreachable   = errors.New("mqtt host unreachable")
	ErrTimeout           = errors.New("mqtt connection timeout")
	ErrEOF               = errors.New("mqtt connection closed unexpectedly")

	ErrProtocolVersion       = errors.New("mqtt unacceptable protocol version")
	ErrIdentifierRejected    = errors.New("mqtt client identifier rejected")
	ErrServerUnavailable     = errors.New("mqtt server unavailable")
	ErrBadUsernameOrPassword = errors.New("mqtt bad username or password")
	ErrNotAuthorized         = errors.New("mqtt not authorized")
)

const (
	CategoryTLS      = "tls"
	CategoryNetwork  = "network"
	CategoryProtocol = "protocol"
	CategoryRuntime  = "runtime"
	CategoryUnknown  = "unknown"
)

// ConnectError classifies why the broker could not be reached
type ConnectError struct {
	Kind     error
	Cause    error
	Category string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *ConnectError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Kind
}

// Is lets errors.Is match on the sentinel Kind (e.g. ErrConnectionRefused)
func (e *ConnectError) Is(target error) bool {
	return target == e.Kind
}

func newConnectError(category string, kind error, cause error) error {
	return &ConnectError{Kind: kind, Cause: cause, Category: category}
}

func classifyConnectError(category string, err error) error {
	if err == nil {
		return newConnectError(category, ErrConnectionLost, errors.New("connection lost"))
	}

	var connectErr *ConnectError
	if errors.As(err, &connectErr) {
		return connectErr
	}

	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return newConnectError(category, ErrTimeout, err)
	}

	var tlsHeaderErr *tls.RecordHeaderError
	var unknownAuthErr x509.UnknownAuthorityError
	var certInvalidErr x509.CertificateInvalidError
	var hostErr x509.HostnameError
	if errors.As(err, &tlsHeaderErr) || errors.As(err, &unknownAuthErr) || errors.As(err, &certInvalidErr) || errors.As(err, &hostErr) {
		return newConnectError(CategoryTLS, ErrTLSHandshake, err)
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return newConnectError(category, ErrConnectionRefused, err)
	case errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE):
		return newConnectError(category, ErrConnectionLost, err)
	case errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH):
		return newConnectError(category, ErrHostUnreachable, err)
	case errors.Is(err, io.EOF):
		return newConnectError(category, ErrEOF, err)
	}

	// paho does not always wrap the underlying error
	lowerMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerMsg, "connection refused"):
		return newConnectError(category, ErrConnectionRefused, err)
	case strings.Contains(lowerMsg, "host unreachable"):
		return newConnectError(category, ErrHostUnreachable, err)
	case strings.Contains(lowerMsg, "timeout"):
		return newConnectError(category, ErrTimeout, err)
	case strings.Contains(lowerMsg, "eof"):
		return newConnectError(category, ErrEOF, err)
	case strings.Contains(lowerMsg, "connection lost"), strings.Contains(lowerMsg, "broken pipe"):
		return newConnectError(category, ErrConnectionLost, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return newConnectError(category, ErrBrokerConnect, err)
	}

	return newConnectError(CategoryUnknown, ErrBrokerConnect, err)
}

func classifyProtocolReturnCode(rc byte) error {
	cause := fmt.Errorf("connack=%d", rc)
	switch rc {
	case packets.ErrRefusedBadProtocolVersion:
		return newConnectError(CategoryProtocol, ErrProtocolVersion, cause)
	case packets.ErrRefusedIDRejected:
		return newConnectError(CategoryProtocol, ErrIdentifierRejected, cause)
	case packets.ErrRefusedServerUnavailable:
		return newConnectError(CategoryProtocol, ErrServerUnavailable, cause)
	case packets.ErrRefusedBadUsernameOrPassword:
		return newConnectError(CategoryProtocol, ErrBadUsernameOrPassword, cause)
	case packets.ErrRefusedNotAuthorised:
		return newConnectError(CategoryProtocol, ErrNotAuthorized, cause)
	default:
		return nil
	}
}

// CreateBrokerConnection connects to the broker and returns a classified
// *ConnectError when it cannot
func CreateBrokerConnection(brokerUrl string, brokerConfigFuncs ...MqttClientOptionsFunc) (MQTT.Client, error) {

	connOpts, err := NewBrokerOptions(brokerUrl, brokerConfigFuncs...)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to build MQTT ClientOptions")
		return nil, err
	}

	log := logger.Log.WithFields(logrus.Fields{"broker": brokerUrl})
	log.Info("Connect to MQTT broker")

	mqttClient := MQTT.NewClient(connOpts)
	token := mqttClient.Connect()
	token.Wait()

	if ct, ok := token.(*MQTT.ConnectToken); ok {
		rc := ct.ReturnCode()
		if protoErr := classifyProtocolReturnCode(rc); protoErr != nil {
			log.WithFields(logrus.Fields{"error": protoErr, "connack_code": rc}).Error("MQTT CONNACK not accepted")
			metrics.brokerConnectionFailures.WithLabelValues(CategoryProtocol).Inc()
			return nil, protoErr
		}
	}

	if token.Error() != nil {
		connectErr := classifyConnectError(CategoryNetwork, token.Error())
		log.WithFields(logrus.Fields{"error": connectErr}).Error("Impossible de se connecter au serveur MQTT.")
		var classified *ConnectError
		if errors.As(connectErr, &classified) {
			metrics.brokerConnectionFailures.WithLabelValues(classified.Category).Inc()
		}
		return nil, connectErr
	}

	log.Info(" => Connection success")

	return mqttClient, nil
}
