package tls_utils

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/myelectricaldata/importer/internal/platform/logger"
)

type TlsConfigFunc func(*tls.Config) error

func WithCert(certFilePath string, certKeyPath string) TlsConfigFunc {
	return func(tlsConfig *tls.Config) error {
		logger.Log.Debug("TLS config - setting the pub/priv key pair")

		cert, err := tls.LoadX509KeyPair(certFilePath, certKeyPath)
		if err != nil {
			return err
		}

		tlsConfig.Certificates = []tls.Certificate{cert}

		return nil
	}
}

func WithCACerts(caCertFilePath string) TlsConfigFunc {
	return func(tlsConfig *tls.Config) error {
		logger.Log.Debugf("TLS config - using ca_cert: %s", caCertFilePath)

		pemCerts, err := os.ReadFile(caCertFilePath)
		if err != nil {
			return err
		}

		certpool := x509.NewCertPool()
		if !certpool.AppendCertsFromPEM(pemCerts) {
			return fmt.Errorf("no certificate found in %s", caCertFilePath)
		}

		tlsConfig.RootCAs = certpool

		return nil
	}
}

func WithSkipVerify() TlsConfigFunc {
	return func(tlsConfig *tls.Config) error {
		logger.Log.Warn("TLS config - setting insecure skip verify")

		tlsConfig.InsecureSkipVerify = true

		return nil
	}
}

func NewTlsConfig(configOpts ...TlsConfigFunc) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	for _, opt := range configOpts {
		err := opt(tlsConfig)
		if err != nil {
			return nil, err
		}
	}

	return tlsConfig, nil
}
