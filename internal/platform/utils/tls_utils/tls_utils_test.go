package tls_utils

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/myelectricaldata/importer/internal/platform/logger"
)

func init() {
	logger.InitLogger()
}

func TestNewTlsConfigDefaults(t *testing.T) {
	tlsConfig, err := NewTlsConfig()
	assert.Equal(t, err, nil)
	assert.Equal(t, tlsConfig.MinVersion, uint16(tls.VersionTLS12))
	assert.Equal(t, tlsConfig.InsecureSkipVerify, false)
}

func TestWithSkipVerify(t *testing.T) {
	tlsConfig, err := NewTlsConfig(WithSkipVerify())
	assert.Equal(t, err, nil)
	assert.Equal(t, tlsConfig.InsecureSkipVerify, true)
}

func TestWithCACertsRejectsInvalidFiles(t *testing.T) {
	_, err := NewTlsConfig(WithCACerts(filepath.Join(t.TempDir(), "missing.pem")))
	assert.NotEqual(t, err, nil)

	notPem := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(notPem, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err = NewTlsConfig(WithCACerts(notPem))
	assert.NotEqual(t, err, nil)
}
