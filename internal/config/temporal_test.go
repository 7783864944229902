package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemporalClientOptions_Plaintext(t *testing.T) {
	cfg := &Config{TemporalAddress: "temporal:7233", TemporalNamespace: "billing"}
	opts, err := cfg.TemporalClientOptions()
	require.NoError(t, err)
	assert.Equal(t, "temporal:7233", opts.HostPort)
	assert.Equal(t, "billing", opts.Namespace)
	assert.Nil(t, opts.ConnectionOptions.TLS)
}

func TestTemporalClientOptions_MutualTLS(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t)

	cfg := &Config{
		TemporalAddress:       "temporal:7233",
		TemporalTLSCert:       certPath,
		TemporalTLSKey:        keyPath,
		TemporalTLSCACert:     certPath,
		TemporalTLSServerName: "temporal.example.com",
	}
	opts, err := cfg.TemporalClientOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.ConnectionOptions.TLS)
	assert.Len(t, opts.ConnectionOptions.TLS.Certificates, 1)
	assert.NotNil(t, opts.ConnectionOptions.TLS.RootCAs)
	assert.Equal(t, "temporal.example.com", opts.ConnectionOptions.TLS.ServerName)
}

func TestTemporalClientOptions_MissingCert(t *testing.T) {
	cfg := &Config{TemporalTLSCert: "/nonexistent/cert.pem", TemporalTLSKey: "/nonexistent/key.pem"}
	_, err := cfg.TemporalClientOptions()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load temporal client cert")
}

func TestTemporalClientOptions_BadCA(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t)
	badCA := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(badCA, []byte("not a cert"), 0o600))

	cfg := &Config{TemporalTLSCert: certPath, TemporalTLSKey: keyPath, TemporalTLSCACert: badCA}
	_, err := cfg.TemporalClientOptions()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse temporal CA cert")
}

func writeSelfSigned(t *testing.T) (certPath, keyPath string) {
	t.Helper()
	dir := t.TempDir()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "entitlements-test"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}
