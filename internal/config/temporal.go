package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"go.temporal.io/sdk/client"
)

// TemporalClientOptions builds the dial options for the Temporal frontend.
// Without a client cert and key the connection is plaintext.
func (c *Config) TemporalClientOptions() (client.Options, error) {
	opts := client.Options{
		HostPort:  c.TemporalAddress,
		Namespace: c.TemporalNamespace,
	}
	if c.TemporalTLSCert == "" && c.TemporalTLSKey == "" {
		return opts, nil
	}

	cert, err := tls.LoadX509KeyPair(c.TemporalTLSCert, c.TemporalTLSKey)
	if err != nil {
		return opts, fmt.Errorf("load temporal client cert: %w", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ServerName:   c.TemporalTLSServerName,
	}

	if c.TemporalTLSCACert != "" {
		caPEM, err := os.ReadFile(c.TemporalTLSCACert)
		if err != nil {
			return opts, fmt.Errorf("read temporal CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return opts, fmt.Errorf("parse temporal CA cert %s", c.TemporalTLSCACert)
		}
		tlsConfig.RootCAs = pool
	}

	opts.ConnectionOptions.TLS = tlsConfig
	return opts, nil
}
