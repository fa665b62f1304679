package worker

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig contains TLS settings for worker-server communication.
type TLSConfig struct {
	// CACertPath is the path to a PEM-encoded CA certificate file.
	// When set, this CA is added to the trust pool for HTTPS connections.
	CACertPath string

	// InsecureSkipVerify disables certificate verification.
	// WARNING: Only use for testing. Never enable in production.
	InsecureSkipVerify bool
}

// BuildTLSConfig creates a *tls.Config from TLSConfig settings.
// Returns nil if no custom TLS configuration is needed.
func (c *TLSConfig) BuildTLSConfig() (*tls.Config, error) {
	if c.InsecureSkipVerify {
		return &tls.Config{InsecureSkipVerify: true}, nil
	}

	if c.CACertPath == "" {
		return nil, nil // Use system CA pool
	}

	caCert, err := os.ReadFile(c.CACertPath)
	if err != nil {
		return nil, fmt.Errorf("read CA cert %s: %w", c.CACertPath, err)
	}

	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA cert %s", c.CACertPath)
	}

	return &tls.Config{
		RootCAs: certPool,
	}, nil
}
