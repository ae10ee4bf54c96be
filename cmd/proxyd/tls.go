package main

import (
	"crypto/tls"
	"fmt"
	"os"
)

// checkTLSConfig validates that cert/key either both exist or both are
// unset before proxyd attempts to load them, rather than letting
// tls.LoadX509KeyPair surface an opaque os.PathError at listen time.
func checkTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" && keyFile == "" {
		return nil, nil
	}
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("proxyd: both PROXYD_TLS_CERT and PROXYD_TLS_KEY must be set")
	}
	if _, err := os.Stat(certFile); err != nil {
		return nil, fmt.Errorf("proxyd: cert file: %w", err)
	}
	if _, err := os.Stat(keyFile); err != nil {
		return nil, fmt.Errorf("proxyd: key file: %w", err)
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("proxyd: load key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}
