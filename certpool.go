package proxy

import "crypto/x509"

// newCertPool builds a certificate pool from PEM-encoded CA bytes, falling
// back to an empty pool (rather than erroring) so a malformed CA blob simply
// fails verification at handshake time instead of panicking mid-pipeline.
func newCertPool(ca []byte) *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(ca)
	return pool
}
