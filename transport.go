package proxy

import (
	"context"
	"net"
	"net/http"
	"time"
)

// buildTransport returns opts.Agent when set (the reference implementation's
// connection-pool handle), otherwise a fresh *http.Transport dedicated to
// this one request: out.LocalAddress and out.SocketPath steer the dialer,
// out.TLSConfig carries the per-target TLS material setupOutgoing built, and
// DisableKeepAlives mirrors setupOutgoing forcing Connection: close whenever
// no Agent was supplied.
func buildTransport(opts *ProxyOptions, out *outgoing) http.RoundTripper {
	if opts.Agent != nil {
		return opts.Agent
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	if out.LocalAddress != "" {
		dialer.LocalAddr = &net.TCPAddr{IP: net.ParseIP(out.LocalAddress)}
	}

	dialContext := dialer.DialContext
	if out.SocketPath != "" {
		dialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", out.SocketPath)
		}
	}

	return &http.Transport{
		DialContext:         dialContext,
		TLSClientConfig:     out.TLSConfig,
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}
