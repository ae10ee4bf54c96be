package proxy

import (
	"crypto/tls"
	"encoding/base64"
	"net/http"
	"net/url"
)

// role selects which half of ProxyOptions setupOutgoing reads from: the
// primary target, or the fire-and-forget forward copy.
type role int

const (
	roleTarget role = iota
	roleForward
)

// outgoing is the upstream-request descriptor setupOutgoing fills in. Unlike
// the reference implementation, which mutates a caller-supplied "outgoing"
// object in place, this returns a fresh value (spec.md §9 notes the
// invariants make no assumption about aliasing either way).
type outgoing struct {
	Scheme string
	Host   string // host[:port]
	Path   string
	Method string
	Header http.Header

	SocketPath string
	TLSConfig  *tls.Config

	LocalAddress string
}

// setupOutgoing deterministically builds the upstream-request descriptor
// from configuration and the client request, per spec.md §4.1.
func setupOutgoing(opts *ProxyOptions, req *http.Request, r role) (*outgoing, error) {
	target := opts.Target
	if r == roleForward {
		target = opts.Forward
	}
	if target == nil {
		return nil, newConfigError("setupOutgoing: no target resolved for role")
	}

	out := &outgoing{}

	// 1. Port.
	port := target.Port
	if port == "" {
		if isSecureProtocol(target.Protocol) {
			port = "443"
		} else {
			port = "80"
		}
	}

	// 2. TLS / connection fields.
	out.SocketPath = target.SocketPath
	hostname := target.Hostname
	if hostname == "" {
		hostname = target.Host
	}
	out.Host = hostname
	if requiresPort(port, target.Protocol) {
		out.Host = hostname + ":" + port
	}
	out.Scheme = schemeFor(target.Protocol)

	// 3. Method.
	out.Method = req.Method
	if opts.Method != "" {
		out.Method = opts.Method
	}

	// 4. Headers: shallow copy of req.Headers, then merge opts.Headers
	// overwriting.
	out.Header = make(http.Header, len(req.Header))
	for k, v := range req.Header {
		vv := make([]string, len(v))
		copy(vv, v)
		out.Header[k] = vv
	}
	for k, v := range opts.Headers {
		out.Header[k] = v
	}
	if opts.Auth != "" {
		out.Header.Set(Authorization, "Basic "+base64.StdEncoding.EncodeToString([]byte(opts.Auth)))
	}

	// 5 & 6. TLS CA / reject-unauthorized.
	if isSecureProtocol(target.Protocol) {
		out.TLSConfig = buildTLSConfig(target, opts.secureDefault())
	}

	// 7. Agent: nil means "no pooling", forcing Connection: close unless the
	// existing Connection header already grants an upgrade.
	if opts.Agent == nil {
		if !connectionHasUpgrade(out.Header.Get(Connection)) {
			out.Header.Set(Connection, "close")
		}
	}

	// 8. Local address.
	out.LocalAddress = opts.LocalAddress

	// 9. Path.
	targetPath := ""
	if opts.prependPathDefault() {
		targetPath = target.Path
	}
	clientPath := ""
	if opts.ToProxy {
		clientPath = req.URL.String()
	} else if req.URL != nil {
		clientPath = req.URL.Path
		if req.URL.RawQuery != "" {
			clientPath += "?" + req.URL.RawQuery
		}
	}
	if opts.IgnorePath {
		clientPath = ""
	}
	out.Path = urlJoin(targetPath, clientPath)

	// 10. Host rewrite (changeOrigin).
	if opts.ChangeOrigin {
		if requiresPort(port, target.Protocol) {
			out.Header.Set(Host, hostname+":"+port)
		} else {
			out.Header.Set(Host, hostname)
		}
	}

	return out, nil
}

func schemeFor(protocol string) string {
	if isSecureProtocol(protocol) {
		return "https"
	}
	return "http"
}

// buildTLSConfig builds the *tls.Config used to dial a TLS upstream from the
// target's PEM material. PFX (PKCS#12) has no standard-library decoder and is
// accepted on Target only for configuration-surface parity; it is not
// consumed here (see Target's doc comment).
func buildTLSConfig(target *Target, secure bool) *tls.Config {
	cfg := &tls.Config{InsecureSkipVerify: !secure}
	if len(target.Ciphers) > 0 {
		cfg.CipherSuites = target.Ciphers
	}
	if len(target.Cert) > 0 && len(target.Key) > 0 {
		if cert, err := tls.X509KeyPair(target.Cert, target.Key); err == nil {
			cfg.Certificates = []tls.Certificate{cert}
		}
	}
	if len(target.CA) > 0 {
		pool := newCertPool(target.CA)
		cfg.RootCAs = pool
	}
	return cfg
}

// buildURL reconstructs the full upstream URL from an outgoing descriptor.
// o.Path follows the legacy "pathname + search" convention (spec.md §9), so
// it is parsed back into a *url.URL rather than assigned to Path directly,
// which would otherwise leave a literal "?" inside the path component.
func (o *outgoing) buildURL() (*url.URL, error) {
	p := o.Path
	if p != "" && p[0] != '/' && p[0] != '?' {
		p = "/" + p
	}
	return url.Parse(o.Scheme + "://" + o.Host + p)
}
