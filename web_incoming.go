package proxy

import (
	"net"
	"net/http"
	"time"
)

// defaultWebPasses returns the web-incoming pipeline in its default order:
// deleteLength -> timeout -> xHeaders -> stream, per spec.md §4.2.
func defaultWebPasses() []namedPass[WebPassFunc] {
	return []namedPass[WebPassFunc]{
		{name: "deleteLength", fn: passDeleteLength},
		{name: "timeout", fn: passTimeout},
		{name: "xHeaders", fn: passWebXHeaders},
		{name: "stream", fn: passWebStream},
	}
}

// passDeleteLength sets Content-Length: 0 on bodyless DELETE/OPTIONS
// requests so the upstream parser doesn't hang waiting for a chunked body
// that never arrives.
func passDeleteLength(req *http.Request, rw http.ResponseWriter, opts *ProxyOptions, srv *ProxyServer, errCb ErrorCallback) (bool, error) {
	if (req.Method == http.MethodDelete || req.Method == http.MethodOptions) && req.Header.Get(ContentLength) == "" {
		req.Header.Set(ContentLength, "0")
		req.Header.Del(TransferEncoding)
	}
	return false, nil
}

// passTimeout sets a read/write deadline of opts.Timeout from now on the
// incoming client connection when opts.Timeout is set, using
// http.ResponseController rather than hijacking so the connection stays
// usable by the rest of the pipeline. The deadline is fixed: activity on the
// connection does not extend it.
func passTimeout(req *http.Request, rw http.ResponseWriter, opts *ProxyOptions, srv *ProxyServer, errCb ErrorCallback) (bool, error) {
	if opts.Timeout <= 0 {
		return false, nil
	}
	rc := http.NewResponseController(rw)
	deadline := time.Now().Add(opts.Timeout)
	_ = rc.SetReadDeadline(deadline)
	_ = rc.SetWriteDeadline(deadline)
	return false, nil
}

// passWebXHeaders appends X-Forwarded-{For,Port,Proto,Host} when opts.XFwd is
// set, per spec.md §4.2. Composition order is for, port, proto (invariant 5).
func passWebXHeaders(req *http.Request, rw http.ResponseWriter, opts *ProxyOptions, srv *ProxyServer, errCb ErrorCallback) (bool, error) {
	if !opts.XFwd {
		return false, nil
	}
	applyXForwarded(req, true)
	return false, nil
}

// applyXForwarded implements the X-Forwarded-* composition shared by the web
// and ws incoming pipelines; setHost is false for the ws pipeline, which does
// not set X-Forwarded-Host (spec.md §4.3).
func applyXForwarded(req *http.Request, setHost bool) {
	remoteHost := req.RemoteAddr
	if h, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		remoteHost = h
	}
	appendForwarded(req.Header, XForwardedFor, remoteHost)

	appendForwarded(req.Header, XForwardedPort, forwardedPort(req))

	proto := "http"
	if req.TLS != nil {
		proto = "https"
	}
	appendForwarded(req.Header, XForwardedProto, proto)

	if setHost {
		if req.Header.Get(XForwardedHost) == "" {
			host := req.Host
			if host == "" {
				host = req.Header.Get(Host)
			}
			req.Header.Set(XForwardedHost, host)
		}
	}
}

func appendForwarded(h http.Header, name, value string) {
	if existing := h.Get(name); existing != "" {
		h.Set(name, existing+","+value)
		return
	}
	h.Set(name, value)
}

func forwardedPort(req *http.Request) string {
	hostHeader := req.Host
	if hostHeader == "" {
		hostHeader = req.Header.Get(Host)
	}
	if _, port, err := net.SplitHostPort(hostHeader); err == nil && port != "" {
		return port
	}
	if req.TLS != nil {
		return "443"
	}
	return "80"
}

