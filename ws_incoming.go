package proxy

import (
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// defaultWsPasses returns the ws-incoming pipeline in its default order:
// checkMethodAndHeader -> xHeaders -> stream, per spec.md §4.3.
func defaultWsPasses() []namedPass[WsPassFunc] {
	return []namedPass[WsPassFunc]{
		{name: "checkMethodAndHeader", fn: passCheckMethodAndHeader},
		{name: "xHeaders", fn: passWsXHeaders},
		{name: "stream", fn: passWsStream},
	}
}

// passCheckMethodAndHeader is the single gatekeeper for malformed upgrade
// requests: anything that isn't a GET with Upgrade: websocket gets the
// client socket destroyed and the pipeline halted. httpguts.HeaderValuesContainsToken
// performs the same case-insensitive, comma-delimited token match net/http's
// own server uses to recognize upgrades.
func passCheckMethodAndHeader(req *http.Request, conn net.Conn, head []byte, opts *ProxyOptions, srv *ProxyServer, errCb ErrorCallback) (bool, error) {
	if req.Method != http.MethodGet {
		conn.Close()
		return true, nil
	}
	if !httpguts.HeaderValuesContainsToken(req.Header[Upgrade], "websocket") &&
		!strings.EqualFold(req.Header.Get(Upgrade), "websocket") {
		conn.Close()
		return true, nil
	}
	return false, nil
}

// passWsXHeaders mirrors the web pipeline's XHeaders pass but reports
// ws/wss in X-Forwarded-Proto and never sets X-Forwarded-Host, per spec.md
// §4.3.
func passWsXHeaders(req *http.Request, conn net.Conn, head []byte, opts *ProxyOptions, srv *ProxyServer, errCb ErrorCallback) (bool, error) {
	if !opts.XFwd {
		return false, nil
	}
	applyWsForwarded(req)
	return false, nil
}

func applyWsForwarded(req *http.Request) {
	remoteHost := req.RemoteAddr
	if h, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		remoteHost = h
	}
	appendForwarded(req.Header, XForwardedFor, remoteHost)
	appendForwarded(req.Header, XForwardedPort, forwardedPort(req))

	proto := "ws"
	if req.TLS != nil {
		proto = "wss"
	}
	appendForwarded(req.Header, XForwardedProto, proto)
}
