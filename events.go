package proxy

import (
	"net"
	"net/http"
)

// ErrorCallback is the error callback the passes and handleError accept.
// When non-nil, it wins over the server-wide Hooks.OnError/OnEconnreset.
// Web and Ws take no callback argument and always pass nil, so errors from
// those calls go to the Hooks.
type ErrorCallback func(err error, req *http.Request, rwOrConn interface{}, target *Target)

// Hooks is the typed event surface callers use to observe and mutate
// in-flight proxy transactions. It replaces the single mutation-hook emitter
// of the reference implementation with per-event callback slots, per the
// "typed hook table" design note: every slot is independently optional and
// nil-safe to call.
type Hooks struct {
	// OnStart fires once a transaction has a resolved target (or forward),
	// strictly before OnProxyReq.
	OnStart func(req *http.Request, rw http.ResponseWriter, target *Target)

	// OnProxyReq fires right before the outgoing HTTP request is written,
	// giving observers a last chance to mutate it.
	OnProxyReq func(proxyReq *http.Request, req *http.Request, rw http.ResponseWriter, opts *ProxyOptions)

	// OnProxyReqWs is the WebSocket analogue of OnProxyReq.
	OnProxyReqWs func(proxyReq *http.Request, req *http.Request, conn net.Conn, opts *ProxyOptions, head []byte)

	// OnProxyRes fires when the upstream response headers have arrived, for
	// HTTP transactions, before the web-outgoing pipeline runs.
	OnProxyRes func(proxyRes *http.Response, req *http.Request, rw http.ResponseWriter)

	// OnOpen fires once the WebSocket upstream socket has been wired into the
	// splice.
	OnOpen func(upstream net.Conn)

	// OnClose fires when the upstream WebSocket socket reaches EOF.
	OnClose func(proxyRes *http.Response, upstream net.Conn, head []byte)

	// OnEnd fires at most once per HTTP transaction, after the upstream body
	// has been copied to the client without error. It does not fire when the
	// upstream request or the body copy fails, nor for a forward-only call.
	OnEnd func(req *http.Request, rw http.ResponseWriter, proxyRes *http.Response)

	// OnError fires for any error not claimed by OnEconnreset, when no
	// per-call ErrorCallback was supplied.
	OnError func(err error, req *http.Request, rwOrConn interface{}, target *Target)

	// OnEconnreset fires instead of OnError when the client has already gone
	// away and the upstream error is a connection reset, so that a dead
	// client doesn't produce log noise indistinguishable from a live failure.
	OnEconnreset func(err error, req *http.Request, rw http.ResponseWriter, target *Target)
}

func (h *Hooks) fireStart(req *http.Request, rw http.ResponseWriter, target *Target) {
	if h.OnStart != nil {
		h.OnStart(req, rw, target)
	}
}

func (h *Hooks) fireProxyReq(proxyReq, req *http.Request, rw http.ResponseWriter, opts *ProxyOptions) {
	if h.OnProxyReq != nil {
		h.OnProxyReq(proxyReq, req, rw, opts)
	}
}

func (h *Hooks) fireProxyReqWs(proxyReq, req *http.Request, conn net.Conn, opts *ProxyOptions, head []byte) {
	if h.OnProxyReqWs != nil {
		h.OnProxyReqWs(proxyReq, req, conn, opts, head)
	}
}

func (h *Hooks) fireProxyRes(proxyRes *http.Response, req *http.Request, rw http.ResponseWriter) {
	if h.OnProxyRes != nil {
		h.OnProxyRes(proxyRes, req, rw)
	}
}

func (h *Hooks) fireOpen(upstream net.Conn) {
	if h.OnOpen != nil {
		h.OnOpen(upstream)
	}
}

func (h *Hooks) fireClose(proxyRes *http.Response, upstream net.Conn, head []byte) {
	if h.OnClose != nil {
		h.OnClose(proxyRes, upstream, head)
	}
}

func (h *Hooks) fireEnd(req *http.Request, rw http.ResponseWriter, proxyRes *http.Response) {
	if h.OnEnd != nil {
		h.OnEnd(req, rw, proxyRes)
	}
}
