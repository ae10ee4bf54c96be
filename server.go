package proxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/vulcand/oxy/utils"
)

// PipelineKind selects which of a ProxyServer's three pass lists Before/After
// operates on.
type PipelineKind int

const (
	PipelineWeb PipelineKind = iota
	PipelineWs
	PipelineWebOutgoing
)

// ProxyServer holds the three ordered pass pipelines plus shared defaults and
// exposes Web/Ws/Before/After/Close, the spec.md §4.7 facade. All three pass
// lists (webPasses, wsPasses and webOutgoingPasses) are per-instance copies
// built by New, so Before/After on one server never leaks into a sibling;
// no pass list is shared between ProxyServer instances.
type ProxyServer struct {
	base ProxyOptions

	mu                sync.RWMutex
	webPasses         []namedPass[WebPassFunc]
	wsPasses          []namedPass[WsPassFunc]
	webOutgoingPasses []namedPass[WebOutgoingPassFunc]

	metrics *transactionMetrics
	logger  Logger

	// PanicOnUnhandledError mirrors the reference implementation's "rethrow
	// when the error event has exactly one (default) listener" policy: when
	// true (the default) and neither a per-call ErrorCallback nor
	// Hooks.OnError/OnEconnreset is set, handleError panics after logging so
	// unhandled errors can't silently vanish.
	PanicOnUnhandledError bool

	listener net.Listener
}

// New constructs a ProxyServer from the given base options, normalizing
// PrependPath's default the way the reference implementation's constructor
// does, and registering the three default pipelines.
func New(opts ProxyOptions) *ProxyServer {
	if opts.Logger == nil {
		opts.Logger = utils.NullLogger
	}
	return &ProxyServer{
		base:                  opts,
		webPasses:             defaultWebPasses(),
		wsPasses:              defaultWsPasses(),
		webOutgoingPasses:     defaultWebOutgoingPasses(),
		metrics:               newTransactionMetrics(opts.Metrics),
		logger:                opts.Logger,
		PanicOnUnhandledError: true,
	}
}

func primaryTarget(opts *ProxyOptions) *Target {
	if opts.Target != nil {
		return opts.Target
	}
	return opts.Forward
}

// Web merges per-call Options over the server's base options and runs the
// web-incoming pipeline, stopping at the first pass that halts it.
func (s *ProxyServer) Web(rw http.ResponseWriter, req *http.Request, opts ...Option) error {
	merged, err := applyOptions(s.base, opts...)
	if err != nil {
		return err
	}
	if !merged.hasTarget() {
		err := newConfigError("web: target or forward must be set")
		s.handleError(err, req, rw, nil, nil, merged.Hooks)
		return err
	}

	s.mu.RLock()
	passes := s.webPasses
	s.mu.RUnlock()

	for _, p := range passes {
		halt, err := p.fn(req, rw, &merged, s, nil)
		if err != nil {
			s.handleError(err, req, rw, primaryTarget(&merged), nil, merged.Hooks)
			return err
		}
		if halt {
			break
		}
	}
	return nil
}

// Ws hijacks the client connection and runs the ws-incoming pipeline. It
// folds spec.md §4.7's ws(req, socket, head) into one call: the socket and
// any already-buffered handshake tail ("head") are obtained from the
// http.Hijacker here, rather than requiring the caller to hijack first.
func (s *ProxyServer) Ws(rw http.ResponseWriter, req *http.Request, opts ...Option) error {
	merged, err := applyOptions(s.base, opts...)
	if err != nil {
		return err
	}
	if !merged.hasTarget() {
		return newConfigError("ws: target or forward must be set")
	}

	hj, ok := rw.(http.Hijacker)
	if !ok {
		return newConfigError("ws: response writer does not support hijacking")
	}
	conn, rwBuf, err := hj.Hijack()
	if err != nil {
		return fmt.Errorf("proxy: hijack: %w", err)
	}

	var head []byte
	if n := rwBuf.Reader.Buffered(); n > 0 {
		head, _ = rwBuf.Reader.Peek(n)
		head = append([]byte(nil), head...)
	}

	s.mu.RLock()
	passes := s.wsPasses
	s.mu.RUnlock()

	for _, p := range passes {
		halt, err := p.fn(req, conn, head, &merged, s, nil)
		if err != nil {
			s.handleError(err, req, conn, primaryTarget(&merged), nil, merged.Hooks)
			conn.Close()
			return err
		}
		if halt {
			break
		}
	}
	return nil
}

// Before splices fn immediately before the pass named anchor in the selected
// pipeline, erroring if anchor isn't found (spec.md §3's before/after
// contract). newName becomes the inserted pass's own name so later
// before/after calls can target it too.
func (s *ProxyServer) Before(kind PipelineKind, anchor, newName string, fn interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case PipelineWeb:
		wfn, ok := fn.(WebPassFunc)
		if !ok {
			return newConfigError("before: fn is not a WebPassFunc")
		}
		list, err := insertBefore(s.webPasses, anchor, newName, wfn)
		if err != nil {
			return err
		}
		s.webPasses = list
	case PipelineWs:
		wfn, ok := fn.(WsPassFunc)
		if !ok {
			return newConfigError("before: fn is not a WsPassFunc")
		}
		list, err := insertBefore(s.wsPasses, anchor, newName, wfn)
		if err != nil {
			return err
		}
		s.wsPasses = list
	case PipelineWebOutgoing:
		wfn, ok := fn.(WebOutgoingPassFunc)
		if !ok {
			return newConfigError("before: fn is not a WebOutgoingPassFunc")
		}
		list, err := insertBefore(s.webOutgoingPasses, anchor, newName, wfn)
		if err != nil {
			return err
		}
		s.webOutgoingPasses = list
	default:
		return newConfigError("before: unknown pipeline kind")
	}
	return nil
}

// After is the after-counterpart of Before.
func (s *ProxyServer) After(kind PipelineKind, anchor, newName string, fn interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case PipelineWeb:
		wfn, ok := fn.(WebPassFunc)
		if !ok {
			return newConfigError("after: fn is not a WebPassFunc")
		}
		list, err := insertAfter(s.webPasses, anchor, newName, wfn)
		if err != nil {
			return err
		}
		s.webPasses = list
	case PipelineWs:
		wfn, ok := fn.(WsPassFunc)
		if !ok {
			return newConfigError("after: fn is not a WsPassFunc")
		}
		list, err := insertAfter(s.wsPasses, anchor, newName, wfn)
		if err != nil {
			return err
		}
		s.wsPasses = list
	case PipelineWebOutgoing:
		wfn, ok := fn.(WebOutgoingPassFunc)
		if !ok {
			return newConfigError("after: fn is not a WebOutgoingPassFunc")
		}
		list, err := insertAfter(s.webOutgoingPasses, anchor, newName, wfn)
		if err != nil {
			return err
		}
		s.webOutgoingPasses = list
	default:
		return newConfigError("after: unknown pipeline kind")
	}
	return nil
}

// Close releases the helper listener started by Listen, if any.
func (s *ProxyServer) Close() error {
	s.mu.Lock()
	l := s.listener
	s.listener = nil
	s.mu.Unlock()
	if l == nil {
		return nil
	}
	return l.Close()
}

// Listen starts a convenience HTTP(S) server wired to Web, and to Ws when
// base.WS is set, matching spec.md §4.7's listen(port, host?). This is the
// "out of scope" convenience wrapper spec.md §1 treats as an external
// collaborator; it exists here only so the facade is directly usable.
func (s *ProxyServer) Listen(addr string, tlsConfig *tls.Config) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(rw http.ResponseWriter, req *http.Request) {
		if s.base.WS && isUpgradeRequest(req) {
			_ = s.Ws(rw, req)
			return
		}
		_ = s.Web(rw, req)
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{Handler: mux}
	return srv.Serve(ln)
}

func isUpgradeRequest(req *http.Request) bool {
	return connectionHasUpgrade(req.Header.Get(Connection)) &&
		req.Header.Get(Upgrade) != ""
}

// handleError implements spec.md §7's propagation policy: a per-call
// ErrorCallback wins; otherwise Hooks.OnEconnreset fires when the client is
// already gone and the error is a reset, else Hooks.OnError fires; if neither
// hook is set and PanicOnUnhandledError is true, the error is logged and
// rethrown via panic, mirroring "rethrow when the error event has exactly one
// (default) listener". An ErrClientAbort error not claimed by OnEconnreset is
// dropped: it never reaches OnError, the log or the panic.
func (s *ProxyServer) handleError(err error, req *http.Request, rwOrConn interface{}, target *Target, cb ErrorCallback, hooks Hooks) {
	if cb != nil {
		cb(err, req, rwOrConn, target)
		return
	}

	if isConnReset(err) && clientGone(req) {
		if hooks.OnEconnreset != nil {
			if rw, ok := rwOrConn.(http.ResponseWriter); ok {
				hooks.OnEconnreset(err, req, rw, target)
				return
			}
		}
	}

	if pe, ok := err.(*ProxyError); ok && pe.Kind == ErrClientAbort {
		return
	}

	if hooks.OnError != nil {
		hooks.OnError(err, req, rwOrConn, target)
		return
	}

	s.logger.Errorf("proxy: unhandled error: %v", err)
	if s.PanicOnUnhandledError {
		panic(err)
	}
}

func clientGone(req *http.Request) bool {
	if req == nil || req.Context() == nil {
		return false
	}
	return req.Context().Err() != nil
}

// contextDone reports whether ctx has already been canceled/expired, a small
// helper the streaming passes use to classify a RoundTrip error as
// ErrClientAbort vs. ErrUpstreamConnect.
func contextDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
