package proxy

import (
	"context"
	"io"
	"net/http"
	"time"
)

// passWebStream is the terminal web-incoming pass: it dispatches the
// optional fire-and-forget forward copy, builds and sends the upstream
// request, runs the web-outgoing pipeline against the response, and relays
// the body, per spec.md §4.5. It always halts the pipeline.
func passWebStream(req *http.Request, rw http.ResponseWriter, opts *ProxyOptions, srv *ProxyServer, errCb ErrorCallback) (bool, error) {
	primary := opts.Target
	if primary == nil {
		primary = opts.Forward
	}
	opts.Hooks.fireStart(req, rw, primary)

	var body io.Reader = req.Body
	if opts.Buffer != nil {
		body = opts.Buffer
	}

	// Both legs read the same logical body: buffer it once up front so the
	// forward copy and the target request each get an independent reader,
	// rather than racing to consume req.Body.
	var targetBody io.Reader = body
	if opts.Target != nil && opts.Forward != nil {
		buf, err := io.ReadAll(body)
		if err != nil {
			return true, wrapKind(ErrClientAbort, err)
		}
		targetBody = &byteReader{buf: buf}
		body = &byteReader{buf: buf}
	}

	if opts.Forward != nil {
		dispatchForward(req, opts, body)
		if opts.Target == nil {
			return true, nil
		}
	}

	return true, streamToTarget(req, rw, opts, srv, errCb, targetBody)
}

// byteReader is a reusable, already-materialized io.Reader, used whenever the
// same request body must be offered to two independent upstream requests.
type byteReader struct {
	buf []byte
	off int
}

func (b *byteReader) Read(p []byte) (int, error) {
	if b.off >= len(b.buf) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.off:])
	b.off += n
	return n, nil
}

// dispatchForward sends opts.Forward's copy of the request without ever
// surfacing its result to the client, matching spec.md §4.5's "forward
// never reads the response" rule.
func dispatchForward(req *http.Request, opts *ProxyOptions, body io.Reader) {
	out, err := setupOutgoing(opts, req, roleForward)
	if err != nil {
		return
	}
	u, err := out.buildURL()
	if err != nil {
		return
	}
	fwdReq, err := http.NewRequest(out.Method, u.String(), body)
	if err != nil {
		return
	}
	fwdReq.Header = out.Header

	transport := buildTransport(opts, out)
	go func() {
		resp, err := transport.RoundTrip(fwdReq)
		if err != nil {
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
}

// streamToTarget sends opts.Target's request and relays the response to rw.
func streamToTarget(req *http.Request, rw http.ResponseWriter, opts *ProxyOptions, srv *ProxyServer, errCb ErrorCallback, body io.Reader) error {
	out, err := setupOutgoing(opts, req, roleTarget)
	if err != nil {
		return err
	}
	u, err := out.buildURL()
	if err != nil {
		return wrapKind(ErrConfiguration, err)
	}

	ctx := req.Context()
	var cancel context.CancelFunc
	if opts.ProxyTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.ProxyTimeout)
		defer cancel()
	}

	targetReq, err := http.NewRequestWithContext(ctx, out.Method, u.String(), body)
	if err != nil {
		return wrapKind(ErrConfiguration, err)
	}
	targetReq.Header = out.Header

	if targetReq.Header.Get(Expect) == "" {
		opts.Hooks.fireProxyReq(targetReq, req, rw, opts)
	}

	if srv != nil && srv.metrics != nil {
		srv.metrics.connectionStarted("http")
		defer srv.metrics.connectionEnded("http")
	}

	transport := buildTransport(opts, out)
	started := time.Now()
	resp, err := transport.RoundTrip(targetReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr == context.DeadlineExceeded {
			err = wrapKind(ErrTimeout, err)
		} else if contextDone(req.Context()) {
			err = wrapKind(ErrClientAbort, err)
		} else {
			err = wrapKind(ErrUpstreamConnect, err)
		}
		handleStreamError(srv, err, req, rw, primaryTarget(opts), errCb, opts.Hooks)
		return nil
	}
	defer resp.Body.Close()

	if srv != nil && srv.metrics != nil {
		srv.metrics.observeLatencyNanos("http", time.Since(started).Nanoseconds())
		srv.metrics.observeStatusCode("http", resp.StatusCode)
	}

	opts.Hooks.fireProxyRes(resp, req, rw)

	if !opts.SelfHandleResponse {
		passes := defaultWebOutgoingPasses()
		if srv != nil {
			srv.mu.RLock()
			passes = srv.webOutgoingPasses
			srv.mu.RUnlock()
		}
		for _, p := range passes {
			halt, err := p.fn(resp, req, rw, opts)
			if err != nil {
				handleStreamError(srv, err, req, rw, primaryTarget(opts), errCb, opts.Hooks)
				return nil
			}
			if halt {
				break
			}
		}
	}

	n, copyErr := io.Copy(rw, resp.Body)
	if srv != nil && srv.metrics != nil {
		srv.metrics.written("http", n)
	}
	if copyErr != nil {
		kind := ErrUpstreamReset
		if contextDone(req.Context()) {
			kind = ErrClientAbort
		}
		handleStreamError(srv, wrapKind(kind, copyErr), req, rw, primaryTarget(opts), errCb, opts.Hooks)
		return nil
	}

	opts.Hooks.fireEnd(req, rw, resp)
	return nil
}

func handleStreamError(srv *ProxyServer, err error, req *http.Request, rw http.ResponseWriter, target *Target, errCb ErrorCallback, hooks Hooks) {
	if srv != nil {
		srv.handleError(err, req, rw, target, errCb, hooks)
		return
	}
	if errCb != nil {
		errCb(err, req, rw, target)
		return
	}
	if hooks.OnError != nil {
		hooks.OnError(err, req, rw, target)
	}
}
