package proxy

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// passWsStream is the terminal ws-incoming pass: it dials the upstream,
// replays the handshake, and either relays a non-upgrade response back
// verbatim or splices the two sockets together once the upstream also
// switches protocols, per spec.md §4.6. It always halts the pipeline.
func passWsStream(req *http.Request, conn net.Conn, head []byte, opts *ProxyOptions, srv *ProxyServer, errCb ErrorCallback) (bool, error) {
	out, err := setupOutgoing(opts, req, roleTarget)
	if err != nil {
		handleWsError(srv, err, req, conn, primaryTarget(opts), errCb, opts.Hooks)
		conn.Close()
		return true, nil
	}

	target := opts.Target
	dialTimeout := 10 * time.Second
	upstream, err := dialUpstream(out, target, dialTimeout)
	if err != nil {
		handleWsError(srv, wrapKind(ErrUpstreamConnect, err), req, conn, primaryTarget(opts), errCb, opts.Hooks)
		conn.Close()
		return true, nil
	}

	setupSocket(upstream)

	handshake := buildHandshakeRequest(out, req)
	opts.Hooks.fireProxyReqWs(handshake.req, req, conn, opts, head)

	if _, err := upstream.Write(handshake.raw); err != nil {
		upstream.Close()
		handleWsError(srv, wrapKind(ErrUpstreamConnect, err), req, conn, primaryTarget(opts), errCb, opts.Hooks)
		conn.Close()
		return true, nil
	}

	upstreamReader := bufio.NewReader(upstream)
	resp, err := http.ReadResponse(upstreamReader, handshake.req)
	if err != nil {
		upstream.Close()
		handleWsError(srv, wrapKind(ErrUpstreamConnect, err), req, conn, primaryTarget(opts), errCb, opts.Hooks)
		conn.Close()
		return true, nil
	}

	if resp.StatusCode != http.StatusSwitchingProtocols {
		relayNonUpgradeResponse(conn, resp)
		upstream.Close()
		conn.Close()
		return true, nil
	}

	// The successful-upgrade status line is forwarded verbatim, Connection
	// and Upgrade included: RFC 6455 requires them to complete the
	// handshake, so hop-header stripping only applies to the non-upgrade
	// path below.
	if _, err := conn.Write(serializeResponseHead(resp, false)); err != nil {
		upstream.Close()
		conn.Close()
		return true, nil
	}

	leftoverHead, _ := upstreamReader.Peek(upstreamReader.Buffered())
	leftoverHead = append([]byte(nil), leftoverHead...)

	if srv != nil && srv.metrics != nil {
		srv.metrics.connectionStarted("ws")
	}
	opts.Hooks.fireOpen(upstream)

	splice(conn, upstream, head, leftoverHead, resp, srv, opts.Hooks)

	if srv != nil && srv.metrics != nil {
		srv.metrics.connectionEnded("ws")
	}
	return true, nil
}

// dialUpstream opens the raw TCP (optionally TLS) connection to the target,
// the WebSocket analogue of setupOutgoing's TLS fields feeding an
// *http.Transport on the HTTP path.
func dialUpstream(out *outgoing, target *Target, timeout time.Duration) (net.Conn, error) {
	network, addr := "tcp", out.Host
	if out.SocketPath != "" {
		network, addr = "unix", out.SocketPath
	}

	if target != nil && isSecureProtocol(target.Protocol) {
		dialer := &net.Dialer{Timeout: timeout}
		return tls.DialWithDialer(dialer, network, addr, out.TLSConfig)
	}
	return net.DialTimeout(network, addr, timeout)
}

// setupSocket applies the reference implementation's socket tuning (disable
// Nagle, enable keepalive, no idle timeout) to a raw duplex connection.
func setupSocket(c net.Conn) {
	if tcp, ok := c.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
		tcp.SetKeepAlive(true)
		tcp.SetKeepAlivePeriod(30 * time.Second)
	}
}

type wsHandshake struct {
	req *http.Request
	raw []byte
}

// buildHandshakeRequest assembles the raw HTTP/1.1 request line + headers
// bytes written to the upstream, plus a parsed *http.Request used only as
// http.ReadResponse's bookkeeping argument (its Method governs
// close-handling of the returned response body). The client's already-read
// "head" bytes are never folded in here: per spec.md §4.6 step 1 they belong
// on the client->upstream leg of the post-handshake splice, not glued onto
// the handshake request itself (see splice's clientHead parameter).
func buildHandshakeRequest(out *outgoing, req *http.Request) wsHandshake {
	method := out.Method
	if method == "" {
		method = http.MethodGet
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s HTTP/1.1\r\n", method, out.Path)
	for k, values := range out.Header {
		for _, v := range values {
			fmt.Fprintf(&sb, "%s: %s\r\n", k, v)
		}
	}
	sb.WriteString("\r\n")

	parsed, _ := http.NewRequest(method, out.Scheme+"://"+out.Host+out.Path, nil)
	parsed.Header = out.Header
	return wsHandshake{req: parsed, raw: []byte(sb.String())}
}

// serializeResponseHead renders resp's status line + headers as wire bytes.
// filterHop strips HopHeaders (Connection, Upgrade, ...) for the ordinary,
// non-upgrade relay path; the successful-upgrade path passes false so
// Connection/Upgrade survive onto the wire, per RFC 6455.
func serializeResponseHead(resp *http.Response, filterHop bool) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "HTTP/1.1 %s\r\n", resp.Status)

	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		if filterHop && isHopHeader(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range resp.Header[k] {
			fmt.Fprintf(&sb, "%s: %s\r\n", k, v)
		}
	}
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

func isHopHeader(name string) bool {
	for _, h := range HopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// relayNonUpgradeResponse is spec.md §4.6's "upstream refused the upgrade"
// path: forward the upstream's ordinary HTTP response (status line, headers
// minus HopHeaders, then body) and close, rather than attempting to splice.
func relayNonUpgradeResponse(conn net.Conn, resp *http.Response) {
	conn.Write(serializeResponseHead(resp, true))
	if resp.Body != nil {
		buf := make([]byte, 32*1024)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				if _, werr := conn.Write(buf[:n]); werr != nil {
					break
				}
			}
			if err != nil {
				break
			}
		}
		resp.Body.Close()
	}
}

// splice cross-copies bytes between the client and upstream sockets until
// either side closes, using errgroup so both directions are torn down
// together once one leg finishes, per spec.md §7's concurrency model.
// clientHead and upstreamHead are bytes each side had already buffered
// before the splice started (the client's pre-handshake-tail read by the
// hijack, and whatever the upstream's bufio.Reader had pulled past the
// response headers); each is replayed onto the *other* side first so no
// payload bytes that arrived early are lost.
func splice(client, upstream net.Conn, clientHead, upstreamHead []byte, resp *http.Response, srv *ProxyServer, hooks Hooks) {
	if len(upstreamHead) > 0 {
		client.Write(upstreamHead)
	}

	var g errgroup.Group
	g.Go(func() error {
		defer upstream.Close()
		n, err := copyBuf(upstream, client, clientHead)
		if srv != nil && srv.metrics != nil {
			srv.metrics.written("ws", n)
		}
		return err
	})
	g.Go(func() error {
		defer client.Close()
		n, err := copyBuf(client, upstream, nil)
		if srv != nil && srv.metrics != nil {
			srv.metrics.read("ws", n)
		}
		return err
	})
	g.Wait()

	hooks.fireClose(resp, upstream, upstreamHead)
}

// copyBuf copies src -> dst until either side errors, writing prefix first
// (the already-buffered "head" bytes for that direction, if any).
func copyBuf(dst, src net.Conn, prefix []byte) (int64, error) {
	var total int64
	if len(prefix) > 0 {
		n, err := dst.Write(prefix)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	buf := make([]byte, 32*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

func handleWsError(srv *ProxyServer, err error, req *http.Request, conn net.Conn, target *Target, errCb ErrorCallback, hooks Hooks) {
	if srv != nil {
		srv.handleError(err, req, conn, target, errCb, hooks)
		return
	}
	if errCb != nil {
		errCb(err, req, conn, target)
		return
	}
	if hooks.OnError != nil {
		hooks.OnError(err, req, conn, target)
	}
}
