package proxy

import (
	"net/http"
	"net/url"
)

// defaultWebOutgoingPasses returns the shared web-outgoing pipeline, run
// against the upstream response before the client sees it: removeChunked ->
// setConnection -> setRedirectHostRewrite -> writeHeaders -> writeStatusCode,
// per spec.md §4.4. Each call returns a fresh slice: New gives every
// ProxyServer its own copy, like webPasses/wsPasses, and the list is not
// shared between instances.
func defaultWebOutgoingPasses() []namedPass[WebOutgoingPassFunc] {
	return []namedPass[WebOutgoingPassFunc]{
		{name: "removeChunked", fn: passRemoveChunked},
		{name: "setConnection", fn: passSetConnection},
		{name: "setRedirectHostRewrite", fn: passSetRedirectHostRewrite},
		{name: "writeHeaders", fn: passWriteHeaders},
		{name: "writeStatusCode", fn: passWriteStatusCode},
	}
}

// passRemoveChunked strips Transfer-Encoding from the upstream response
// before relaying it to an HTTP/1.0 client, which cannot understand chunked
// framing.
func passRemoveChunked(proxyRes *http.Response, req *http.Request, rw http.ResponseWriter, opts *ProxyOptions) (bool, error) {
	if req.ProtoAtLeast(1, 1) {
		return false, nil
	}
	proxyRes.Header.Del(TransferEncoding)
	return false, nil
}

// passSetConnection sets the outgoing Connection header: for HTTP/1.0,
// mirror the client's Connection header or "close"; otherwise, if the
// upstream response left Connection unset, default to the client's value or
// "keep-alive".
func passSetConnection(proxyRes *http.Response, req *http.Request, rw http.ResponseWriter, opts *ProxyOptions) (bool, error) {
	clientConn := req.Header.Get(Connection)

	if !req.ProtoAtLeast(1, 1) {
		if clientConn != "" {
			proxyRes.Header.Set(Connection, clientConn)
		} else {
			proxyRes.Header.Set(Connection, "close")
		}
		return false, nil
	}

	if proxyRes.Header.Get(Connection) == "" {
		if clientConn != "" {
			proxyRes.Header.Set(Connection, clientConn)
		} else {
			proxyRes.Header.Set(Connection, "keep-alive")
		}
	}
	return false, nil
}

// passSetRedirectHostRewrite rewrites Location on a same-host redirect when
// hostRewrite/autoRewrite/protocolRewrite is configured, per spec.md §4.4 and
// testable property 7: never touch an off-target redirect.
func passSetRedirectHostRewrite(proxyRes *http.Response, req *http.Request, rw http.ResponseWriter, opts *ProxyOptions) (bool, error) {
	if opts.HostRewrite == "" && !opts.AutoRewrite && opts.ProtocolRewrite == "" {
		return false, nil
	}
	if opts.Target == nil {
		return false, nil
	}
	loc := proxyRes.Header.Get(Location)
	if loc == "" {
		return false, nil
	}
	if !isRewritableRedirect(proxyRes.StatusCode) {
		return false, nil
	}

	target, err := url.Parse(schemeFor(opts.Target.Protocol) + "://" + opts.Target.Host)
	if err != nil {
		return false, nil
	}
	u, err := url.Parse(loc)
	if err != nil {
		return false, nil
	}

	if u.Host != target.Host {
		return false, nil
	}

	if opts.HostRewrite != "" {
		u.Host = opts.HostRewrite
	} else if opts.AutoRewrite {
		u.Host = req.Host
	}
	if opts.ProtocolRewrite != "" {
		u.Scheme = opts.ProtocolRewrite
	}

	proxyRes.Header.Set(Location, u.String())
	return false, nil
}

func isRewritableRedirect(status int) bool {
	switch status {
	case http.StatusCreated, http.StatusMovedPermanently, http.StatusFound,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// passWriteHeaders rewrites Set-Cookie domain/path, restores original header
// casing when preserveHeaderKeyCase and raw headers are available, and
// writes every upstream header onto the client response. It always
// overwrites headers the caller may have already set, matching the
// reference implementation (spec.md §9 open question (b)).
func passWriteHeaders(proxyRes *http.Response, req *http.Request, rw http.ResponseWriter, opts *ProxyOptions) (bool, error) {
	caseMap := map[string]string{}
	if opts.PreserveHeaderKeyCase {
		if raw := rawHeaderKeys(proxyRes); raw != nil {
			for _, k := range raw {
				caseMap[http.CanonicalHeaderKey(k)] = k
			}
		}
	}

	dst := rw.Header()
	for k, values := range proxyRes.Header {
		if k == SetCookie {
			values = rewriteCookieProperties(values, opts.CookieDomainRewrite, opts.CookiePathRewrite)
		}
		outKey := k
		if preferred, ok := caseMap[k]; ok {
			outKey = preferred
		}
		dst[outKey] = values
	}
	return false, nil
}

// rawHeaderKeys returns the original-case header keys preserved on a
// response in its X-Proxy-Raw-Header-Keys header (rawHeaderKeysField), the
// Go analogue of
// the reference implementation's raw-header array (net/http normalizes
// header keys on the wire and does not expose the original casing).
func rawHeaderKeys(proxyRes *http.Response) []string {
	if rk, ok := proxyRes.Header[rawHeaderKeysField]; ok {
		return rk
	}
	return nil
}

const rawHeaderKeysField = "X-Proxy-Raw-Header-Keys"

// passWriteStatusCode copies the upstream status code onto the client
// response. The upstream status message is not relayed: net/http writes its
// own standard reason phrase for the code.
func passWriteStatusCode(proxyRes *http.Response, req *http.Request, rw http.ResponseWriter, opts *ProxyOptions) (bool, error) {
	rw.WriteHeader(proxyRes.StatusCode)
	return false, nil
}
