package proxy

import (
	"net"
	"net/http"
)

// WebPassFunc is one step of the web-incoming pipeline. Returning true halts
// the pipeline; err, if non-nil, is propagated to the caller's error
// callback or the server's OnError hook.
type WebPassFunc func(req *http.Request, rw http.ResponseWriter, opts *ProxyOptions, srv *ProxyServer, errCb ErrorCallback) (bool, error)

// WsPassFunc is one step of the ws-incoming pipeline.
type WsPassFunc func(req *http.Request, conn net.Conn, head []byte, opts *ProxyOptions, srv *ProxyServer, errCb ErrorCallback) (bool, error)

// WebOutgoingPassFunc is one step of the web-outgoing pipeline, run against
// the upstream response before the client sees it.
type WebOutgoingPassFunc func(proxyRes *http.Response, req *http.Request, rw http.ResponseWriter, opts *ProxyOptions) (bool, error)

// namedPass pairs a pass with the name before/after use to locate it. Pass
// identity by name is significant: before/after splice relative to the last
// match, per spec.md §3.
type namedPass[T any] struct {
	name string
	fn   T
}

func findLast[T any](list []namedPass[T], name string) int {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].name == name {
			return i
		}
	}
	return -1
}

func insertBefore[T any](list []namedPass[T], anchor, newName string, fn T) ([]namedPass[T], error) {
	idx := findLast(list, anchor)
	if idx < 0 {
		return list, newConfigError("no such pass: %s", anchor)
	}
	return spliceAt(list, idx, newName, fn), nil
}

func insertAfter[T any](list []namedPass[T], anchor, newName string, fn T) ([]namedPass[T], error) {
	idx := findLast(list, anchor)
	if idx < 0 {
		return list, newConfigError("no such pass: %s", anchor)
	}
	return spliceAt(list, idx+1, newName, fn), nil
}

func spliceAt[T any](list []namedPass[T], idx int, name string, fn T) []namedPass[T] {
	out := make([]namedPass[T], 0, len(list)+1)
	out = append(out, list[:idx]...)
	out = append(out, namedPass[T]{name: name, fn: fn})
	out = append(out, list[idx:]...)
	return out
}
