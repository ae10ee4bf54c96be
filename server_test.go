package proxy

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebPassthroughGET(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/hello", req.URL.Path)
		rw.Header().Set("X-Upstream", "yes")
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("hi"))
	}))
	defer upstream.Close()

	target, err := ParseTarget(upstream.URL)
	require.NoError(t, err)

	srv := New(ProxyOptions{Target: target})

	front := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		require.NoError(t, srv.Web(rw, req))
	}))
	defer front.Close()

	resp, err := http.Get(front.URL + "/hello")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hi", string(body))
	assert.Equal(t, "yes", resp.Header.Get("X-Upstream"))
}

func TestWebXFwdAppendsHeaders(t *testing.T) {
	var seenFor, seenProto string
	upstream := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		seenFor = req.Header.Get(XForwardedFor)
		seenProto = req.Header.Get(XForwardedProto)
		rw.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	target, err := ParseTarget(upstream.URL)
	require.NoError(t, err)

	srv := New(ProxyOptions{Target: target, XFwd: true})

	front := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		require.NoError(t, srv.Web(rw, req))
	}))
	defer front.Close()

	resp, err := http.Get(front.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.NotEmpty(t, seenFor)
	assert.Equal(t, "http", seenProto)
}

func TestWebSelfHandleResponseSkipsOutgoingPipeline(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set(SetCookie, "sid=1; Domain=backend.internal")
		rw.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	target, err := ParseTarget(upstream.URL)
	require.NoError(t, err)

	srv := New(ProxyOptions{
		Target:              target,
		SelfHandleResponse:  true,
		CookieDomainRewrite: NewCookieRewrite("public.example.com"),
		Hooks: Hooks{
			OnProxyRes: func(proxyRes *http.Response, req *http.Request, rw http.ResponseWriter) {
				for k, v := range proxyRes.Header {
					rw.Header()[k] = v
				}
				rw.WriteHeader(proxyRes.StatusCode)
			},
		},
	})

	front := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		require.NoError(t, srv.Web(rw, req))
	}))
	defer front.Close()

	resp, err := http.Get(front.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	// SelfHandleResponse bypassed writeHeaders, so the cookie the OnProxyRes
	// hook copied is relayed unrewritten.
	assert.Equal(t, "sid=1; Domain=backend.internal", resp.Header.Get(SetCookie))
}

// fakeWsUpstream speaks just enough of the handshake to exercise passWsStream's
// upgrade path: it reads one request line + headers, replies 101, then echoes
// whatever bytes it receives afterward.
func fakeWsUpstream(t *testing.T) net.Listener {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n"))
		io.Copy(conn, r)
	}()
	return ln
}

func TestWsEcho(t *testing.T) {
	ln := fakeWsUpstream(t)
	defer ln.Close()

	target, err := ParseTarget("ws://" + ln.Addr().String())
	require.NoError(t, err)

	srv := New(ProxyOptions{Target: target, WS: true})

	front := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		require.NoError(t, srv.Ws(rw, req))
	}))
	defer front.Close()

	conn, err := net.Dial("tcp", front.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	req, _ := http.NewRequest(http.MethodGet, front.URL+"/ws", nil)
	req.Header.Set(Upgrade, "websocket")
	req.Header.Set(Connection, "Upgrade")
	require.NoError(t, req.Write(conn))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	r := bufio.NewReader(conn)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, status, "101")

	var sawUpgrade, sawConnection bool
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "upgrade:") {
			sawUpgrade = true
		}
		if strings.HasPrefix(strings.ToLower(line), "connection:") {
			sawConnection = true
		}
	}
	// RFC 6455 requires these survive onto the client's 101 response.
	assert.True(t, sawUpgrade, "expected Upgrade header on the 101 response")
	assert.True(t, sawConnection, "expected Connection header on the 101 response")

	payload := []byte("ping")
	_, err = conn.Write(payload)
	require.NoError(t, err)

	echoed := make([]byte, len(payload))
	_, err = io.ReadFull(r, echoed)
	require.NoError(t, err)
	assert.Equal(t, payload, echoed)
}

func TestWsRejectsNonUpgrade(t *testing.T) {
	target, err := ParseTarget("http://127.0.0.1:1")
	require.NoError(t, err)
	srv := New(ProxyOptions{Target: target, WS: true})

	front := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		require.NoError(t, srv.Ws(rw, req))
	}))
	defer front.Close()

	conn, err := net.Dial("tcp", front.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	req, _ := http.NewRequest(http.MethodGet, front.URL+"/ws", nil)
	require.NoError(t, req.Write(conn))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, _ := conn.Read(buf)
	assert.Equal(t, 0, n)
}
