package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassSetRedirectHostRewriteSameHost(t *testing.T) {
	target, err := ParseTarget("http://backend.internal:9000")
	require.NoError(t, err)
	opts := &ProxyOptions{Target: target, HostRewrite: "public.example.com"}

	resp := &http.Response{StatusCode: http.StatusFound, Header: http.Header{}}
	resp.Header.Set(Location, "http://backend.internal:9000/next")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rw := httptest.NewRecorder()

	halt, err := passSetRedirectHostRewrite(resp, req, rw, opts)
	require.NoError(t, err)
	assert.False(t, halt)
	assert.Equal(t, "http://public.example.com/next", resp.Header.Get(Location))
}

func TestPassSetRedirectHostRewriteIgnoresOffTargetRedirect(t *testing.T) {
	target, err := ParseTarget("http://backend.internal:9000")
	require.NoError(t, err)
	opts := &ProxyOptions{Target: target, HostRewrite: "public.example.com"}

	resp := &http.Response{StatusCode: http.StatusFound, Header: http.Header{}}
	resp.Header.Set(Location, "http://somewhere-else.example.com/next")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rw := httptest.NewRecorder()

	_, err = passSetRedirectHostRewrite(resp, req, rw, opts)
	require.NoError(t, err)
	assert.Equal(t, "http://somewhere-else.example.com/next", resp.Header.Get(Location))
}

func TestPassRemoveChunkedOnHTTP10(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set(TransferEncoding, "chunked")
	req := &http.Request{Proto: "HTTP/1.0", ProtoMajor: 1, ProtoMinor: 0}

	_, err := passRemoveChunked(resp, req, httptest.NewRecorder(), &ProxyOptions{})
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get(TransferEncoding))
}

func TestPassSetConnectionDefaultsKeepAlive(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := passSetConnection(resp, req, httptest.NewRecorder(), &ProxyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "keep-alive", resp.Header.Get(Connection))
}

func TestPassWriteHeadersRewritesSetCookie(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Add(SetCookie, "sid=1; Domain=backend.internal; Path=/")
	opts := &ProxyOptions{CookieDomainRewrite: NewCookieRewrite("public.example.com")}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rw := httptest.NewRecorder()

	_, err := passWriteHeaders(resp, req, rw, opts)
	require.NoError(t, err)
	assert.Equal(t, "sid=1; Domain=public.example.com; Path=/", rw.Header().Get(SetCookie))
}
