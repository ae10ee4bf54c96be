package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupOutgoingBasic(t *testing.T) {
	target, err := ParseTarget("http://backend.internal:9000/api")
	require.NoError(t, err)

	opts := &ProxyOptions{Target: target}
	req := httptest.NewRequest(http.MethodGet, "/users/1?x=1", nil)

	out, err := setupOutgoing(opts, req, roleTarget)
	require.NoError(t, err)

	assert.Equal(t, "http", out.Scheme)
	assert.Equal(t, "backend.internal:9000", out.Host)
	assert.Equal(t, "/api/users/1?x=1", out.Path)
	assert.Equal(t, "close", out.Header.Get(Connection))
}

func TestSetupOutgoingIgnorePath(t *testing.T) {
	target, err := ParseTarget("http://backend.internal/api")
	require.NoError(t, err)

	opts := &ProxyOptions{Target: target, IgnorePath: true}
	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)

	out, err := setupOutgoing(opts, req, roleTarget)
	require.NoError(t, err)
	assert.Equal(t, "/api", out.Path)
}

func TestSetupOutgoingChangeOriginRewritesHost(t *testing.T) {
	target, err := ParseTarget("http://backend.internal:9000")
	require.NoError(t, err)

	opts := &ProxyOptions{Target: target, ChangeOrigin: true}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "client.example.com"

	out, err := setupOutgoing(opts, req, roleTarget)
	require.NoError(t, err)
	assert.Equal(t, "backend.internal:9000", out.Header.Get(Host))
}

func TestSetupOutgoingAuthHeader(t *testing.T) {
	target, err := ParseTarget("http://backend.internal")
	require.NoError(t, err)

	opts := &ProxyOptions{Target: target, Auth: "alice:secret"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	out, err := setupOutgoing(opts, req, roleTarget)
	require.NoError(t, err)
	assert.Equal(t, "Basic YWxpY2U6c2VjcmV0", out.Header.Get(Authorization))
}

func TestSetupOutgoingPreservesUpgradeConnection(t *testing.T) {
	target, err := ParseTarget("http://backend.internal")
	require.NoError(t, err)

	opts := &ProxyOptions{Target: target}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Connection, "Upgrade")

	out, err := setupOutgoing(opts, req, roleTarget)
	require.NoError(t, err)
	assert.Equal(t, "Upgrade", out.Header.Get(Connection))
}

func TestSetupOutgoingNoTargetErrors(t *testing.T) {
	opts := &ProxyOptions{}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := setupOutgoing(opts, req, roleTarget)
	assert.Error(t, err)
}
