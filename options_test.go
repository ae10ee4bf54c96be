package proxy

import (
	"testing"

	"github.com/mathpl/go-tsdmetrics"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("https://example.com:9443/base?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https:", target.Protocol)
	assert.Equal(t, "example.com:9443", target.Host)
	assert.Equal(t, "example.com", target.Hostname)
	assert.Equal(t, "9443", target.Port)
	assert.Equal(t, "/base?x=1", target.Path)
}

func TestSecureAndPrependPathDefaults(t *testing.T) {
	var o ProxyOptions
	assert.True(t, o.secureDefault())
	assert.True(t, o.prependPathDefault())

	o.Secure = boolPtr(false)
	o.PrependPath = boolPtr(false)
	assert.False(t, o.secureDefault())
	assert.False(t, o.prependPathDefault())
}

func TestHasTarget(t *testing.T) {
	var o ProxyOptions
	assert.False(t, o.hasTarget())

	o.Target = &Target{Host: "upstream:80"}
	assert.True(t, o.hasTarget())
}

func TestApplyOptionsClonesHeaders(t *testing.T) {
	base := ProxyOptions{Headers: map[string][]string{"X-Base": {"1"}}}
	merged, err := applyOptions(base, func(o *ProxyOptions) error {
		o.Headers.Set("X-Base", "2")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "2", merged.Headers.Get("X-Base"))
	assert.Equal(t, "1", base.Headers.Get("X-Base"))
}

func TestConnectionHasUpgrade(t *testing.T) {
	assert.True(t, connectionHasUpgrade("Upgrade"))
	assert.True(t, connectionHasUpgrade("keep-alive, Upgrade"))
	assert.False(t, connectionHasUpgrade("keep-alive"))
	assert.False(t, connectionHasUpgrade("not upgrade-able"))
}

func TestRequiresPort(t *testing.T) {
	assert.False(t, requiresPort("80", "http:"))
	assert.True(t, requiresPort("8080", "http:"))
	assert.False(t, requiresPort("443", "https:"))
	assert.True(t, requiresPort("8443", "https:"))
}

func TestWithMetricsSetsPerCallOption(t *testing.T) {
	registry := tsdmetrics.NewTaggedRegistry(metrics.NewRegistry())
	tags := tsdmetrics.Tags{"service": "test"}

	merged, err := applyOptions(ProxyOptions{}, WithMetrics(registry, tags))
	require.NoError(t, err)
	require.NotNil(t, merged.Metrics)
	assert.Equal(t, tags, merged.Metrics.Tags)
}
