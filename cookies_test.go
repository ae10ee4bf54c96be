package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteCookiePropertyExactMatch(t *testing.T) {
	cfg := NewCookieRewriteMap(map[string]string{"example.com": "proxy.example.com"})
	got := rewriteCookieProperty("sid=1; Domain=example.com; Path=/", cfg, "domain")
	assert.Equal(t, "sid=1; Domain=proxy.example.com; Path=/", got)
}

func TestRewriteCookiePropertyWildcardFallback(t *testing.T) {
	cfg := NewCookieRewrite("proxy.example.com")
	got := rewriteCookieProperty("sid=1; Domain=other.example.com", cfg, "domain")
	assert.Equal(t, "sid=1; Domain=proxy.example.com", got)
}

func TestRewriteCookiePropertyEmptyRemovesClause(t *testing.T) {
	cfg := NewCookieRewriteMap(map[string]string{"*": ""})
	got := rewriteCookieProperty("sid=1; Domain=example.com; Path=/", cfg, "domain")
	assert.Equal(t, "sid=1; Path=/", got)
}

func TestRewriteCookiePropertyNoMatchLeavesUnchanged(t *testing.T) {
	cfg := NewCookieRewriteMap(map[string]string{"onlythis.com": "x"})
	got := rewriteCookieProperty("sid=1; Domain=example.com", cfg, "domain")
	assert.Equal(t, "sid=1; Domain=example.com", got)
}

func TestRewriteCookiePropertiesElementwise(t *testing.T) {
	domainCfg := NewCookieRewrite("proxy.example.com")
	values := []string{"a=1; Domain=x.com", "b=2; Domain=y.com"}
	got := rewriteCookieProperties(values, domainCfg, CookieRewrite{})
	assert.Equal(t, []string{"a=1; Domain=proxy.example.com", "b=2; Domain=proxy.example.com"}, got)
}

func TestRewriteCookiePropertiesDisabledNoop(t *testing.T) {
	values := []string{"a=1; Domain=x.com"}
	got := rewriteCookieProperties(values, CookieRewrite{}, CookieRewrite{})
	assert.Equal(t, values, got)
}
