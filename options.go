package proxy

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mathpl/go-tsdmetrics"
)

// Target describes an upstream endpoint: either parsed lazily from a URL
// string on first use, or supplied already structured with TLS material, per
// spec.md §3's "target descriptor".
type Target struct {
	Protocol string // e.g. "http:", "https:", "ws:", "wss:"
	Host     string // host[:port] as it appeared in the URL
	Hostname string // host without port
	Port     string // explicit port, if any; empty means "derive from protocol"
	Path     string // pathname + search, the legacy URL "path" convention

	// SocketPath, when set, means this target is a Unix-domain upstream and
	// Host/Port are ignored when dialing.
	SocketPath string

	// TLS material for dialing the upstream. Cert/Key/CA (PEM) and Ciphers
	// (Go cipher-suite IDs) feed the *tls.Config; PFX, Passphrase and
	// SecureProtocol are kept for parity with the configuration surface
	// spec.md describes but are not consumed.
	PFX            []byte
	Key            []byte
	Passphrase     string
	Cert           []byte
	CA             []byte
	Ciphers        []uint16
	SecureProtocol string
}

// ParseTarget parses a target URL string into a structured Target, the way
// the reference implementation lazily parses a string target on first use.
func ParseTarget(raw string) (*Target, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("proxy: parse target %q: %w", raw, err)
	}
	t := &Target{
		Protocol: u.Scheme + ":",
		Host:     u.Host,
		Hostname: u.Hostname(),
		Port:     u.Port(),
		Path:     u.EscapedPath(),
	}
	if u.RawQuery != "" {
		t.Path += "?" + u.RawQuery
	}
	return t, nil
}

// isSecureProtocol reports whether the target's protocol requires TLS,
// matching spec.md's /^https|wss/ test (colon optional).
func isSecureProtocol(protocol string) bool {
	p := strings.ToLower(strings.TrimSuffix(protocol, ":"))
	return p == "https" || p == "wss"
}

// isWebsocketProtocol reports whether the target's protocol is a WebSocket
// variant (ws/wss).
func isWebsocketProtocol(protocol string) bool {
	p := strings.ToLower(strings.TrimSuffix(protocol, ":"))
	return p == "ws" || p == "wss"
}

// CookieRewrite models spec.md §3's cookieDomainRewrite/cookiePathRewrite
// option: either disabled, a single substitution (sugar for {"*": to}), or a
// full old-value -> new-value mapping. An empty-string replacement removes
// the cookie attribute entirely.
type CookieRewrite struct {
	Disabled bool
	Rules    map[string]string
}

// NewCookieRewrite builds the {"*": to} sugar form.
func NewCookieRewrite(to string) CookieRewrite {
	return CookieRewrite{Rules: map[string]string{"*": to}}
}

// NewCookieRewriteMap builds a full old -> new mapping.
func NewCookieRewriteMap(rules map[string]string) CookieRewrite {
	return CookieRewrite{Rules: rules}
}

// enabled reports whether this rewrite config should run at all.
func (c CookieRewrite) enabled() bool {
	return !c.Disabled && len(c.Rules) > 0
}

// MetricsOption wires a tagged metrics registry into the streaming passes,
// generalizing the teacher's forward.Meters optSetter (forward/metrics_context.go)
// to cover both the web and ws streaming paths.
type MetricsOption struct {
	Registry tsdmetrics.TaggedRegistry
	Tags     tsdmetrics.Tags
}

// ProxyOptions is the full configuration surface from spec.md §3. A
// ProxyOptions value is immutable input to Web/Ws; per-call Option functions
// (see Option below) are applied to a shallow copy before each pipeline run,
// the same "functional option mutates a private copy" idiom the teacher uses
// for forward.New and roundrobin.New.
type ProxyOptions struct {
	Target  *Target
	Forward *Target

	// Agent stands in for the reference implementation's opaque connection
	// pool handle: when nil, the outgoing Connection header is forced to
	// "close" (unless the incoming request is itself an Upgrade), the same
	// "agent ?? false" rule from setupOutgoing.
	Agent http.RoundTripper

	WS   bool
	XFwd bool

	// Secure controls upstream TLS verification. Per spec.md, default true;
	// use SecureFalse() to disable it explicitly, since Go has no tri-state
	// bool literal.
	Secure *bool

	ToProxy bool

	// PrependPath defaults to true; use PrependPathFalse() to disable it.
	PrependPath *bool

	IgnorePath   bool
	LocalAddress string
	ChangeOrigin bool

	PreserveHeaderKeyCase bool

	// Auth is "user:pass", base64-encoded into an Authorization header by
	// setupOutgoing.
	Auth string

	HostRewrite     string
	AutoRewrite     bool
	ProtocolRewrite string

	CookieDomainRewrite CookieRewrite
	CookiePathRewrite   CookieRewrite

	Headers http.Header
	Method  string

	ProxyTimeout time.Duration
	Timeout      time.Duration

	FollowRedirects    bool
	SelfHandleResponse bool

	// Buffer, when set, is piped to the upstream in place of the client
	// request body.
	Buffer io.Reader

	Metrics *MetricsOption
	Logger  Logger
	Hooks   Hooks
}

// Option mutates a ProxyOptions clone before a single Web/Ws call, the
// per-call equivalent of oxy's optSetter/LBOption functional-option pattern.
type Option func(*ProxyOptions) error

func clone(o ProxyOptions) ProxyOptions {
	if o.Headers != nil {
		h := make(http.Header, len(o.Headers))
		for k, v := range o.Headers {
			vv := make([]string, len(v))
			copy(vv, v)
			h[k] = vv
		}
		o.Headers = h
	}
	return o
}

func applyOptions(base ProxyOptions, opts ...Option) (ProxyOptions, error) {
	out := clone(base)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&out); err != nil {
			return out, err
		}
	}
	return out, nil
}

// WithTargetURL sets Target by parsing raw.
func WithTargetURL(raw string) Option {
	return func(o *ProxyOptions) error {
		t, err := ParseTarget(raw)
		if err != nil {
			return err
		}
		o.Target = t
		return nil
	}
}

// WithForwardURL sets Forward by parsing raw.
func WithForwardURL(raw string) Option {
	return func(o *ProxyOptions) error {
		t, err := ParseTarget(raw)
		if err != nil {
			return err
		}
		o.Forward = t
		return nil
	}
}

// WithMetrics sets Metrics on the per-call options copy. The streaming passes
// record to the registry taken from the options passed to New, so a registry
// set this way for one call is not used for recording.
func WithMetrics(registry tsdmetrics.TaggedRegistry, tags tsdmetrics.Tags) Option {
	return func(o *ProxyOptions) error {
		o.Metrics = &MetricsOption{Registry: registry, Tags: tags}
		return nil
	}
}

func boolPtr(b bool) *bool { return &b }

// SecureFalse disables upstream TLS verification for one call.
func SecureFalse() Option {
	return func(o *ProxyOptions) error { o.Secure = boolPtr(false); return nil }
}

// PrependPathFalse disables path prepending for one call.
func PrependPathFalse() Option {
	return func(o *ProxyOptions) error { o.PrependPath = boolPtr(false); return nil }
}

// secureDefault returns the effective value of Secure, defaulting to true.
func (o *ProxyOptions) secureDefault() bool {
	if o.Secure == nil {
		return true
	}
	return *o.Secure
}

// prependPathDefault returns the effective value of PrependPath, defaulting
// to true, matching the constructor normalization spec.md §4.7 describes.
func (o *ProxyOptions) prependPathDefault() bool {
	if o.PrependPath == nil {
		return true
	}
	return *o.PrependPath
}

// hasTarget reports whether a non-empty target or forward is resolved,
// invariant (a) from spec.md §3.
func (o *ProxyOptions) hasTarget() bool {
	return (o.Target != nil && o.Target.Host != "") || (o.Forward != nil && o.Forward.Host != "")
}

// requiresPort mirrors the npm "requires-port" heuristic used by
// changeOrigin's Host-rewrite: 80 is standard for http/ws, 443 for https/wss.
func requiresPort(port, protocol string) bool {
	if port == "" {
		return false
	}
	p := strings.ToLower(strings.TrimSuffix(protocol, ":"))
	switch p {
	case "http", "ws":
		return port != "80"
	case "https", "wss":
		return port != "443"
	default:
		return true
	}
}

// upgradeTokenRe matches a Connection header value that grants an Upgrade,
// per setupOutgoing point 7: "(^|,)\s*upgrade\s*($|,)/i". "not upgrade" must
// not match this, hence the anchored comma/boundary groups rather than a bare
// substring test.
var upgradeTokenRe = regexp.MustCompile(`(?i)(^|,)\s*upgrade\s*($|,)`)

func connectionHasUpgrade(connectionHeader string) bool {
	return upgradeTokenRe.MatchString(connectionHeader)
}
