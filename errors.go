package proxy

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies the errors this proxy can surface, matching the
// taxonomy callers need to decide whether to retry, log, or ignore.
type ErrorKind int

const (
	// ErrConfiguration covers missing target/forward or a before/after call
	// referencing a pass name that doesn't exist in the pipeline.
	ErrConfiguration ErrorKind = iota
	// ErrUpstreamConnect covers dial/TLS-handshake failures talking to the
	// upstream (ECONNREFUSED, DNS failure, certificate errors).
	ErrUpstreamConnect
	// ErrUpstreamReset covers the upstream closing before a response was
	// produced.
	ErrUpstreamReset
	// ErrClientAbort covers the client disconnecting before or while the
	// upstream response is relayed; never surfaced through OnError, only torn
	// down (OnEconnreset still sees it when it is a connection reset).
	ErrClientAbort
	// ErrTimeout covers the configured Timeout/ProxyTimeout firing.
	ErrTimeout
	// ErrMalformedUpgrade covers checkMethodAndHeader rejecting a WebSocket
	// handshake.
	ErrMalformedUpgrade
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConfiguration:
		return "configuration"
	case ErrUpstreamConnect:
		return "upstream_connect"
	case ErrUpstreamReset:
		return "upstream_reset"
	case ErrClientAbort:
		return "client_abort"
	case ErrTimeout:
		return "timeout"
	case ErrMalformedUpgrade:
		return "malformed_upgrade"
	default:
		return "unknown"
	}
}

// ProxyError is a classified error raised by the proxy core. Configuration
// errors are wrapped with github.com/pkg/errors at construction time so a
// caller can still unwrap to the underlying cause; per-transaction network
// errors returned from net/http are passed through unwrapped so sentinel
// comparisons (errors.Is against syscall errors) keep working.
type ProxyError struct {
	Kind ErrorKind
	Err  error
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("proxy: %s: %v", e.Kind, e.Err)
}

func (e *ProxyError) Unwrap() error { return e.Err }

// newConfigError wraps msg/args into a ProxyError of kind ErrConfiguration.
func newConfigError(format string, args ...interface{}) error {
	return &ProxyError{Kind: ErrConfiguration, Err: errors.Errorf(format, args...)}
}

// wrapKind annotates err with the given kind without discarding it, so
// callers using errors.Is/errors.As against the original network error still
// work through ProxyError.Unwrap.
func wrapKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &ProxyError{Kind: kind, Err: err}
}
