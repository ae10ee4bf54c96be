package proxy

// Header name constants used throughout the pass pipeline. Mirrors the
// un-exported constant set the teacher's forward package keeps next to
// fwd.go (trimmed from the retrieved sources, reconstructed here since this
// package needs the same names).
const (
	XForwardedFor   = "X-Forwarded-For"
	XForwardedHost  = "X-Forwarded-Host"
	XForwardedPort  = "X-Forwarded-Port"
	XForwardedProto = "X-Forwarded-Proto"

	Connection        = "Connection"
	KeepAlive         = "Keep-Alive"
	ProxyAuthenticate = "Proxy-Authenticate"
	ProxyAuthorization = "Proxy-Authorization"
	Te                = "Te"
	Trailers          = "Trailers"
	TransferEncoding  = "Transfer-Encoding"
	Upgrade           = "Upgrade"

	ContentLength = "Content-Length"
	ContentType   = "Content-Type"
	Host          = "Host"
	Location      = "Location"
	SetCookie     = "Set-Cookie"
	Expect        = "Expect"
	Authorization = "Authorization"
)

// HopHeaders lists the hop-by-hop headers of RFC 7230 section 6.1. The proxy
// strips them only from a non-upgrade upstream response relayed on the
// WebSocket path (serializeResponseHead); HTTP requests and responses keep
// them.
var HopHeaders = []string{
	Connection,
	KeepAlive,
	ProxyAuthenticate,
	ProxyAuthorization,
	Te,
	Trailers,
	TransferEncoding,
	Upgrade,
}
