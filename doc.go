// Package proxy implements a programmable HTTP, HTTPS and WebSocket reverse
// proxy core. It rewrites an incoming request, opens a matching upstream
// connection (and optionally a fire-and-forget "forward" copy), streams bytes
// in both directions, rewrites response headers, and splices raw byte
// streams on WebSocket upgrade.
//
// The engine is built around two ordered request pipelines (web-incoming,
// ws-incoming) and one response pipeline (web-outgoing). Passes are named
// functions kept in per-server slices so that callers can insert their own
// logic with Before/After, the same way github.com/vulcand/oxy's forwarders
// are extended with functional options.
package proxy
