package proxy

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// isConnReset reports whether err looks like a TCP reset or abrupt EOF from
// the upstream, the cases spec.md's error policy treats as "econnreset"
// rather than a generic error when the client is already gone.
func isConnReset(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return strings.Contains(netErr.Error(), "reset by peer") ||
			strings.Contains(netErr.Error(), "broken pipe")
	}
	return strings.Contains(err.Error(), "reset by peer") ||
		strings.Contains(err.Error(), "broken pipe")
}
