// Command proxyd is a thin listener around the proxy package: it parses a
// single target from the environment and serves it, with optional TLS and
// WebSocket upgrade support. It exists so spec.md's listen(port, host?)
// contract has a runnable entry point outside the library's test surface.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/mathpl/httpproxy"
)

func main() {
	cfg := loadConfig()
	if cfg.TargetURL == "" {
		fmt.Fprintln(os.Stderr, "proxyd: PROXYD_TARGET is required")
		os.Exit(1)
	}

	tlsConfig, err := checkTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	target, err := proxy.ParseTarget(cfg.TargetURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "proxyd: bad PROXYD_TARGET:", err)
		os.Exit(1)
	}

	srv := proxy.New(proxy.ProxyOptions{
		Target:       target,
		WS:           cfg.WS,
		XFwd:         cfg.XFwd,
		Timeout:      cfg.Timeout,
		ProxyTimeout: cfg.ProxyTimeout,
		Logger:       proxy.DefaultLogger("info"),
	})

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	fmt.Fprintf(os.Stdout, "proxyd: listening on %s -> %s\n", addr, cfg.TargetURL)
	if err := srv.Listen(addr, tlsConfig); err != nil {
		fmt.Fprintln(os.Stderr, "proxyd:", err)
		os.Exit(1)
	}
}
