package main

import (
	"os"
	"strconv"
	"time"
)

// config is proxyd's env-sourced configuration, following the
// getString/getBool/getDuration idiom of loading flat env vars with
// fallbacks rather than a struct-tag-driven decoder.
type config struct {
	Host string
	Port int

	TargetURL string
	WS        bool

	TLSCertFile string
	TLSKeyFile  string

	Timeout      time.Duration
	ProxyTimeout time.Duration
	XFwd         bool
}

func loadConfig() config {
	return config{
		Host:         getString("PROXYD_HOST", "0.0.0.0"),
		Port:         getInt("PROXYD_PORT", 8080),
		TargetURL:    getString("PROXYD_TARGET", ""),
		WS:           getBool("PROXYD_WS", false),
		TLSCertFile:  getString("PROXYD_TLS_CERT", ""),
		TLSKeyFile:   getString("PROXYD_TLS_KEY", ""),
		Timeout:      getDuration("PROXYD_TIMEOUT", 0),
		ProxyTimeout: getDuration("PROXYD_PROXY_TIMEOUT", 0),
		XFwd:         getBool("PROXYD_XFWD", true),
	}
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
