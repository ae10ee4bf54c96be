package proxy

import (
	glog "github.com/labstack/gommon/log"
	"github.com/vulcand/oxy/utils"
)

// Logger is the logging seam the proxy uses for all internal diagnostics. It
// reuses github.com/vulcand/oxy/utils.Logger's shape so the utils package
// helpers (CopyHeaders, RemoveHeaders, ...) and this package share one logger
// contract. The zero-value default, as in the teacher's forward.New, is
// utils.NullLogger.
type Logger = utils.Logger

// gommonLogger adapts github.com/labstack/gommon/log to utils.Logger. It is
// the default backend wired by DefaultLogger, replacing the bare
// "github.com/labstack/gommon/log" package-level calls the teacher's
// websocket replicator made directly.
type gommonLogger struct {
	l *glog.Logger
}

// DefaultLogger returns a Logger backed by github.com/labstack/gommon/log at
// the given level ("debug", "info", "warn", "error" - unrecognized values
// default to "info").
func DefaultLogger(level string) Logger {
	l := glog.New("proxy")
	l.SetLevel(levelFromString(level))
	return &gommonLogger{l: l}
}

func levelFromString(level string) glog.Lvl {
	switch level {
	case "debug":
		return glog.DEBUG
	case "warn":
		return glog.WARN
	case "error":
		return glog.ERROR
	default:
		return glog.INFO
	}
}

func (g *gommonLogger) Infof(format string, args ...interface{})  { g.l.Infof(format, args...) }
func (g *gommonLogger) Debugf(format string, args ...interface{}) { g.l.Debugf(format, args...) }
func (g *gommonLogger) Warningf(format string, args ...interface{}) {
	g.l.Warnf(format, args...)
}
func (g *gommonLogger) Errorf(format string, args ...interface{}) { g.l.Errorf(format, args...) }
