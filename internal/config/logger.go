package config

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
)

var debug atomic.Bool

// NewLogger returns the process logger and enables Debugf output when
// level is "debug".
func NewLogger(level string) *log.Logger {
	SetDebug(strings.EqualFold(level, "debug"))
	return log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)
}

func SetDebug(enable bool) {
	debug.Store(enable)
}

// DebugEnabled reports whether LOG_LEVEL asked for debug output.
func DebugEnabled() bool {
	return debug.Load()
}

// Debugf logs per-message detail, dropped unless debug is enabled.
func Debugf(logger *log.Logger, format string, v ...interface{}) {
	if !debug.Load() {
		return
	}
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("DEBUG "+format, v...)
}
