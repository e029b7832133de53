// Package log provides semantic log functions over the standard logger.
package log

import (
	"io"
	"log"
	"sync/atomic"
)

var verbose atomic.Bool

// SetVerbose turns Infof output on or off. It is off by default.
func SetVerbose(v bool) { verbose.Store(v) }

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) { log.SetOutput(w) }

// Infof logs to the informational log when verbose logging is on.
func Infof(msg string, args ...any) {
	if verbose.Load() {
		log.Printf(msg, args...)
	}
}

// Warningf logs to the warning log.
func Warningf(msg string, args ...any) { log.Printf("WARNING: "+msg, args...) }
