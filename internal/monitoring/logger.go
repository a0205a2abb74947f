// Package monitoring holds the process-wide diagnostic log hooks shared by
// the sonar transport, playback and render packages.
package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the diagnostic logger. It defaults to log.Printf; tests swap it
// with SetLogger to capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

var debug atomic.Bool

// SetLogger replaces Logf. A nil logger discards everything.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug enables per-datagram and per-frame tracing through Debugf.
func SetDebug(on bool) { debug.Store(on) }

// DebugEnabled reports whether Debugf forwards to Logf.
func DebugEnabled() bool { return debug.Load() }

// Debugf logs through Logf only when debug tracing is on.
func Debugf(format string, v ...interface{}) {
	if debug.Load() {
		Logf(format, v...)
	}
}
