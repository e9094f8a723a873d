//go:build !unix

package asynclogger

import "os"

// No fault signals are delivered to Go here; only RecoverAndFlush applies
var crashSignals []os.Signal
