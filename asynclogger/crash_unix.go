//go:build unix

package asynclogger

import (
	"os"

	"golang.org/x/sys/unix"
)

// crashSignals are the fault signals that trigger an emergency flush
var crashSignals = []os.Signal{
	unix.SIGSEGV,
	unix.SIGBUS,
	unix.SIGFPE,
	unix.SIGILL,
	unix.SIGABRT,
}
