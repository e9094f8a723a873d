package asynclogger

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// crashExitCode is the process status after an emergency flush
const crashExitCode = 2

// maxStackDump bounds the goroutine dump written to stderr
const maxStackDump = 1 << 20

// CrashHandler flushes a logger when the process is about to die.
//
// It listens for fault signals delivered to the process and can be deferred
// at the top of goroutines via RecoverAndFlush to catch panics. Either way it
// pushes the active buffer, waits up to a bounded time for the writer, dumps
// goroutine stacks to stderr and exits. Everything is best effort.
type CrashHandler struct {
	logger  *Logger
	timeout time.Duration
	exit    func(int)
	stderr  io.Writer

	signals  chan os.Signal
	done     chan struct{}
	stopOnce sync.Once

	// fired ensures only the first crash runs the emergency path
	fired atomic.Bool
}

// CrashOption configures a CrashHandler
type CrashOption func(*CrashHandler)

// WithCrashFlushTimeout bounds how long the handler waits for the writer
func WithCrashFlushTimeout(d time.Duration) CrashOption {
	return func(h *CrashHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithExitFunc replaces os.Exit
func WithExitFunc(exit func(int)) CrashOption {
	return func(h *CrashHandler) {
		if exit != nil {
			h.exit = exit
		}
	}
}

// WithStderr replaces os.Stderr as the destination for crash output
func WithStderr(w io.Writer) CrashOption {
	return func(h *CrashHandler) {
		if w != nil {
			h.stderr = w
		}
	}
}

// InstallCrashHandler registers l for emergency flushing on fault signals.
// Call Stop to unregister.
func InstallCrashHandler(l *Logger, opts ...CrashOption) *CrashHandler {
	h := &CrashHandler{
		logger:  l,
		timeout: DefaultCrashFlushTimeout,
		exit:    os.Exit,
		stderr:  os.Stderr,
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	// signal.Notify with an empty list relays every signal, so skip it
	if len(crashSignals) > 0 {
		signal.Notify(h.signals, crashSignals...)
	}
	go h.run()

	return h
}

func (h *CrashHandler) run() {
	select {
	case sig := <-h.signals:
		h.handle(fmt.Sprintf("received signal %v", sig), false)
	case <-h.done:
	}
}

// RecoverAndFlush must be deferred directly. On panic it runs the emergency
// path with the panicking goroutine's stack and exits the process.
//
//	defer handler.RecoverAndFlush()
func (h *CrashHandler) RecoverAndFlush() {
	if r := recover(); r != nil {
		h.handle(fmt.Sprintf("panic: %v", r), true)
	}
}

// Stop unregisters the signals and ends the handler goroutine
func (h *CrashHandler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.signals)
		close(h.done)
	})
}

// handle flushes, dumps stacks and exits. Only the first caller proceeds.
func (h *CrashHandler) handle(reason string, panicking bool) {
	if !h.fired.CompareAndSwap(false, true) {
		return
	}

	fmt.Fprintf(h.stderr, "[LOGGER CRASH] %s, flushing logs\n", reason)
	h.flush()

	// The panicking goroutine's own stack is the useful one; for signals dump all
	buf := make([]byte, maxStackDump)
	n := runtime.Stack(buf, !panicking)
	h.stderr.Write(buf[:n])

	h.exit(crashExitCode)
}

// flush pushes the active buffer through the normal path and waits for the
// writer, giving up after the timeout so a wedged writer cannot hang the exit
func (h *CrashHandler) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.logger.Sync(ctx); err != nil {
		fmt.Fprintf(h.stderr, "[LOGGER CRASH] flush incomplete: %v\n", err)
	}
}
