package asynclogger

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Logger is an async file logger. Producers format a line and copy it into
// the active buffer under a mutex; full buffers are queued and written by a
// single background goroutine that also rotates the file.
//
// Lines reach the file in the order their appends acquired the mutex.
type Logger struct {
	// threshold is the minimum Level; read without locking by the level filter
	threshold atomic.Int32

	// mu guards active, spare, pending, enqueued, stopping and the rotation settings
	mu       sync.Mutex
	active   *Buffer
	spare    *Buffer
	pending  []*Buffer
	enqueued uint64 // buffers ever pushed to pending
	stopping bool

	rotationThreshold int64
	baseFilename      string

	// drained is the enqueued count the writer has fully processed
	drained atomic.Uint64

	// cycleMu guards cycleDone, which the writer closes and replaces after
	// publishing drained so that Sync waiters wake without polling
	cycleMu   sync.Mutex
	cycleDone chan struct{}

	// wake has capacity 1; a pending value means the writer has work
	wake chan struct{}

	// stop is closed by Close
	stop chan struct{}

	// exited is closed when the writer goroutine returns
	exited chan struct{}

	closeOnce sync.Once
	closeErr  error

	pool   *bufferPool
	fw     *fileWriter
	config Config
	diag   *zap.Logger
	stats  statistics
	crash  *CrashHandler

	// now is replaceable in tests
	now func() time.Time
}

// New creates a new async logger, opens the log file and starts the writer
func New(config Config) (*Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fw, err := newFileWriter(config.LogFilePath, config.SyncOnDrain)
	if err != nil {
		return nil, fmt.Errorf("failed to create file writer: %w", err)
	}

	l := &Logger{
		rotationThreshold: config.RotationThreshold,
		baseFilename:      config.LogFilePath,
		pending:           make([]*Buffer, 0, 16),
		wake:              make(chan struct{}, 1),
		stop:              make(chan struct{}),
		exited:            make(chan struct{}),
		cycleDone:         make(chan struct{}),
		fw:                fw,
		config:            config,
		diag:              config.Diagnostics,
		now:               time.Now,
	}
	l.threshold.Store(int32(config.Level))
	l.pool = newBufferPool(config.BufferSize, config.PoolSize, &l.stats.buffersAllocated)

	// Active and spare are allocated up front so the first swap never allocates
	l.active = l.pool.get()
	l.spare = l.pool.get()

	go l.writeLoop()

	if config.InstallCrashHandler {
		l.crash = InstallCrashHandler(l, WithCrashFlushTimeout(config.CrashFlushTimeout))
	}

	return l, nil
}

// SetLevel changes the threshold; lines below it are discarded before formatting
func (l *Logger) SetLevel(level Level) {
	l.threshold.Store(int32(level))
}

// Level returns the current threshold
func (l *Logger) Level() Level {
	return Level(l.threshold.Load())
}

// Enabled reports whether a line at level would be written
func (l *Logger) Enabled(level Level) bool {
	return level >= Level(l.threshold.Load())
}

// SetRotationThreshold sets the number of bytes written before the file is
// rotated. Zero or a negative value disables rotation.
func (l *Logger) SetRotationThreshold(bytes int64) {
	l.mu.Lock()
	l.rotationThreshold = bytes
	l.mu.Unlock()
}

// SetBaseFilename sets the stable name that rotated files are renamed away
// from and that is reopened after each rotation. An empty name disables rotation.
func (l *Logger) SetBaseFilename(name string) {
	l.mu.Lock()
	l.baseFilename = name
	l.mu.Unlock()
}

// Log formats one line and queues it for the writer. It never blocks on I/O
// and never reports failures; lines below the threshold cost one atomic load.
func (l *Logger) Log(level Level, loc Location, format string, args ...any) {
	if level < Level(l.threshold.Load()) {
		return
	}

	bufPtr := scratchPool.Get().(*[]byte)
	record, truncated := appendRecord((*bufPtr)[:0], l.now(), level, loc, l.config.MaxLineSize, format, args)
	if l.append(record) && truncated {
		l.stats.truncatedLogs.Add(1)
	}

	// Keep the grown scratch buffer unless one huge line blew it up
	if cap(record) <= 2*l.config.BufferSize {
		*bufPtr = record[:0]
		scratchPool.Put(bufPtr)
	}
}

// Logf is Log with the caller's file and line
func (l *Logger) Logf(level Level, format string, args ...any) {
	if level < Level(l.threshold.Load()) {
		return
	}
	l.Log(level, Caller(1), format, args...)
}

// append copies one complete record into the active buffer, swapping in a
// fresh buffer when it does not fit. Only memory is touched under the lock.
func (l *Logger) append(record []byte) bool {
	l.mu.Lock()
	if l.stopping {
		l.mu.Unlock()
		l.stats.droppedLogs.Add(1)
		return false
	}

	if !l.active.Append(record) {
		l.swapLocked()
		// record is at most MaxLineSize <= BufferSize, so an empty buffer takes it
		l.active.Append(record)
	}
	l.mu.Unlock()

	l.stats.totalLogs.Add(1)
	return true
}

// swapLocked pushes a non-empty active buffer onto the pending queue and
// installs the spare, or a pool buffer when no spare is ready, as the new
// active buffer. The writer is woken. Caller must hold l.mu.
func (l *Logger) swapLocked() {
	if l.active.Len() == 0 {
		return
	}

	l.pending = append(l.pending, l.active)
	l.enqueued++
	l.stats.bufferSwaps.Add(1)

	if l.spare != nil {
		l.active = l.spare
		l.spare = nil
	} else {
		l.active = l.pool.get()
	}

	l.signal()
}

// signal wakes the writer without blocking
func (l *Logger) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Flush pushes the active buffer to the writer and wakes it. It does not
// wait for the write; use Sync for that.
func (l *Logger) Flush() {
	l.flush()
}

// flush returns the enqueue count the writer must reach for everything
// appended so far to be on disk, and false once Close has begun.
func (l *Logger) flush() (uint64, bool) {
	l.mu.Lock()
	if l.stopping {
		l.mu.Unlock()
		return 0, false
	}
	l.swapLocked()
	target := l.enqueued
	l.mu.Unlock()

	l.signal()
	return target, true
}

// Sync flushes and waits until the writer has processed every line appended
// before the call. It returns ctx.Err() if ctx ends first and ErrClosed if the
// logger is closing.
func (l *Logger) Sync(ctx context.Context) error {
	target, ok := l.flush()
	if !ok {
		return ErrClosed
	}
	return l.waitDrained(ctx, target)
}

// waitDrained blocks until the writer published target
func (l *Logger) waitDrained(ctx context.Context, target uint64) error {
	for {
		// Take the cycle channel before checking, so a publish in between
		// is seen either by the check or by the closed channel
		done := l.cycle()
		if l.drained.Load() >= target {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.exited:
			if l.drained.Load() >= target {
				return nil
			}
			return ErrClosed
		case <-done:
		}
	}
}

// cycle returns the channel closed at the end of the current drain cycle
func (l *Logger) cycle() <-chan struct{} {
	l.cycleMu.Lock()
	defer l.cycleMu.Unlock()
	return l.cycleDone
}

// publish records that every buffer up to target was processed and wakes Sync
func (l *Logger) publish(target uint64) {
	l.drained.Store(target)
	l.cycleMu.Lock()
	close(l.cycleDone)
	l.cycleDone = make(chan struct{})
	l.cycleMu.Unlock()
}

// Close stops accepting lines, writes everything already appended, waits for
// the writer to exit and closes the file. Close is idempotent.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		if l.crash != nil {
			l.crash.Stop()
		}

		l.mu.Lock()
		l.stopping = true
		l.swapLocked()
		l.mu.Unlock()

		close(l.stop)
		<-l.exited

		// The writer is gone, so the file writer has no other user now
		l.closeErr = l.fw.close()
	})
	return l.closeErr
}

// writeLoop is the single background writer.
func (l *Logger) writeLoop() {
	defer close(l.exited)
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER PANIC] writeLoop: %v\n", r)
			l.diag.Error("log writer stopped after panic",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			l.abandon()
		}
	}()

	timer := time.NewTimer(l.config.FlushInterval)
	defer timer.Stop()

	var cache recycler
	toWrite := make([]*Buffer, 0, 16)
	vecs := make([][]byte, 0, 16)

	for {
		select {
		case <-l.wake:
		case <-l.stop:
		case <-timer.C:
		}

		var c drainCycle
		toWrite, c = l.collect(&cache, toWrite)

		if len(toWrite) > 0 {
			vecs = l.drain(toWrite, vecs[:0], c.threshold, c.base)
			clear(vecs)
		}

		// Keep two drained buffers for the next refill; the rest go back to the pool
		for _, b := range toWrite {
			if !cache.keep(b) {
				l.pool.put(b)
			}
		}
		done := c.stopping && len(toWrite) == 0
		clear(toWrite)
		toWrite = toWrite[:0]

		l.publish(c.target)

		if done {
			return
		}
		timer.Reset(l.config.FlushInterval)
	}
}

// drainCycle is what the writer snapshots under l.mu at the start of a drain
type drainCycle struct {
	target    uint64
	threshold int64
	base      string
	stopping  bool
}

// collect pushes a non-empty active buffer, refills the active and spare
// slots, and swaps the pending queue with the empty slice spare.
func (l *Logger) collect(cache *recycler, spare []*Buffer) ([]*Buffer, drainCycle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active.Len() > 0 {
		l.pending = append(l.pending, l.active)
		l.enqueued++
		l.stats.bufferSwaps.Add(1)
		l.active = nil
	}
	if l.active == nil {
		l.active = l.refill(cache)
	}
	if l.spare == nil {
		l.spare = l.refill(cache)
	}
	toWrite := l.pending
	l.pending = spare
	return toWrite, drainCycle{
		target:    l.enqueued,
		threshold: l.rotationThreshold,
		base:      l.baseFilename,
		stopping:  l.stopping,
	}
}

// abandon stops accepting lines once the writer is gone, so nothing piles up
// in pending. Queued data is counted as dropped.
func (l *Logger) abandon() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopping = true
	for _, b := range l.pending {
		if b != nil {
			l.stats.droppedBytes.Add(int64(b.Len()))
		}
	}
	clear(l.pending)
	l.pending = l.pending[:0]
}

// refill returns a cached buffer, falling back to the pool
func (l *Logger) refill(cache *recycler) *Buffer {
	if b := cache.take(); b != nil {
		return b
	}
	return l.pool.get()
}

// drain writes bufs in order, flushes the file and rotates it when the
// threshold is exceeded. Failures are counted and reported, never returned.
func (l *Logger) drain(bufs []*Buffer, vecs [][]byte, threshold int64, base string) [][]byte {
	size := 0
	for _, b := range bufs {
		vecs = append(vecs, b.Bytes())
		size += b.Len()
	}

	if !l.fw.isOpen() {
		// One reopen attempt per cycle; there is no retry loop
		if err := l.fw.open(l.fw.path); err != nil {
			l.stats.writeErrors.Add(1)
			l.stats.droppedBytes.Add(int64(size))
			l.diag.Warn("dropping log data, no file open",
				zap.Error(err),
				zap.Int("bytes", size))
			return vecs
		}
	}

	n, err := l.fw.writeBuffers(vecs)
	l.stats.bytesWritten.Add(int64(n))
	l.stats.drainCycles.Add(1)
	if err != nil {
		l.stats.writeErrors.Add(1)
		l.stats.droppedBytes.Add(int64(size - n))
		l.diag.Warn("log write failed",
			zap.Error(err),
			zap.Int("written", n),
			zap.Int("bytes", size))
	}

	if err := l.fw.flush(); err != nil {
		l.stats.writeErrors.Add(1)
		l.diag.Warn("log sync failed", zap.Error(err))
	}

	if l.fw.needsRotation(threshold, base) {
		rotated, err := l.fw.rotate(base)
		if rotated != "" {
			l.stats.rotations.Add(1)
			l.diag.Debug("log file rotated",
				zap.String("base", base),
				zap.String("rotated", rotated))
		}
		if err != nil {
			l.stats.rotationErrors.Add(1)
			l.diag.Warn("log rotation failed",
				zap.Error(err),
				zap.String("base", base))
		}
	}

	return vecs
}
