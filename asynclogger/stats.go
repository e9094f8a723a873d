package asynclogger

import "sync/atomic"

// statistics holds operational counters. Producers only touch them after
// passing the level filter; the writer updates the rest.
type statistics struct {
	totalLogs        atomic.Int64 // Lines accepted past the level filter
	droppedLogs      atomic.Int64 // Lines dropped because the logger was closing
	truncatedLogs    atomic.Int64 // Lines cut to MaxLineSize
	bytesWritten     atomic.Int64 // Bytes handed to the file
	droppedBytes     atomic.Int64 // Bytes lost because no file could be opened or written
	drainCycles      atomic.Int64 // Writer cycles that wrote at least one buffer
	writeErrors      atomic.Int64 // Failed write or sync calls
	rotations        atomic.Int64 // Completed rotations
	rotationErrors   atomic.Int64 // Rotations with a failed rename or reopen
	bufferSwaps      atomic.Int64 // Active buffers pushed to the pending queue
	buffersAllocated atomic.Int64 // Buffers created (startup and pool growth)
}

// Stats is a point-in-time snapshot of the logger counters
type Stats struct {
	TotalLogs        int64
	DroppedLogs      int64
	TruncatedLogs    int64
	BytesWritten     int64
	DroppedBytes     int64
	DrainCycles      int64
	WriteErrors      int64
	Rotations        int64
	RotationErrors   int64
	BufferSwaps      int64
	BuffersAllocated int64

	// PendingBuffers is the pending queue length when the snapshot was taken
	PendingBuffers int
}

// Stats returns current statistics values
func (l *Logger) Stats() Stats {
	l.mu.Lock()
	pending := len(l.pending)
	l.mu.Unlock()

	return Stats{
		TotalLogs:        l.stats.totalLogs.Load(),
		DroppedLogs:      l.stats.droppedLogs.Load(),
		TruncatedLogs:    l.stats.truncatedLogs.Load(),
		BytesWritten:     l.stats.bytesWritten.Load(),
		DroppedBytes:     l.stats.droppedBytes.Load(),
		DrainCycles:      l.stats.drainCycles.Load(),
		WriteErrors:      l.stats.writeErrors.Load(),
		Rotations:        l.stats.rotations.Load(),
		RotationErrors:   l.stats.rotationErrors.Load(),
		BufferSwaps:      l.stats.bufferSwaps.Load(),
		BuffersAllocated: l.stats.buffersAllocated.Load(),
		PendingBuffers:   pending,
	}
}
