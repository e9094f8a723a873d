package asynclogger

import (
	"sync"
	"sync/atomic"
)

// bufferPool is a free list of idle buffers that grows to the largest backlog
// the writer has had to absorb and never shrinks.
//
// get never blocks: when the free list is empty a new buffer is allocated.
// put always keeps the buffer, so once the pool has grown to cover the peak
// backlog a steady load stops allocating.
type bufferPool struct {
	mu       sync.Mutex
	free     []*Buffer
	capacity int

	// nextID hands out buffer identifiers
	nextID atomic.Uint32

	// allocated counts buffers created by this pool
	allocated *atomic.Int64
}

// newBufferPool allocates preallocate idle buffers up front
func newBufferPool(bufferSize, preallocate int, allocated *atomic.Int64) *bufferPool {
	p := &bufferPool{
		free:      make([]*Buffer, 0, preallocate),
		capacity:  bufferSize,
		allocated: allocated,
	}
	for i := 0; i < preallocate; i++ {
		p.free = append(p.free, p.alloc())
	}
	return p
}

func (p *bufferPool) alloc() *Buffer {
	p.allocated.Add(1)
	return NewBuffer(p.capacity, p.nextID.Add(1))
}

// get returns an idle buffer or a freshly allocated one
func (p *bufferPool) get() *Buffer {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return b
	}
	p.mu.Unlock()
	return p.alloc()
}

// put resets b and keeps it for reuse
func (p *bufferPool) put(b *Buffer) {
	if b == nil {
		return
	}
	b.Reset()
	p.mu.Lock()
	p.free = append(p.free, b)
	p.mu.Unlock()
}

// idle returns the number of buffers waiting in the free list
func (p *bufferPool) idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// recycler is the writer's two-slot local cache. Drained buffers land here
// first so that refilling the active and spare slots rarely touches the pool.
type recycler struct {
	slots [2]*Buffer
}

// take returns a cached buffer, or nil when both slots are empty
func (r *recycler) take() *Buffer {
	for i, b := range r.slots {
		if b != nil {
			r.slots[i] = nil
			return b
		}
	}
	return nil
}

// keep stores b in an empty slot and reports whether it did
func (r *recycler) keep(b *Buffer) bool {
	for i := range r.slots {
		if r.slots[i] == nil {
			b.Reset()
			r.slots[i] = b
			return true
		}
	}
	return false
}
