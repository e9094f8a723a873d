package asynclogger

// Buffer is a fixed-capacity byte buffer with an append cursor.
//
// A Buffer is not safe for concurrent use. It always has exactly one owner:
// the dispatcher while it is being filled, the pending queue while it waits
// for the writer, the writer while it is drained, or the pool while idle.
// Ownership is handed over by moving the pointer and clearing the old slot.
type Buffer struct {
	// data is the pre-allocated storage, len(data) == capacity
	data []byte

	// cur is the write position; cur <= len(data) always
	cur int

	// id is the buffer identifier for tracking and debugging
	id uint32
}

// NewBuffer creates a new buffer with the given capacity and ID
func NewBuffer(capacity int, id uint32) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{
		data: make([]byte, capacity),
		id:   id,
	}
}

// Append copies all of p into the buffer and advances the cursor.
// If p does not fit in the remaining space nothing is written and false is
// returned; the caller decides what to do (normally swap buffers).
func (b *Buffer) Append(p []byte) bool {
	if len(p) > b.Avail() {
		return false
	}
	b.cur += copy(b.data[b.cur:], p)
	return true
}

// Avail returns the number of bytes that can still be appended
func (b *Buffer) Avail() int {
	return len(b.data) - b.cur
}

// Len returns the number of bytes written so far
func (b *Buffer) Len() int {
	return b.cur
}

// Capacity returns the buffer capacity
func (b *Buffer) Capacity() int {
	return len(b.data)
}

// Bytes returns the written portion of the buffer.
// The slice aliases the buffer storage and is only valid until Reset.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.cur]
}

// Reset rewinds the cursor; the storage is not zeroed
func (b *Buffer) Reset() {
	b.cur = 0
}

// ID returns the buffer identifier
func (b *Buffer) ID() uint32 {
	return b.id
}
