package asynclogger

// bufferState is what the dispatcher holds at one instant
type bufferState struct {
	activeLen int
	hasSpare  bool
	pending   int
}

func (l *Logger) snapshot() bufferState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return bufferState{
		activeLen: l.active.Len(),
		hasSpare:  l.spare != nil,
		pending:   len(l.pending),
	}
}
