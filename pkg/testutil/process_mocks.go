package testutil

import (
	"bytes"
	"sync"
)

// RecordingHandler is an interfaces.DataHandler that keeps every chunk it
// receives.
type RecordingHandler struct {
	mu     sync.Mutex
	chunks [][]byte
}

// NewRecordingHandler creates an empty recorder
func NewRecordingHandler() *RecordingHandler {
	return &RecordingHandler{}
}

// HandleData implements interfaces.DataHandler. The chunk is copied because
// callers reuse their buffers.
func (r *RecordingHandler) HandleData(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, bytes.Clone(data))
}

// Calls returns how many chunks were received
func (r *RecordingHandler) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// Data returns every chunk joined together
func (r *RecordingHandler) Data() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Join(r.chunks, nil)
}
