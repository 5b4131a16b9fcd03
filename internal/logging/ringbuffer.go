package logging

import (
	"os"
	"sync"
)

// RingBuffer keeps the last N bytes written to it. Safe for concurrent use.
type RingBuffer struct {
	mu    sync.Mutex
	data  []byte
	start int // index of the oldest byte
	n     int // bytes currently held
}

// NewRingBuffer creates a ring buffer holding at most size bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 4 * 1024 * 1024
	}
	return &RingBuffer{data: make([]byte, size)}
}

// Write implements io.Writer. Old bytes are overwritten once the buffer is full.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := len(p)
	capacity := len(rb.data)
	if len(p) >= capacity {
		copy(rb.data, p[len(p)-capacity:])
		rb.start = 0
		rb.n = capacity
		return written, nil
	}

	end := (rb.start + rb.n) % capacity
	for len(p) > 0 {
		c := copy(rb.data[end:], p)
		p = p[c:]
		end = (end + c) % capacity
		rb.n += c
	}
	if rb.n > capacity {
		rb.start = (rb.start + rb.n - capacity) % capacity
		rb.n = capacity
	}
	return written, nil
}

// Bytes returns the held bytes, oldest first.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	out := make([]byte, rb.n)
	first := copy(out, rb.data[rb.start:min(rb.start+rb.n, len(rb.data))])
	copy(out[first:], rb.data[:rb.n-first])
	return out
}

// DumpToFile writes the held bytes to path.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o600)
}
