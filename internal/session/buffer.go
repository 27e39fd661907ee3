package session

import "sync"

// ChunkBuffer accumulates raw audio chunks while a capture is in progress.
// It is written to by the device stream goroutine and drained on finalize.
type ChunkBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{}
}

// Write stores a copy of p as one chunk.
func (b *ChunkBuffer) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)

	b.mu.Lock()
	b.chunks = append(b.chunks, chunk)
	b.size += len(chunk)
	b.mu.Unlock()

	return len(p), nil
}

// Flush returns the concatenation of all buffered chunks and resets the
// buffer. Returns nil if the buffer is empty.
func (b *ChunkBuffer) Flush() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		b.chunks = nil
		return nil
	}

	out := make([]byte, 0, b.size)
	for _, chunk := range b.chunks {
		out = append(out, chunk...)
	}
	b.chunks = nil
	b.size = 0
	return out
}

// Len returns the total number of buffered bytes.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Reset discards any buffered chunks.
func (b *ChunkBuffer) Reset() {
	b.mu.Lock()
	b.chunks = nil
	b.size = 0
	b.mu.Unlock()
}
