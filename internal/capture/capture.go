// Package capture provides the microphone boundary: a blocking Source of
// 16 kHz mono float32 chunks consumed by the audio pipeline.
package capture

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Read after the source is closed and drained.
var ErrClosed = errors.New("capture: source closed")

// Source delivers raw audio chunks. Read blocks until a chunk is available,
// the context is cancelled, or the source is closed. Chunk sizes are
// backend-determined and need not align to analysis frames.
type Source interface {
	Read(ctx context.Context) ([]float32, error)
	Close() error
}

// Fake is a scripted Source for tests. Chunks pushed with Push are returned
// from Read in order.
type Fake struct {
	ch chan []float32

	mu     sync.Mutex
	closed bool
}

var _ Source = (*Fake)(nil)

// NewFake creates a Fake with room for the given number of pending chunks.
func NewFake(buffer int) *Fake {
	return &Fake{ch: make(chan []float32, buffer)}
}

// Push queues one chunk. Push after Close panics, as sends on a closed
// channel do.
func (f *Fake) Push(chunk []float32) {
	f.ch <- chunk
}

// Read returns the next queued chunk.
func (f *Fake) Read(ctx context.Context) ([]float32, error) {
	select {
	case chunk, ok := <-f.ch:
		if !ok {
			return nil, ErrClosed
		}
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close ends the stream; pending chunks are still readable.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	return nil
}
