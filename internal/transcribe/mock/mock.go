// Package mock provides a scripted transcription engine for tests.
package mock

import (
	"context"
	"sync"

	"github.com/willowvoice/willow/internal/transcribe"
)

// Compile-time assertion that Engine satisfies transcribe.Engine.
var _ transcribe.Engine = (*Engine)(nil)

// Engine returns scripted results in order, then repeats the last one.
// Safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	results []Result
	idx     int
	calls   int
	loaded  bool
	closed  bool
}

// Result is one scripted Transcribe outcome.
type Result struct {
	Text string
	Err  error
}

// New creates an Engine that plays back results in order. With no results
// every call returns "".
func New(results ...Result) *Engine {
	return &Engine{results: results, loaded: true}
}

// Transcribe returns the next scripted result.
func (e *Engine) Transcribe(_ context.Context, _ []float32) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if len(e.results) == 0 {
		return "", nil
	}
	r := e.results[e.idx]
	if e.idx < len(e.results)-1 {
		e.idx++
	}
	return r.Text, r.Err
}

// Calls returns how many times Transcribe was invoked.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// SetLoaded overrides the Loaded flag.
func (e *Engine) SetLoaded(v bool) {
	e.mu.Lock()
	e.loaded = v
	e.mu.Unlock()
}

// Loaded reports the scripted readiness flag (true by default).
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Close marks the engine closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.loaded = false
	return nil
}
