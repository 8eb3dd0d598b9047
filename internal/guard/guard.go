// Package guard suppresses duplicate and rapid-fire actions.
//
// Every outward action — catalogue command, smart-open, smart-search — is
// keyed by a string and passed through [Guard.Allow] before it fires. Two
// independent checks apply: a per-key deduplication window (the same key
// within 2 s is a duplicate) and a global debounce (any action within
// 500 ms of the previously accepted one is rejected, regardless of key).
// Accepted actions are recorded; records older than the retention window
// are pruned lazily before each check.
package guard

import (
	"sync"
	"time"
)

const (
	// DefaultDedupWindow is how recently the same key must have fired to
	// count as a duplicate.
	DefaultDedupWindow = 2 * time.Second

	// DefaultRetention is how long execution records are kept at all.
	DefaultRetention = 5 * time.Second

	// DefaultDebounce is the minimum spacing between any two accepted
	// actions.
	DefaultDebounce = 500 * time.Millisecond
)

// record is one accepted action.
type record struct {
	key string
	at  time.Time
}

// Config holds the guard windows. Zero fields fall back to the defaults
// above, except Debounce: a negative value disables the global debounce
// entirely.
type Config struct {
	DedupWindow time.Duration
	Retention   time.Duration
	Debounce    time.Duration
}

// Guard is the execution guard. Safe for concurrent use.
type Guard struct {
	dedupWindow time.Duration
	retention   time.Duration
	debounce    time.Duration

	// now is the clock, replaceable in tests.
	now func() time.Time

	mu           sync.Mutex
	records      []record
	lastAccepted time.Time
}

// New creates a Guard from cfg, substituting defaults for zero fields.
func New(cfg Config) *Guard {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Guard{
		dedupWindow: cfg.DedupWindow,
		retention:   cfg.Retention,
		debounce:    cfg.Debounce,
		now:         time.Now,
	}
}

// SetConfig replaces the guard windows with the same zero-field handling
// as [New]. Existing execution records are kept.
func (g *Guard) SetConfig(cfg Config) {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	g.mu.Lock()
	g.dedupWindow = cfg.DedupWindow
	g.retention = cfg.Retention
	g.debounce = cfg.Debounce
	g.mu.Unlock()
}

// Allow reports whether the action identified by key may fire now. On
// acceptance the action is recorded; on rejection no record is added.
func (g *Guard) Allow(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)

	if g.debounce > 0 && !g.lastAccepted.IsZero() && now.Sub(g.lastAccepted) < g.debounce {
		return false
	}
	for _, r := range g.records {
		if r.key == key && now.Sub(r.at) < g.dedupWindow {
			return false
		}
	}

	g.records = append(g.records, record{key: key, at: now})
	g.lastAccepted = now
	return true
}

// Len returns the number of retained execution records after pruning.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.now())
	return len(g.records)
}

// prune drops records older than the retention window. Must be called with
// g.mu held.
func (g *Guard) prune(now time.Time) {
	kept := g.records[:0]
	for _, r := range g.records {
		if now.Sub(r.at) <= g.retention {
			kept = append(kept, r)
		}
	}
	g.records = kept
}
