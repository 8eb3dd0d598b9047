package guard

import (
	"testing"
	"time"
)

// fakeClock lets tests advance time manually.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGuard(cfg Config) (*Guard, *fakeClock) {
	g := New(cfg)
	clk := &fakeClock{t: time.Unix(1000, 0)}
	g.now = clk.now
	return g, clk
}

func TestAllow_DuplicateWithinWindowSuppressed(t *testing.T) {
	t.Parallel()

	g, clk := newTestGuard(Config{Debounce: -1})

	if !g.Allow("volume_up") {
		t.Fatal("first action rejected")
	}
	clk.advance(1 * time.Second)
	if g.Allow("volume_up") {
		t.Error("duplicate within 2s window accepted")
	}
	if g.Len() != 1 {
		t.Errorf("records = %d, want 1 (rejection must not record)", g.Len())
	}
}

func TestAllow_SameKeyAfterWindowAccepted(t *testing.T) {
	t.Parallel()

	g, clk := newTestGuard(Config{Debounce: -1})

	if !g.Allow("volume_up") {
		t.Fatal("first action rejected")
	}
	clk.advance(3 * time.Second)
	if !g.Allow("volume_up") {
		t.Error("same key after dedup window rejected")
	}

	// After a further 5+ seconds of inactivity both records are pruned.
	clk.advance(6 * time.Second)
	if g.Len() != 0 {
		t.Errorf("records = %d after retention window, want 0", g.Len())
	}
}

func TestAllow_DistinctKeysIndependent(t *testing.T) {
	t.Parallel()

	g, _ := newTestGuard(Config{Debounce: -1})

	if !g.Allow("volume_up") {
		t.Fatal("first action rejected")
	}
	if !g.Allow("volume_down") {
		t.Error("distinct key rejected by dedup")
	}
}

func TestAllow_GlobalDebounce(t *testing.T) {
	t.Parallel()

	g, clk := newTestGuard(Config{})

	if !g.Allow("a") {
		t.Fatal("first action rejected")
	}
	clk.advance(200 * time.Millisecond)
	if g.Allow("b") {
		t.Error("action within 500ms debounce accepted")
	}
	clk.advance(400 * time.Millisecond)
	if !g.Allow("b") {
		t.Error("action after debounce rejected")
	}
}

func TestAllow_DebounceDisabled(t *testing.T) {
	t.Parallel()

	g, clk := newTestGuard(Config{Debounce: -1})

	if !g.Allow("a") {
		t.Fatal("first action rejected")
	}
	clk.advance(10 * time.Millisecond)
	if !g.Allow("b") {
		t.Error("distinct key rejected with debounce disabled")
	}
}

func TestAllow_RejectionDoesNotResetDebounce(t *testing.T) {
	t.Parallel()

	g, clk := newTestGuard(Config{})

	if !g.Allow("a") {
		t.Fatal("first action rejected")
	}
	clk.advance(300 * time.Millisecond)
	if g.Allow("b") {
		t.Fatal("debounced action accepted")
	}
	clk.advance(300 * time.Millisecond)
	// 600ms since the last *accepted* action; the rejected attempt at
	// 300ms must not have pushed the debounce forward.
	if !g.Allow("b") {
		t.Error("action 600ms after last accepted rejected")
	}
}
