package event

import "testing"

func TestBus_FanOut(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Emit(ModeChanged, map[string]any{"mode": "command"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != ModeChanged {
				t.Errorf("subscriber %d: type = %q, want %q", i, ev.Type, ModeChanged)
			}
			if ev.Data["mode"] != "command" {
				t.Errorf("subscriber %d: data = %v", i, ev.Data)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, cancel := b.Subscribe()
	defer cancel()

	// Publish past the channel capacity; must not block.
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Emit(BufferChanged, nil)
	}
	if n := len(ch); n != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", n, subscriberBuffer)
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	b := NewBus()
	ch, cancel := b.Subscribe()
	cancel()
	cancel() // idempotent

	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	b.Emit(Error, map[string]any{"message": "x"})
}
