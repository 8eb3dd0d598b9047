package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestFake_ReadReturnsPushedChunks(t *testing.T) {
	t.Parallel()

	f := NewFake(4)
	f.Push([]float32{0.1, 0.2})
	f.Push([]float32{0.3})

	ctx := context.Background()
	chunk, err := f.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(chunk) != 2 || chunk[0] != 0.1 {
		t.Errorf("chunk = %v", chunk)
	}
	if chunk, _ = f.Read(ctx); len(chunk) != 1 {
		t.Errorf("second chunk = %v", chunk)
	}
}

func TestFake_ReadHonorsContext(t *testing.T) {
	t.Parallel()

	f := NewFake(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := f.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestFake_CloseDrainsThenErrClosed(t *testing.T) {
	t.Parallel()

	f := NewFake(2)
	f.Push([]float32{1})
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	ctx := context.Background()
	if chunk, err := f.Read(ctx); err != nil || len(chunk) != 1 {
		t.Fatalf("Read = %v, %v, want pending chunk", chunk, err)
	}
	if _, err := f.Read(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestDecodeS16(t *testing.T) {
	t.Parallel()

	data := make([]byte, 6)
	binary.LittleEndian.PutUint16(data[0:], uint16(int16(0)))
	binary.LittleEndian.PutUint16(data[2:], uint16(int16(16384)))
	negMax := int16(-32768)
	binary.LittleEndian.PutUint16(data[4:], uint16(negMax))

	out := decodeS16(data, 3)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out[0] != 0 {
		t.Errorf("out[0] = %v, want 0", out[0])
	}
	if out[1] != 0.5 {
		t.Errorf("out[1] = %v, want 0.5", out[1])
	}
	if out[2] != -1 {
		t.Errorf("out[2] = %v, want -1", out[2])
	}

	// frameCount beyond the byte slice must not read out of range.
	if got := decodeS16(data, 10); len(got) != 3 {
		t.Errorf("clamped len = %d, want 3", len(got))
	}
}
