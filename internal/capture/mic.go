package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/willowvoice/willow/internal/segment"
)

// chunkQueue bounds how many device callbacks may be pending before chunks
// are dropped. At the device's callback cadence this is several seconds of
// slack.
const chunkQueue = 256

// Mic captures from the default system microphone through miniaudio. The
// device delivers signed 16-bit mono PCM at the pipeline sample rate; Read
// returns it converted to float32 in [-1, 1].
type Mic struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	chunks chan []float32

	mu     sync.Mutex
	closed bool
}

var _ Source = (*Mic)(nil)

// NewMic initializes the capture backend and starts the default device.
func NewMic() (*Mic, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: init context: %w", err)
	}

	m := &Mic{
		ctx:    mctx,
		chunks: make(chan []float32, chunkQueue),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = segment.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			m.push(decodeS16(data, frameCount))
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("capture: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("capture: start device: %w", err)
	}

	m.device = device
	slog.Info("capture: microphone started",
		"sample_rate", segment.SampleRate, "format", "s16")
	return m, nil
}

// push hands a chunk to the reader without blocking the audio thread.
func (m *Mic) push(chunk []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.chunks <- chunk:
	default:
		slog.Warn("capture: dropping chunk, reader too slow", "samples", len(chunk))
	}
}

// Read blocks for the next captured chunk.
func (m *Mic) Read(ctx context.Context) ([]float32, error) {
	select {
	case chunk, ok := <-m.chunks:
		if !ok {
			return nil, ErrClosed
		}
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the device and releases the backend.
func (m *Mic) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.device.Uninit()
	m.ctx.Uninit()
	m.ctx.Free()

	m.mu.Lock()
	close(m.chunks)
	m.mu.Unlock()
	return nil
}

// decodeS16 converts little-endian signed 16-bit PCM to float32.
func decodeS16(data []byte, frameCount uint32) []float32 {
	n := int(frameCount)
	if max := len(data) / 2; n > max {
		n = max
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(s) / 32768
	}
	return out
}
