// Package openai implements the transcription engine against the hosted
// OpenAI Whisper API. It is the fallback for machines without a local
// whisper.cpp build; select it with `speech.engine: openai`.
package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/willowvoice/willow/internal/segment"
	"github.com/willowvoice/willow/internal/transcribe"
)

const defaultModel = "whisper-1"

// Compile-time assertion that Engine satisfies transcribe.Engine.
var _ transcribe.Engine = (*Engine)(nil)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithModel overrides the transcription model. Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(e *Engine) {
		if model != "" {
			e.model = model
		}
	}
}

// WithTimeout sets a per-request HTTP timeout. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// Engine transcribes segments via the OpenAI audio transcription endpoint.
type Engine struct {
	client  oai.Client
	model   string
	timeout time.Duration
}

// New constructs an Engine. apiKey must not be empty.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	e := &Engine{
		model:   defaultModel,
		timeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(e)
	}
	e.client = oai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: e.timeout}),
	)
	return e, nil
}

// Transcribe uploads the segment as a 16-bit WAV file and returns the
// transcription text.
func (e *Engine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	wav := encodeWAV(samples, segment.SampleRate)
	res, err := e.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		Model: oai.AudioModel(e.model),
		File:  oai.File(bytes.NewReader(wav), "segment.wav", "audio/wav"),
	})
	if err != nil {
		return "", fmt.Errorf("openai: transcribe: %w", err)
	}
	return res.Text, nil
}

// Loaded reports readiness; the hosted engine has nothing to load.
func (e *Engine) Loaded() bool { return true }

// Close is a no-op for the hosted engine.
func (e *Engine) Close() error { return nil }

// encodeWAV wraps float32 samples in a minimal 16-bit PCM mono WAV
// container.
func encodeWAV(samples []float32, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataLen))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	for _, s := range samples {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		binary.Write(buf, binary.LittleEndian, int16(s*32767))
	}
	return buf.Bytes()
}
