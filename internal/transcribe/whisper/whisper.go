// Package whisper implements the transcription engine on top of the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.
//
// The model is loaded once at construction and shared; each Transcribe call
// creates a fresh whisper context, because contexts are not thread-safe but
// the model is.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/willowvoice/willow/internal/transcribe"
)

const defaultLanguage = "en"

// Compile-time assertion that Engine satisfies transcribe.Engine.
var _ transcribe.Engine = (*Engine)(nil)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLanguage sets the BCP-47 language code for transcription (e.g. "en",
// "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// Engine is a local whisper.cpp transcription engine.
type Engine struct {
	language string

	mu    sync.Mutex
	model whisperlib.Model
}

// New loads the whisper model from modelPath. The caller must Close the
// engine when done. GPU offload is decided by how the whisper.cpp library
// was built; the binding exposes no per-model switch.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &Engine{
		language: defaultLanguage,
		model:    model,
	}
	for _, o := range opts {
		o(e)
	}
	slog.Info("whisper: model loaded", "path", modelPath, "language", e.language)
	return e, nil
}

// Transcribe runs batch inference over one speech segment and returns the
// concatenated segment text. The call blocks for the duration of inference;
// ctx is checked before starting since the binding itself is not
// cancellable mid-inference.
func (e *Engine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	if len(samples) == 0 {
		return "", nil
	}

	e.mu.Lock()
	model := e.model
	e.mu.Unlock()
	if model == nil {
		return "", errors.New("whisper: model not loaded")
	}

	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(e.language); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", e.language, "err", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " "), nil
}

// Loaded reports whether the model is loaded.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model != nil
}

// Close releases the whisper model.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}
