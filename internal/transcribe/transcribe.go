// Package transcribe defines the speech-to-text engine boundary and the
// text normalization applied to every raw transcription before dispatch.
//
// The engine itself is a black box behind the [Engine] interface; concrete
// implementations live in the whisper (local whisper.cpp), openai (hosted
// Whisper API), and mock subpackages. [Breaker] wraps any Engine with a
// circuit breaker so a repeatedly failing backend is skipped until its
// reset timeout elapses instead of stalling the audio loop on every
// segment.
package transcribe

import (
	"context"
	"regexp"
	"strings"
)

// Engine converts one complete speech segment to text. Implementations are
// called once per segment — no partial or streaming decoding — and may
// block for the duration of inference. An empty string with a nil error
// means the engine heard nothing usable.
type Engine interface {
	// Transcribe decodes 16 kHz mono float32 samples.
	Transcribe(ctx context.Context, samples []float32) (string, error)

	// Loaded reports whether the engine is ready to transcribe.
	Loaded() bool

	// Close releases engine resources.
	Close() error
}

// annotationRe matches bracketed, braced, and parenthesized non-speech
// markers such as "[MUSIC]", "[BLANK_AUDIO]", or "(coughs)".
var annotationRe = regexp.MustCompile(`\[[^\]]*\]|\{[^\}]*\}|\([^\)]*\)`)

// punctRe matches the punctuation whisper tends to add.
var punctRe = regexp.MustCompile(`[.,!?;:]`)

// spaceRe collapses whitespace runs.
var spaceRe = regexp.MustCompile(`\s+`)

// Clean normalizes raw engine output for matching: annotations and
// punctuation are stripped, whitespace runs collapse to single spaces,
// edges are trimmed, and the result is lowercased. An empty result is
// treated by callers exactly like an engine failure — nothing is
// dispatched.
func Clean(text string) string {
	text = annotationRe.ReplaceAllString(text, "")
	text = punctRe.ReplaceAllString(text, "")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}
