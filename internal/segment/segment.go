// Package segment turns a continuous stream of audio samples into discrete
// speech segments using energy-based voice activity detection.
//
// The Segmenter consumes arbitrarily sized chunks of 16 kHz mono float32
// samples, slices them into fixed 20 ms frames, and drives a two-state
// machine (silence / speaking). When a voiced frame arrives in silence a new
// segment is opened; while speaking every frame is appended — including
// silent ones, so the transcription engine sees natural pause context — and
// once enough consecutive silent frames accumulate the segment is closed and
// handed to the segment callback, provided the voiced portion was long
// enough to plausibly contain speech.
//
// All per-frame state is owned by the single goroutine calling Process.
// Detection parameters may be swapped concurrently via SetParams (the mode
// dispatcher changes them whenever the assistant switches modes); a swap
// takes effect on the next frame and never affects a segment already in
// progress.
package segment

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// SampleRate is the fixed capture rate expected by the whisper models.
	SampleRate = 16000

	// FramesPerSecond is the VAD frame rate (20 ms frames).
	FramesPerSecond = 50

	// FrameSize is the number of samples per VAD frame.
	FrameSize = SampleRate / FramesPerSecond
)

// Params are the tunable detection thresholds. The zero value is not usable;
// callers should start from one of the profile constructors in this package
// or from the configuration defaults.
type Params struct {
	// EnergyThreshold is the mean-squared-amplitude level above which a
	// frame counts as voiced.
	EnergyThreshold float64

	// SilenceDuration is how much trailing silence closes a segment.
	SilenceDuration time.Duration

	// MinSpeechDuration is the minimum voiced duration a segment must
	// contain to be emitted; shorter segments are dropped silently.
	MinSpeechDuration time.Duration
}

// state is the two-state VAD machine.
type state int

const (
	stateSilence state = iota
	stateSpeaking
)

// Segmenter accumulates speech segments from a frame stream.
//
// Process and Reset must be called from a single goroutine (the audio
// capture loop). SetParams and Speaking are safe to call from any goroutine.
type Segmenter struct {
	onSegment func(samples []float32)

	paramsMu sync.Mutex
	params   Params

	// Frame-loop state, owned by the Process caller.
	carry         []float32
	st            state
	buf           []float32
	silenceFrames int
	speechFrames  int

	speakingMu sync.Mutex
	speaking   bool
}

// New creates a Segmenter that invokes onSegment with each completed speech
// segment. The callback runs synchronously on the Process caller's
// goroutine; the sample slice is handed off and never touched again by the
// Segmenter.
func New(params Params, onSegment func(samples []float32)) *Segmenter {
	return &Segmenter{
		onSegment: onSegment,
		params:    params,
	}
}

// SetParams replaces the detection parameters. The swap takes effect on the
// next frame; a segment in progress keeps accumulating under the new
// thresholds but is never retroactively re-evaluated.
func (s *Segmenter) SetParams(p Params) {
	s.paramsMu.Lock()
	s.params = p
	s.paramsMu.Unlock()
}

// Speaking reports whether a segment is currently being accumulated.
func (s *Segmenter) Speaking() bool {
	s.speakingMu.Lock()
	defer s.speakingMu.Unlock()
	return s.speaking
}

// Process consumes a chunk of samples. Chunks need not be frame-aligned;
// a remainder shorter than one frame is carried over to the next call.
func (s *Segmenter) Process(samples []float32) {
	if len(s.carry) > 0 {
		samples = append(s.carry, samples...)
		s.carry = nil
	}

	i := 0
	for ; i+FrameSize <= len(samples); i += FrameSize {
		s.processFrame(samples[i : i+FrameSize])
	}
	if i < len(samples) {
		s.carry = append(s.carry, samples[i:]...)
	}
}

// Reset discards any segment in progress and returns to the silence state.
// Called when the pipeline stops or restarts; a partial segment is dropped,
// not flushed.
func (s *Segmenter) Reset() {
	s.carry = nil
	s.buf = nil
	s.silenceFrames = 0
	s.speechFrames = 0
	s.st = stateSilence
	s.setSpeaking(false)
}

func (s *Segmenter) processFrame(frame []float32) {
	s.paramsMu.Lock()
	p := s.params
	s.paramsMu.Unlock()

	voiced := energy(frame) > p.EnergyThreshold

	switch s.st {
	case stateSilence:
		if !voiced {
			return
		}
		s.st = stateSpeaking
		s.setSpeaking(true)
		s.buf = append(s.buf[:0], frame...)
		s.silenceFrames = 0
		s.speechFrames = 1
		slog.Debug("segmenter: speech started")

	case stateSpeaking:
		// Always append, so the segment keeps its trailing silence.
		s.buf = append(s.buf, frame...)
		if voiced {
			s.silenceFrames = 0
			s.speechFrames++
			return
		}
		s.silenceFrames++

		silenceThreshold := int(p.SilenceDuration.Seconds() * FramesPerSecond)
		if s.silenceFrames < silenceThreshold {
			return
		}
		s.closeSegment(p)
	}
}

// closeSegment ends the current segment, emitting it when the voiced portion
// meets the minimum speech duration.
func (s *Segmenter) closeSegment(p Params) {
	speechDur := time.Duration(s.speechFrames) * time.Second / FramesPerSecond
	if speechDur >= p.MinSpeechDuration {
		slog.Debug("segmenter: speech ended", "speech_duration", speechDur, "samples", len(s.buf))
		seg := make([]float32, len(s.buf))
		copy(seg, s.buf)
		s.onSegment(seg)
	} else {
		slog.Debug("segmenter: speech too short, dropped", "speech_duration", speechDur)
	}

	s.buf = s.buf[:0]
	s.silenceFrames = 0
	s.speechFrames = 0
	s.st = stateSilence
	s.setSpeaking(false)
}

func (s *Segmenter) setSpeaking(v bool) {
	s.speakingMu.Lock()
	s.speaking = v
	s.speakingMu.Unlock()
}

// energy returns the mean squared amplitude of a frame.
func energy(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, sample := range frame {
		sum += float64(sample) * float64(sample)
	}
	return sum / float64(len(frame))
}
