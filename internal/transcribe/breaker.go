package transcribe

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Transcribe] while the breaker is
// open and the reset timeout has not yet elapsed.
var ErrBreakerOpen = errors.New("transcription breaker is open")

// BreakerConfig tunes a [Breaker]. Zero fields use the defaults.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive engine failures before the
	// breaker opens. Default: 3.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before allowing a
	// probe call. Default: 30s.
	ResetTimeout time.Duration

	// CallTimeout bounds a single Transcribe call. Zero preserves the
	// engine's own blocking semantics.
	CallTimeout time.Duration
}

// Breaker wraps an [Engine] with a two-state circuit breaker. While open,
// segments are dropped immediately with [ErrBreakerOpen] — the pipeline
// keeps running and degrades to doing nothing audible until the engine
// recovers. Safe for concurrent use.
type Breaker struct {
	engine       Engine
	maxFailures  int
	resetTimeout time.Duration
	callTimeout  time.Duration

	mu              sync.Mutex
	consecutiveFail int
	openedAt        time.Time
}

// NewBreaker wraps engine with cfg, substituting defaults for zero fields.
func NewBreaker(engine Engine, cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{
		engine:       engine,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		callTimeout:  cfg.CallTimeout,
	}
}

// Transcribe forwards to the wrapped engine unless the breaker is open.
func (b *Breaker) Transcribe(ctx context.Context, samples []float32) (string, error) {
	b.mu.Lock()
	if b.consecutiveFail >= b.maxFailures {
		if time.Since(b.openedAt) < b.resetTimeout {
			b.mu.Unlock()
			return "", ErrBreakerOpen
		}
		// Reset timeout elapsed: let one probe call through.
		slog.Info("transcribe: breaker allowing probe call")
	}
	b.mu.Unlock()

	if b.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
	}

	text, err := b.engine.Transcribe(ctx, samples)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.consecutiveFail++
		if b.consecutiveFail == b.maxFailures {
			b.openedAt = time.Now()
			slog.Warn("transcribe: breaker opened",
				"consecutive_failures", b.consecutiveFail,
				"reset_timeout", b.resetTimeout)
		} else if b.consecutiveFail > b.maxFailures {
			// Failed probe: stay open for another reset window.
			b.openedAt = time.Now()
		}
		return "", err
	}
	b.consecutiveFail = 0
	return text, nil
}

// Loaded reports the wrapped engine's readiness.
func (b *Breaker) Loaded() bool { return b.engine.Loaded() }

// Close closes the wrapped engine.
func (b *Breaker) Close() error { return b.engine.Close() }

var _ Engine = (*Breaker)(nil)
