// Package app wires all Willow subsystems into a running assistant.
//
// The App struct owns the full lifecycle: New creates and connects the
// pipeline pieces, Start spins up the capture loop, Stop tears it down,
// and the config methods apply edits coming from the control surface or
// the file watcher.
//
// For testing, inject doubles via functional options (WithSource,
// WithEngineFactory, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/willowvoice/willow/internal/actuate"
	"github.com/willowvoice/willow/internal/capture"
	"github.com/willowvoice/willow/internal/config"
	"github.com/willowvoice/willow/internal/dispatch"
	"github.com/willowvoice/willow/internal/event"
	"github.com/willowvoice/willow/internal/guard"
	"github.com/willowvoice/willow/internal/intent"
	"github.com/willowvoice/willow/internal/match"
	"github.com/willowvoice/willow/internal/observe"
	"github.com/willowvoice/willow/internal/segment"
	"github.com/willowvoice/willow/internal/transcribe"
)

// SourceFactory opens a capture source each time the pipeline starts.
type SourceFactory func() (capture.Source, error)

// EngineFactory builds a speech-to-text engine from the speech config.
type EngineFactory func(config.SpeechConfig) (transcribe.Engine, error)

// Status is the snapshot the control surface reports.
type Status struct {
	Running      bool   `json:"running"`
	Mode         string `json:"mode"`
	Buffer       string `json:"buffer"`
	CommandCount int    `json:"command_count"`
	EngineLoaded bool   `json:"engine_loaded"`
}

// App owns the audio pipeline and its configuration.
type App struct {
	configPath string
	bus        *event.Bus
	metrics    *observe.Metrics
	logLevel   *slog.LevelVar

	newSource SourceFactory
	newEngine EngineFactory
	runner    actuate.Runner
	typist    actuate.Typist
	keys      actuate.Keys

	guard      *guard.Guard
	segmenter  *segment.Segmenter
	dispatcher *dispatch.Dispatcher

	mu          sync.Mutex
	cfg         *config.Config
	engine      transcribe.Engine
	source      capture.Source
	running     bool
	cancel      context.CancelFunc
	group       *errgroup.Group
	lastSegment time.Time
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects a capture source factory instead of the microphone.
func WithSource(f SourceFactory) Option {
	return func(a *App) { a.newSource = f }
}

// WithEngineFactory injects a speech engine factory.
func WithEngineFactory(f EngineFactory) Option {
	return func(a *App) { a.newEngine = f }
}

// WithRunner injects a command runner instead of systemd-run.
func WithRunner(r actuate.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithTypist injects a typing actuator instead of ydotool.
func WithTypist(t actuate.Typist) Option {
	return func(a *App) { a.typist = t }
}

// WithKeys injects a key presser instead of the uinput one.
func WithKeys(k actuate.Keys) Option {
	return func(a *App) { a.keys = k }
}

// WithMetrics injects a metrics instance instead of the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel hands the app the level var so log_level edits take effect
// at runtime.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// New wires the pipeline from cfg. configPath is where config edits are
// persisted; empty disables persistence. The engine is built immediately
// so startup fails fast on an unloadable model.
func New(cfg *config.Config, configPath string, bus *event.Bus, opts ...Option) (*App, error) {
	a := &App{
		configPath: configPath,
		bus:        bus,
		cfg:        cfg,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.newSource == nil {
		a.newSource = func() (capture.Source, error) { return capture.NewMic() }
	}
	if a.runner == nil {
		a.runner = actuate.NewScopeRunner()
	}
	if a.typist == nil {
		a.typist = actuate.NewYdoTypist()
	}
	if a.keys == nil {
		a.keys = actuate.NewKeyPresser()
	}
	if a.newEngine == nil {
		return nil, errors.New("app: an engine factory is required")
	}

	engine, err := a.buildEngine(cfg.Speech)
	if err != nil {
		return nil, err
	}
	a.engine = engine

	a.guard = guard.New(guardConfig(cfg))

	a.dispatcher = dispatch.New(dispatch.Deps{
		Matcher:   matcherFrom(cfg),
		Extractor: extractorFrom(cfg),
		Guard:     a.guard,
		Runner:    a.runner,
		Typist:    a.typist,
		Keys:      a.keys,
		Bus:       bus,
		Stats:     a.metrics,
		OnMode:    a.applyVADProfile,
	}, settingsFrom(cfg))

	a.segmenter = segment.New(paramsFrom(cfg.VAD.Normal), a.handleSegment)

	return a, nil
}

// ─── Lifecycle ───────────────────────────────────────────────────────────────

// Start opens the capture source and runs the audio loop until Stop or a
// fatal capture error. Starting a running app is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	source, err := a.newSource()
	if err != nil {
		return fmt.Errorf("app: open capture source: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	a.source = source
	a.cancel = cancel
	a.group = g
	a.running = true

	g.Go(func() error { return a.captureLoop(gctx, source) })

	// Watch for a fatal loop exit so the status flips without Stop.
	go a.reap(g)

	slog.Info("app: pipeline started")
	a.emitStatus()
	return nil
}

// captureLoop pulls chunks from the source into the segmenter. A read
// error other than cancellation is fatal to the loop; the control surface
// must restart capture explicitly.
func (a *App) captureLoop(ctx context.Context, source capture.Source) error {
	for {
		chunk, err := source.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, capture.ErrClosed) {
				return nil
			}
			slog.Error("app: capture read failed", "err", err)
			a.bus.Emit(event.Error, map[string]any{
				"message": "capture: " + err.Error(),
			})
			return fmt.Errorf("app: capture read: %w", err)
		}
		a.segmenter.Process(chunk)
	}
}

// reap waits for the capture group and marks the pipeline stopped when it
// exits on its own.
func (a *App) reap(g *errgroup.Group) {
	err := g.Wait()

	a.mu.Lock()
	if a.group != g {
		// A Stop/Start cycle already superseded this run.
		a.mu.Unlock()
		return
	}
	wasRunning := a.running
	a.running = false
	source := a.source
	a.source = nil
	a.mu.Unlock()

	if source != nil {
		source.Close()
	}
	a.segmenter.Reset()

	if wasRunning {
		if err != nil {
			slog.Error("app: pipeline exited", "err", err)
		}
		a.emitStatus()
	}
}

// Stop cancels the capture loop and discards any in-progress segment.
// Stopping a stopped app is a no-op.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	g := a.group
	source := a.source
	a.running = false
	a.group = nil
	a.source = nil
	a.mu.Unlock()

	cancel()
	if source != nil {
		source.Close()
	}
	g.Wait()
	a.segmenter.Reset()

	slog.Info("app: pipeline stopped")
	a.emitStatus()
}

// Restart stops and starts the pipeline.
func (a *App) Restart() error {
	a.Stop()
	return a.Start()
}

// Close releases the engine. Call after Stop.
func (a *App) Close() error {
	a.mu.Lock()
	engine := a.engine
	a.engine = nil
	a.mu.Unlock()
	if engine == nil {
		return nil
	}
	return engine.Close()
}

// ─── Pipeline ────────────────────────────────────────────────────────────────

// handleSegment transcribes one speech segment and feeds the dispatcher.
// It runs on the capture goroutine, so segments are processed in order.
// Each segment gets one trace with child spans per pipeline stage.
func (a *App) handleSegment(samples []float32) {
	ctx, span := observe.StartSpan(context.Background(), "pipeline.segment",
		trace.WithAttributes(attribute.Int("samples", len(samples))))
	defer span.End()

	a.metrics.SegmentsDetected.Add(ctx, 1)

	a.throttle()

	a.mu.Lock()
	engine := a.engine
	a.mu.Unlock()
	if engine == nil {
		return
	}

	tctx, tspan := observe.StartSpan(ctx, "pipeline.transcribe")
	start := time.Now()
	text, err := engine.Transcribe(tctx, samples)
	a.metrics.RecordTranscription(tctx, time.Since(start))
	if err != nil {
		tspan.RecordError(err)
		tspan.End()
		if !errors.Is(err, transcribe.ErrBreakerOpen) {
			observe.Logger(ctx).Error("app: transcription failed", "err", err)
		}
		a.metrics.EngineErrors.Add(ctx, 1)
		a.bus.Emit(event.Error, map[string]any{
			"message": "transcription: " + err.Error(),
		})
		return
	}
	tspan.End()

	clean := transcribe.Clean(text)
	if clean == "" {
		a.metrics.SegmentsDiscarded.Add(ctx, 1)
		return
	}

	observe.Logger(ctx).Debug("app: utterance", "text", clean)
	_, dspan := observe.StartSpan(ctx, "pipeline.dispatch")
	a.dispatcher.Dispatch(clean)
	dspan.End()
}

// throttle enforces the configured minimum gap between transcriptions.
func (a *App) throttle() {
	a.mu.Lock()
	interval := a.cfg.ProcessingInterval()
	last := a.lastSegment
	a.lastSegment = time.Now()
	a.mu.Unlock()

	if interval <= 0 || last.IsZero() {
		return
	}
	if wait := interval - time.Since(last); wait > 0 {
		time.Sleep(wait)
	}
}

// applyVADProfile swaps the segmenter tuning when the dispatcher changes
// mode.
func (a *App) applyVADProfile(m dispatch.Mode) {
	a.mu.Lock()
	vad := a.cfg.VAD
	a.mu.Unlock()

	var p config.VADProfile
	switch m {
	case dispatch.ModeCommand:
		p = vad.Command
	case dispatch.ModeTyping:
		p = vad.Typing
	default:
		p = vad.Normal
	}
	a.segmenter.SetParams(paramsFrom(p))
}

// ─── Introspection ───────────────────────────────────────────────────────────

// Status returns a point-in-time snapshot.
func (a *App) Status() Status {
	a.mu.Lock()
	running := a.running
	cfg := a.cfg
	engine := a.engine
	a.mu.Unlock()

	loaded := engine != nil && engine.Loaded()
	return Status{
		Running:      running,
		Mode:         a.dispatcher.Mode().String(),
		Buffer:       a.dispatcher.Buffer(),
		CommandCount: len(cfg.ActiveCommands()),
		EngineLoaded: loaded,
	}
}

// EngineLoaded reports whether the speech engine is ready. Used by the
// readiness probe.
func (a *App) EngineLoaded() bool {
	a.mu.Lock()
	engine := a.engine
	a.mu.Unlock()
	return engine != nil && engine.Loaded()
}

// Mode returns the dispatcher mode.
func (a *App) Mode() dispatch.Mode { return a.dispatcher.Mode() }

// SetMode forces the dispatcher mode.
func (a *App) SetMode(m dispatch.Mode) { a.dispatcher.SetMode(m) }

// Buffer returns the dispatcher display buffer.
func (a *App) Buffer() string { return a.dispatcher.Buffer() }

// Config returns the current config. Callers must treat it as read-only;
// use Clone before editing.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// ─── Configuration ───────────────────────────────────────────────────────────

// UpdateConfig validates, persists, and applies a full replacement config.
func (a *App) UpdateConfig(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if a.configPath != "" {
		if err := config.Save(cfg, a.configPath); err != nil {
			return err
		}
	}
	a.ApplyConfig(cfg)
	return nil
}

// SetConfigValue edits one scalar config key and persists the result.
func (a *App) SetConfigValue(key, value string) error {
	next := a.Config().Clone()
	if err := config.SetValue(next, key, value); err != nil {
		return err
	}
	return a.UpdateConfig(next)
}

// GetConfigValue reads one scalar config key.
func (a *App) GetConfigValue(key string) (string, error) {
	return config.GetValue(a.Config(), key)
}

// AddCommand appends a catalogue entry and persists the result.
func (a *App) AddCommand(cmd config.CommandConfig) error {
	next := a.Config().Clone()
	next.Commands = append(next.Commands, cmd)
	return a.UpdateConfig(next)
}

// RemoveCommand deletes the named catalogue entry and persists the result.
func (a *App) RemoveCommand(name string) error {
	next := a.Config().Clone()
	kept := next.Commands[:0]
	found := false
	for _, c := range next.Commands {
		if c.Name == name {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return fmt.Errorf("app: no command named %q", name)
	}
	next.Commands = kept
	return a.UpdateConfig(next)
}

// ApplyConfig applies an already-validated config to the live pipeline:
// dispatcher settings, guard windows, matcher, extractor, the current
// mode's VAD profile, the log level, and the engine when the speech
// section changed. Used directly by the file watcher, whose config is
// already persisted.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	old := a.cfg
	a.cfg = cfg
	a.mu.Unlock()

	a.guard.SetConfig(guardConfig(cfg))
	a.dispatcher.SetMatcher(matcherFrom(cfg))
	a.dispatcher.SetExtractor(extractorFrom(cfg))
	a.dispatcher.Configure(settingsFrom(cfg))
	a.applyVADProfile(a.dispatcher.Mode())

	if a.logLevel != nil && cfg.Server.LogLevel != "" {
		a.logLevel.Set(slogLevel(cfg.Server.LogLevel))
	}

	if old.Speech != cfg.Speech {
		if err := a.reloadEngine(cfg.Speech); err != nil {
			slog.Error("app: engine reload failed, keeping previous engine", "err", err)
			a.bus.Emit(event.Error, map[string]any{
				"message": "engine reload: " + err.Error(),
			})
		}
	}

	slog.Info("app: configuration applied")
	a.bus.Emit(event.ConfigChanged, nil)
	a.emitStatus()
}

// reloadEngine swaps the speech engine for one built from the new config.
func (a *App) reloadEngine(speech config.SpeechConfig) error {
	engine, err := a.buildEngine(speech)
	if err != nil {
		return err
	}

	a.mu.Lock()
	old := a.engine
	a.engine = engine
	a.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			slog.Warn("app: closing previous engine", "err", err)
		}
	}
	slog.Info("app: speech engine reloaded", "engine", speech.Engine)
	return nil
}

// buildEngine constructs and breaker-wraps an engine.
func (a *App) buildEngine(speech config.SpeechConfig) (transcribe.Engine, error) {
	engine, err := a.newEngine(speech)
	if err != nil {
		return nil, fmt.Errorf("app: build engine: %w", err)
	}
	return transcribe.NewBreaker(engine, transcribe.BreakerConfig{
		CallTimeout: speech.Timeout(),
	}), nil
}

func (a *App) emitStatus() {
	st := a.Status()
	a.bus.Emit(event.StatusChanged, map[string]any{
		"running":       st.Running,
		"mode":          st.Mode,
		"engine_loaded": st.EngineLoaded,
	})
}

// ─── Config translation helpers ──────────────────────────────────────────────

func guardConfig(cfg *config.Config) guard.Config {
	return guard.Config{
		DedupWindow: cfg.Guard.DedupWindow(),
		Retention:   cfg.Guard.Retention(),
		Debounce:    cfg.Guard.Debounce(),
	}
}

func matcherFrom(cfg *config.Config) *match.Matcher {
	if cfg.Matching.Fuzzy {
		return match.New(match.WithFuzzy(cfg.Matching.FuzzyThreshold))
	}
	return match.New()
}

func extractorFrom(cfg *config.Config) *intent.Extractor {
	return intent.New(
		intent.NewApps(cfg.Applications.Aliases, cfg.Applications.Defaults),
		&intent.Search{
			Engines: cfg.Search.Engines,
			Browser: cfg.Search.Browser,
		},
	)
}

func settingsFrom(cfg *config.Config) dispatch.Settings {
	active := cfg.ActiveCommands()
	catalogue := make([]match.Command, len(active))
	for i, c := range active {
		catalogue[i] = match.Command{Name: c.Name, Action: c.Action, Phrases: c.Phrases}
	}
	return dispatch.Settings{
		WakePhrase:  cfg.WakePhrase,
		ExitPhrases: cfg.Typing.ExitPhrases,
		Threshold:   cfg.Threshold(),
		Catalogue:   catalogue,
	}
}

func paramsFrom(p config.VADProfile) segment.Params {
	return segment.Params{
		EnergyThreshold:   p.EnergyThreshold,
		SilenceDuration:   p.Silence(),
		MinSpeechDuration: p.MinSpeech(),
	}
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
