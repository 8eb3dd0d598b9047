// Command willow is the always-on voice assistant daemon: it captures
// microphone audio, segments speech, transcribes it and dispatches the
// text as desktop commands, exposing a WebSocket control surface for
// frontends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/willowvoice/willow/internal/app"
	"github.com/willowvoice/willow/internal/config"
	"github.com/willowvoice/willow/internal/control"
	"github.com/willowvoice/willow/internal/event"
	"github.com/willowvoice/willow/internal/observe"
	"github.com/willowvoice/willow/internal/transcribe"
	"github.com/willowvoice/willow/internal/transcribe/openai"
	"github.com/willowvoice/willow/internal/transcribe/whisper"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	// Config trouble is never fatal: a missing or malformed file falls back
	// to the built-in defaults, which carry a usable catalogue. Persistence
	// stays enabled for a malformed file so control-surface edits can
	// replace it with a valid one; a missing file disables persistence.
	cfg, loadErr := config.Load(*configPath)
	persistPath := *configPath
	if loadErr != nil {
		cfg = config.Default()
		if errors.Is(loadErr, os.ErrNotExist) {
			persistPath = ""
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so config edits can change it at runtime.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if loadErr != nil {
		if persistPath == "" {
			slog.Warn("config file not found, running on defaults", "path", *configPath)
		} else {
			slog.Warn("config file is invalid, running on defaults",
				"path", *configPath, "err", loadErr)
		}
	}
	slog.Info("willow starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "willow",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	bus := event.NewBus()

	application, err := app.New(cfg, persistPath, bus,
		app.WithEngineFactory(buildEngine),
		app.WithLogLevel(level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer application.Close()

	// ── Config hot reload ─────────────────────────────────────────────────────
	// The watcher needs a loadable file; without one, edits still apply
	// through the control surface.
	if persistPath != "" && loadErr == nil {
		watcher, err := config.NewWatcher(persistPath, func(_, next *config.Config) {
			application.ApplyConfig(next)
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	if err := application.Start(); err != nil {
		slog.Error("failed to start audio pipeline", "err", err)
		return 1
	}

	slog.Info("ready — press Ctrl+C to shut down")

	// ── Control surface ───────────────────────────────────────────────────────
	// Blocks until the signal context is cancelled.
	srv := control.New(application, bus)
	if err := srv.ListenAndServe(ctx, cfg.Server.ListenAddr); err != nil {
		slog.Error("control server error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	application.Stop()
	slog.Info("goodbye")
	return 0
}

// ── Engine wiring ─────────────────────────────────────────────────────────────

// buildEngine constructs the transcription engine named in the speech
// config. Called again whenever a config change touches the speech section.
func buildEngine(sp config.SpeechConfig) (transcribe.Engine, error) {
	switch sp.Engine {
	case config.EngineOpenAI:
		opts := []openai.Option{}
		if sp.Model != "" {
			opts = append(opts, openai.WithModel(sp.Model))
		}
		if sp.TimeoutMs > 0 {
			opts = append(opts, openai.WithTimeout(sp.Timeout()))
		}
		return openai.New(sp.APIKey, opts...)
	case config.EngineWhisper, "":
		opts := []whisper.Option{}
		if sp.Language != "" {
			opts = append(opts, whisper.WithLanguage(sp.Language))
		}
		return whisper.New(sp.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown speech engine %q", sp.Engine)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          willow — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Engine", string(cfg.Speech.Engine)+" / "+cfg.Speech.Model)
	printRow("Wake phrase", cfg.WakePhrase)
	printRow("Threshold", fmt.Sprintf("%d%%", cfg.CommandThreshold))
	printRow("Commands", fmt.Sprintf("%d", len(cfg.ActiveCommands())))
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
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
