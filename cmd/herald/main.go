// Command herald is the main entry point for the Herald voice assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"go.opentelemetry.io/otel"

	"github.com/novakeep/herald/internal/app"
	"github.com/novakeep/herald/internal/config"
	"github.com/novakeep/herald/internal/observe"
	"github.com/novakeep/herald/internal/resilience"
	"github.com/novakeep/herald/pkg/audio"
	discordaudio "github.com/novakeep/herald/pkg/audio/discord"
	"github.com/novakeep/herald/pkg/provider/llm"
	"github.com/novakeep/herald/pkg/provider/llm/anyllm"
	llmopenai "github.com/novakeep/herald/pkg/provider/llm/openai"
	"github.com/novakeep/herald/pkg/provider/stt"
	"github.com/novakeep/herald/pkg/provider/stt/deepgram"
	"github.com/novakeep/herald/pkg/provider/stt/localwhisper"
	sttopenai "github.com/novakeep/herald/pkg/provider/stt/openai"
	"github.com/novakeep/herald/pkg/provider/tts"
	"github.com/novakeep/herald/pkg/provider/tts/elevenlabs"
	ttsopenai "github.com/novakeep/herald/pkg/provider/tts/openai"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	extrasPath := flag.String("config", "", "path to the optional YAML overlay (corrections, vocabulary, phrases)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*extrasPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "herald: overlay file %q not found\n", *extrasPath)
		} else {
			fmt.Fprintf(os.Stderr, "herald: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("herald starting",
		"version", version,
		"overlay", *extrasPath,
		"listen_addr", cfg.ListenAddr(),
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "herald",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Discord session ───────────────────────────────────────────────────────
	session, err := discordgo.New("Bot " + cfg.VoiceToken)
	if err != nil {
		slog.Error("failed to create discord session", "err", err)
		return 1
	}
	// Voice receive plus join/leave tracking for the designated user.
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	if err := session.Open(); err != nil {
		slog.Error("failed to open discord session", "err", err)
		return 1
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("discord session close error", "err", err)
		}
	}()
	reg.RegisterAudio("discord", func(*config.Config) (audio.Platform, error) {
		return discordaudio.New(session), nil
	})

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, providers, logger, metrics)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Overlay hot reload ────────────────────────────────────────────────────
	if *extrasPath != "" {
		watcher, err := config.NewWatcher(*extrasPath, application.ReloadExtras)
		if err != nil {
			slog.Error("failed to watch overlay", "path", *extrasPath, "err", err)
			return 1
		}
		defer watcher.Stop()
	}

	slog.Info("herald ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends lists the any-llm-go backends reachable through the
// "anyllm:<backend>" brain provider syntax.
var anyllmBackends = []string{
	"openai", "anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives the loaded config and constructs the provider from
// the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Brain (LLM) ───────────────────────────────────────────────────────────

	// "openai" speaks the chat-completions protocol directly against
	// BRAIN_URL. This is the default and covers any OpenAI-compatible server
	// (vLLM, LiteLLM, an Open WebUI pipeline, the real OpenAI API).
	reg.RegisterLLM("openai", func(cfg *config.Config) (llm.Provider, error) {
		token := cfg.BrainToken
		if token == "" {
			token = cfg.OpenAIKey
		}
		var opts []llmopenai.Option
		if cfg.BrainURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(cfg.BrainURL))
		}
		return llmopenai.New(token, cfg.BrainModel, opts...)
	})

	// "anyllm:<backend>" routes through any-llm-go instead. All backends
	// share the same pattern: optional API key + optional base URL.
	for _, backend := range anyllmBackends {
		reg.RegisterLLM("anyllm:"+backend, func(cfg *config.Config) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if cfg.BrainToken != "" {
				opts = append(opts, anyllmlib.WithAPIKey(cfg.BrainToken))
			}
			if cfg.BrainURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(cfg.BrainURL))
			}
			return anyllm.New(backend, cfg.BrainModel, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(cfg *config.Config) (stt.Provider, error) {
		return sttopenai.New(cfg.OpenAIKey)
	})

	reg.RegisterSTT("deepgram", func(cfg *config.Config) (stt.Provider, error) {
		return deepgram.New(cfg.DeepgramKey)
	})

	reg.RegisterSTT("localwhisper", func(cfg *config.Config) (stt.Provider, error) {
		return localwhisper.New(cfg.LocalWhisperURL), nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(cfg *config.Config) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if voice := cfg.Extras.Voices.OpenAI; voice != "" {
			opts = append(opts, ttsopenai.WithVoice(voice))
		}
		return ttsopenai.New(cfg.OpenAIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(cfg *config.Config) (tts.Provider, error) {
		return elevenlabs.New(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	})
}

// buildProviders instantiates the configured providers, assembles the STT and
// TTS fallback cascades, and returns everything in an [app.Providers] struct.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	brain, err := reg.CreateLLM(cfg.BrainProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("create brain provider %q: %w", cfg.BrainProvider, err)
	}
	ps.LLM = brain
	slog.Info("provider created", "kind", "llm", "name", cfg.BrainProvider, "model", cfg.BrainModel)

	sttPrimary, err := reg.CreateSTT(cfg.STTProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.STTProvider, err)
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.STTProvider)

	if len(cfg.STTFallbacks) == 0 {
		ps.STT = sttPrimary
	} else {
		cascade := resilience.NewSTTFallback(sttPrimary, resilience.FallbackConfig{})
		for _, name := range cfg.STTFallbacks {
			fb, err := reg.CreateSTT(name, cfg)
			if err != nil {
				return nil, fmt.Errorf("create stt fallback %q: %w", name, err)
			}
			cascade.AddFallback(fb)
			slog.Info("provider created", "kind", "stt", "name", name, "role", "fallback")
		}
		ps.STT = cascade
	}

	ttsPrimary, err := reg.CreateTTS(cfg.TTSProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.TTSProvider, err)
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.TTSProvider)

	if len(cfg.TTSFallbacks) == 0 {
		ps.TTS = ttsPrimary
	} else {
		cascade := resilience.NewTTSFallback(ttsPrimary, resilience.FallbackConfig{})
		for _, name := range cfg.TTSFallbacks {
			fb, err := reg.CreateTTS(name, cfg)
			if err != nil {
				return nil, fmt.Errorf("create tts fallback %q: %w", name, err)
			}
			cascade.AddFallback(fb)
			slog.Info("provider created", "kind", "tts", "name", name, "role", "fallback")
		}
		ps.TTS = cascade
	}

	platform, err := reg.CreateAudio("discord", cfg)
	if err != nil {
		return nil, fmt.Errorf("create audio platform: %w", err)
	}
	ps.Audio = platform

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Herald — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printEntry("Brain", cfg.BrainProvider+" / "+cfg.BrainModel)
	printEntry("STT", cascadeSummary(cfg.STTProvider, cfg.STTFallbacks))
	printEntry("TTS", cascadeSummary(cfg.TTSProvider, cfg.TTSFallbacks))
	if cfg.WakeWordEnabled {
		printEntry("Wake word", strings.Join(cfg.WakePhrases, ", "))
	} else {
		printEntry("Wake word", "(disabled)")
	}
	if cfg.TextChannelID != "" {
		printEntry("Handoff", "text channel")
	} else {
		printEntry("Handoff", "(no text channel)")
	}
	printEntry("Alert webhook", cfg.ListenAddr())
	printEntry("Streaming TTS", fmt.Sprintf("%v", cfg.StreamingTTS))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printEntry(kind, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-13s   : %-19s ║\n", kind, value)
}

func cascadeSummary(primary string, fallbacks []string) string {
	if len(fallbacks) == 0 {
		return primary
	}
	return primary + " → " + strings.Join(fallbacks, " → ")
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
