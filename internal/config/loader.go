package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per pipeline stage.
// Used by [Validate] to reject typos early instead of failing at dial time.
var ValidProviderNames = map[string][]string{
	"stt": {"openai", "deepgram", "localwhisper"},
	"tts": {"openai", "elevenlabs"},
}

// Load builds a [Config] from the environment, applying defaults. If a .env
// file exists in the working directory it is loaded first (existing variables
// win, matching godotenv semantics). extrasPath optionally names a YAML
// overlay file; pass "" for none.
//
// The returned config has been validated.
func Load(extrasPath string) (*Config, error) {
	// Missing .env is the common case in production; only a parse failure
	// is worth reporting.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "err", err)
	}

	cfg := &Config{
		VoiceToken:     os.Getenv("VOICE_PLATFORM_TOKEN"),
		GuildID:        os.Getenv("SERVER_ID"),
		VoiceChannelID: os.Getenv("VOICE_CHANNEL_ID"),
		TextChannelID:  os.Getenv("TEXT_CHANNEL_ID"),
		AllowedUsers:   envList("ALLOWED_USERS"),

		BrainProvider: envDefault("BRAIN_PROVIDER", "openai"),
		BrainURL:      os.Getenv("BRAIN_URL"),
		BrainToken:    os.Getenv("BRAIN_TOKEN"),
		BrainModel:    os.Getenv("BRAIN_MODEL"),
		SessionUser:   os.Getenv("SESSION_USER"),

		STTProvider:  envDefault("STT_PROVIDER", "openai"),
		STTFallbacks: envList("STT_FALLBACKS"),
		TTSProvider:  envDefault("TTS_PROVIDER", "openai"),
		TTSFallbacks: envList("TTS_FALLBACKS"),

		WakeWordEnabled:    envBool("WAKE_WORD_ENABLED", false),
		WakePhrases:        envList("WAKE_WORD_PHRASES"),
		ConversationWindow: envMillis("CONVERSATION_WINDOW_MS", DefaultConversationWindow),

		StreamingTTS:        envBool("STREAMING_TTS_ENABLED", true),
		HistoryCap:          envInt("HISTORY_CAP", DefaultHistoryCap),
		ConversationIdleTTL: envMillis("CONVERSATION_IDLE_TTL_MS", DefaultConversationIdleTTL),

		BindAddress: envDefault("BIND_ADDRESS", DefaultBindAddress),
		AlertPort:   envDefault("ALERT_WEBHOOK_PORT", DefaultAlertPort),
		AlertToken:  os.Getenv("ALERT_WEBHOOK_TOKEN"),

		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		DeepgramKey:       os.Getenv("DEEPGRAM_API_KEY"),
		ElevenLabsKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
		LocalWhisperURL:   envDefault("LOCAL_WHISPER_URL", DefaultLocalWhisperURL),

		LogLevel: LogLevel(envDefault("LOG_LEVEL", string(LogInfo))),
		Extras:   &Extras{},
	}

	if extrasPath != "" {
		extras, err := LoadExtras(extrasPath)
		if err != nil {
			return nil, err
		}
		cfg.Extras = extras
	}
	applyExtras(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadExtras reads the YAML overlay file at path.
func LoadExtras(path string) (*Extras, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	extras, err := LoadExtrasFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return extras, nil
}

// LoadExtrasFromReader decodes a YAML overlay from r. Unknown fields are
// rejected so typos surface at startup instead of being silently ignored.
func LoadExtrasFromReader(r io.Reader) (*Extras, error) {
	extras := &Extras{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(extras); err != nil {
		if errors.Is(err, io.EOF) {
			return extras, nil // empty file is a valid overlay
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return extras, nil
}

// applyExtras folds the YAML overlay into env-derived fields. Env wins where
// both define a knob.
func applyExtras(cfg *Config) {
	e := cfg.Extras
	if e == nil {
		cfg.Extras = &Extras{}
		return
	}
	cfg.WakePhrases = append(cfg.WakePhrases, e.WakePhrases...)
	if len(cfg.STTFallbacks) == 0 {
		cfg.STTFallbacks = e.Cascade.STT
	}
	if len(cfg.TTSFallbacks) == 0 {
		cfg.TTSFallbacks = e.Cascade.TTS
	}
	if cfg.ElevenLabsVoiceID == "" {
		cfg.ElevenLabsVoiceID = e.Voices.ElevenLabs
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	required := []struct {
		name, value string
	}{
		{"VOICE_PLATFORM_TOKEN", cfg.VoiceToken},
		{"SERVER_ID", cfg.GuildID},
		{"VOICE_CHANNEL_ID", cfg.VoiceChannelID},
		{"BRAIN_URL", cfg.BrainURL},
		{"BRAIN_MODEL", cfg.BrainModel},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}

	if len(cfg.AllowedUsers) == 0 {
		errs = append(errs, errors.New("ALLOWED_USERS must list at least one user id"))
	}

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if !validBrainProvider(cfg.BrainProvider) {
		errs = append(errs, fmt.Errorf("BRAIN_PROVIDER %q is invalid; valid values: openai, anyllm:<backend>", cfg.BrainProvider))
	}

	errs = append(errs, validateProviderName("stt", "STT_PROVIDER", cfg.STTProvider)...)
	errs = append(errs, validateProviderName("tts", "TTS_PROVIDER", cfg.TTSProvider)...)
	for _, name := range cfg.STTFallbacks {
		errs = append(errs, validateProviderName("stt", "STT_FALLBACKS", name)...)
	}
	for _, name := range cfg.TTSFallbacks {
		errs = append(errs, validateProviderName("tts", "TTS_FALLBACKS", name)...)
	}

	if cfg.WakeWordEnabled && len(cfg.WakePhrases) == 0 {
		errs = append(errs, errors.New("WAKE_WORD_ENABLED is set but WAKE_WORD_PHRASES is empty"))
	}

	if cfg.HistoryCap <= 0 {
		errs = append(errs, fmt.Errorf("HISTORY_CAP %d must be positive", cfg.HistoryCap))
	}
	if cfg.ConversationWindow <= 0 {
		errs = append(errs, fmt.Errorf("CONVERSATION_WINDOW_MS %d must be positive", cfg.ConversationWindow/time.Millisecond))
	}
	if cfg.ConversationIdleTTL <= 0 {
		errs = append(errs, fmt.Errorf("CONVERSATION_IDLE_TTL_MS %d must be positive", cfg.ConversationIdleTTL/time.Millisecond))
	}

	if _, err := strconv.Atoi(cfg.AlertPort); err != nil {
		errs = append(errs, fmt.Errorf("ALERT_WEBHOOK_PORT %q is not a port number", cfg.AlertPort))
	}

	if cfg.AlertToken == "" {
		slog.Warn("ALERT_WEBHOOK_TOKEN is empty; all alert submissions will be rejected")
	}
	if cfg.TextChannelID == "" {
		slog.Warn("TEXT_CHANNEL_ID is empty; text handoff and session notes are disabled")
	}

	return errors.Join(errs...)
}

// validBrainProvider accepts "openai" or "anyllm:<backend>".
func validBrainProvider(name string) bool {
	if name == "openai" {
		return true
	}
	backend, ok := strings.CutPrefix(name, "anyllm:")
	return ok && backend != ""
}

func validateProviderName(kind, envName, name string) []error {
	if name == "" {
		return nil
	}
	if slices.Contains(ValidProviderNames[kind], name) {
		return nil
	}
	return []error{fmt.Errorf("%s %q is not a known %s provider; valid values: %s",
		envName, name, kind, strings.Join(ValidProviderNames[kind], ", "))}
}

// envDefault returns the variable's value, or def when unset or blank.
func envDefault(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

// envList splits a comma-separated variable into trimmed non-empty items.
func envList(name string) []string {
	var items []string
	for _, part := range strings.Split(os.Getenv(name), ",") {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// envBool parses a boolean variable, returning def when unset or malformed.
func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring malformed boolean variable", "name", name, "value", v)
		return def
	}
	return b
}

// envInt parses an integer variable, returning def when unset or malformed.
func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring malformed integer variable", "name", name, "value", v)
		return def
	}
	return n
}

// envMillis parses a millisecond-count variable into a duration.
func envMillis(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring malformed millisecond variable", "name", name, "value", v)
		return def
	}
	return time.Duration(n) * time.Millisecond
}
