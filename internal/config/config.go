// Package config provides the configuration schema, loader, and provider
// registry for the herald voice assistant.
//
// Configuration is environment-first: every operational knob is an
// environment variable (optionally sourced from a .env file). An optional
// YAML file carries the long tail that does not fit env vars — vocabulary
// corrections, extra stop phrases, cascade order, voices — and can be
// hot-reloaded by [Watcher]. Env wins where both define a knob.
package config

import "time"

// LogLevel controls log verbosity for the herald process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [Load] when the corresponding variable is unset.
const (
	DefaultBindAddress         = "127.0.0.1"
	DefaultAlertPort           = "8765"
	DefaultHistoryCap          = 40
	DefaultConversationWindow  = 60 * time.Second
	DefaultConversationIdleTTL = 30 * time.Minute
	DefaultLocalWhisperURL     = "http://127.0.0.1:8787"
)

// Config is the root configuration for herald, derived from the environment.
// Load applies defaults; Validate checks coherence.
type Config struct {
	// Voice platform.

	// VoiceToken authenticates against the voice platform (VOICE_PLATFORM_TOKEN).
	VoiceToken string

	// GuildID is the server hosting the voice channel (SERVER_ID).
	GuildID string

	// VoiceChannelID is the channel to join (VOICE_CHANNEL_ID).
	VoiceChannelID string

	// TextChannelID receives handoff posts and session notes (TEXT_CHANNEL_ID).
	TextChannelID string

	// AllowedUsers lists user IDs whose speech is processed (ALLOWED_USERS,
	// comma-separated). The first entry is the designated user whose voice
	// presence gates audio vs. text delivery.
	AllowedUsers []string

	// Brain.

	// BrainProvider selects the completion transport (BRAIN_PROVIDER):
	// "openai" (default) or "anyllm:<backend>".
	BrainProvider string

	// BrainURL is the chat-completions endpoint root (BRAIN_URL).
	BrainURL string

	// BrainToken is the bearer token for the brain (BRAIN_TOKEN).
	BrainToken string

	// BrainModel names the model requested on every call (BRAIN_MODEL).
	BrainModel string

	// SessionUser is the stable session key sent as the request user field
	// (SESSION_USER).
	SessionUser string

	// Speech providers.

	// STTProvider is the primary recognizer (STT_PROVIDER); STTFallbacks
	// (STT_FALLBACKS) are tried in order when it fails.
	STTProvider  string
	STTFallbacks []string

	// TTSProvider is the primary synthesizer (TTS_PROVIDER); TTSFallbacks
	// (TTS_FALLBACKS) are tried in order when it fails.
	TTSProvider  string
	TTSFallbacks []string

	// Addressing.

	// WakeWordEnabled turns on wake-phrase gating (WAKE_WORD_ENABLED, false).
	WakeWordEnabled bool

	// WakePhrases lists accepted wake phrases (WAKE_WORD_PHRASES, comma-separated).
	WakePhrases []string

	// ConversationWindow is how long after an assistant reply speech is
	// accepted without a wake phrase (CONVERSATION_WINDOW_MS, 60000).
	ConversationWindow time.Duration

	// Pipeline behaviour.

	// StreamingTTS synthesizes sentence-by-sentence as the brain streams;
	// when false the full reply is synthesized as one clip
	// (STREAMING_TTS_ENABLED, true).
	StreamingTTS bool

	// HistoryCap bounds per-speaker conversation history (HISTORY_CAP, 40).
	HistoryCap int

	// ConversationIdleTTL drops a speaker's history after inactivity
	// (CONVERSATION_IDLE_TTL_MS, 1800000).
	ConversationIdleTTL time.Duration

	// Alert webhook.

	// BindAddress is the interface the HTTP server binds (BIND_ADDRESS,
	// 127.0.0.1). Keep it private; the webhook is not meant for the internet.
	BindAddress string

	// AlertPort is the webhook listen port (ALERT_WEBHOOK_PORT, 8765).
	AlertPort string

	// AlertToken is the Bearer token required on POST /alert
	// (ALERT_WEBHOOK_TOKEN). Empty rejects all alert submissions.
	AlertToken string

	// Provider credentials.

	// OpenAIKey authenticates OpenAI STT/TTS and, absent a BRAIN_TOKEN, the
	// brain transport (OPENAI_API_KEY).
	OpenAIKey string

	// DeepgramKey authenticates the Deepgram recognizer (DEEPGRAM_API_KEY).
	DeepgramKey string

	// ElevenLabsKey and ElevenLabsVoiceID configure the ElevenLabs
	// synthesizer (ELEVENLABS_API_KEY, ELEVENLABS_VOICE_ID).
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// LocalWhisperURL is the whisper sidecar base URL (LOCAL_WHISPER_URL,
	// http://127.0.0.1:8787).
	LocalWhisperURL string

	// Logging.

	// LogLevel controls verbosity (LOG_LEVEL, info).
	LogLevel LogLevel

	// Extras holds the optional YAML overlay. Never nil after Load; empty
	// when no file was given.
	Extras *Extras
}

// ListenAddr returns the bind address for the alert webhook server.
func (c *Config) ListenAddr() string {
	return c.BindAddress + ":" + c.AlertPort
}

// DesignatedUser returns the user whose voice presence gates audio delivery,
// or "" when no users are allowed.
func (c *Config) DesignatedUser() string {
	if len(c.AllowedUsers) == 0 {
		return ""
	}
	return c.AllowedUsers[0]
}

// Extras is the optional YAML overlay (--config herald.yaml). Everything in
// it is additive texture: the assistant runs fine with all of it empty.
type Extras struct {
	// Corrections maps misheard phrases to their intended replacement,
	// applied to transcripts before routing (e.g. "jar of us" -> "Jarvis").
	Corrections map[string]string `yaml:"corrections"`

	// Vocabulary lists domain terms for phonetic matching in the corrector.
	Vocabulary []string `yaml:"vocabulary"`

	// StopPhrases extends the built-in interrupt phrases.
	StopPhrases []string `yaml:"stop_phrases"`

	// WakePhrases extends WAKE_WORD_PHRASES.
	WakePhrases []string `yaml:"wake_phrases"`

	// Voices overrides per-provider voice selection.
	Voices VoicesConfig `yaml:"voices"`

	// Cascade overrides the provider fallback order. Env wins when the
	// corresponding *_FALLBACKS variable is set.
	Cascade CascadeConfig `yaml:"cascade"`
}

// VoicesConfig selects the voice per TTS provider.
type VoicesConfig struct {
	// OpenAI is the voice name for the OpenAI speech API (e.g. "onyx").
	OpenAI string `yaml:"openai"`

	// ElevenLabs is the voice ID for ElevenLabs. Overrides ELEVENLABS_VOICE_ID.
	ElevenLabs string `yaml:"elevenlabs"`
}

// CascadeConfig lists fallback provider names in try-order.
type CascadeConfig struct {
	STT []string `yaml:"stt"`
	TTS []string `yaml:"tts"`
}
