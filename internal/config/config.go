package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the assistant. Values come from the
// environment (optionally seeded from a .env file) with defaults that
// match the reference desktop setup.
type Config struct {
	// Audio capture
	SampleRate     int
	VoiceThreshold float64 // normalized peak amplitude that counts as speech
	ProbeWindow    time.Duration
	WaitTimeout    time.Duration
	RecordWindow   time.Duration
	MinDuration    time.Duration // recordings shorter than this skip the recognizer

	// Speech to text
	STTBackend   string // "cli" or "native"
	WhisperBin   string
	WhisperModel string
	Language     string
	Threads      int
	STTTimeout   time.Duration

	// Response generation
	LLMBackend  string // "ollama" or "openai"
	OllamaURL   string
	OllamaModel string
	OpenAIModel string
	ProxyAddr   string // optional SOCKS5 address for hosted backends
	MaxTokens   int
	Temperature float64
	UserName    string
	BotName     string

	// Speech synthesis
	TTSBackend  string // "xtts" or "openai"
	XTTSURL     string
	XTTSSpeaker string
	OpenAIVoice string
	OutputDir   string

	// Avatar control
	AvatarEnabled bool
	AvatarURL     string
	PluginName    string
	PluginDev     string
	TokenFile     string
	KeepAlive     time.Duration
	MouthParam    string
	MouthGain     float64

	// Turn loop
	HistoryBound int
	Pause        time.Duration
	MemoryFile   string
	ChimePath    string

	// Optional variants
	ThinkerEnabled bool
	ThinkerIdle    time.Duration
	TwitchEnabled  bool
	TwitchNick     string
	TwitchToken    string
	TwitchChannel  string
	ScreenEnabled  bool
	ScreenInterval time.Duration
}

// Load reads the env file (if present) and the environment and returns
// a Config with sane defaults.
func Load(envFile string) Config {
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("no env file loaded", "path", envFile)
	}

	cfg := Config{
		SampleRate:     envInt("SAMPLE_RATE", 16000),
		VoiceThreshold: envFloat("VOICE_THRESHOLD", 0.015),
		ProbeWindow:    envDur("PROBE_WINDOW", 500*time.Millisecond),
		WaitTimeout:    envDur("WAIT_TIMEOUT", 10*time.Second),
		RecordWindow:   envDur("RECORD_WINDOW", 3500*time.Millisecond),
		MinDuration:    envDur("MIN_DURATION", 500*time.Millisecond),

		STTBackend:   envStr("STT_BACKEND", "cli"),
		WhisperBin:   envStr("WHISPER_BIN", "whisper-cli"),
		WhisperModel: envStr("WHISPER_MODEL", "models/ggml-medium.bin"),
		Language:     envStr("LANGUAGE", "ru"),
		Threads:      envInt("WHISPER_THREADS", 8),
		STTTimeout:   envDur("STT_TIMEOUT", 15*time.Second),

		LLMBackend:  envStr("LLM_BACKEND", "ollama"),
		OllamaURL:   envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: envStr("OLLAMA_MODEL", "mistral"),
		OpenAIModel: envStr("OPENAI_MODEL", "gpt-5-nano"),
		ProxyAddr:   envStr("SOCKS_PROXY", ""),
		MaxTokens:   envInt("MAX_TOKENS", 128),
		Temperature: envFloat("TEMPERATURE", 0.7),
		UserName:    envStr("USER_NAME", "Ваня"),
		BotName:     envStr("BOT_NAME", "Элейн-Сама"),

		TTSBackend:  envStr("TTS_BACKEND", "xtts"),
		XTTSURL:     envStr("XTTS_URL", "http://localhost:8020/tts"),
		XTTSSpeaker: envStr("XTTS_SPEAKER", ""),
		OpenAIVoice: envStr("OPENAI_VOICE", "alloy"),
		OutputDir:   envStr("OUTPUT_DIR", "output"),

		AvatarEnabled: envBool("AVATAR_ENABLED", true),
		AvatarURL:     envStr("AVATAR_URL", "ws://localhost:8001"),
		PluginName:    envStr("PLUGIN_NAME", "Elaine1"),
		PluginDev:     envStr("PLUGIN_DEV", "nvm1"),
		TokenFile:     envStr("TOKEN_FILE", "vtubeStudio_token.txt"),
		KeepAlive:     envDur("KEEP_ALIVE", 10*time.Second),
		MouthParam:    envStr("MOUTH_PARAM", "MouthOpen"),
		MouthGain:     envFloat("MOUTH_GAIN", 4.2),

		HistoryBound: envInt("HISTORY_BOUND", 4),
		Pause:        envDur("POST_PLAYBACK_PAUSE", time.Second),
		MemoryFile:   envStr("MEMORY_FILE", ""),
		ChimePath:    envStr("CHIME_PATH", ""),

		ThinkerEnabled: envBool("THINKER_ENABLED", false),
		ThinkerIdle:    envDur("THINKER_IDLE", 15*time.Second),
		TwitchEnabled:  envBool("TWITCH_ENABLED", false),
		TwitchNick:     envStr("TWITCH_NICK", ""),
		TwitchToken:    envStr("TWITCH_TOKEN", ""),
		TwitchChannel:  envStr("TWITCH_CHANNEL", ""),
		ScreenEnabled:  envBool("SCREEN_ENABLED", false),
		ScreenInterval: envDur("SCREEN_INTERVAL", time.Minute),
	}

	if cfg.LLMBackend == "openai" && os.Getenv("OPENAI_API_KEY") == "" {
		slog.Warn("OPENAI_API_KEY not set - the openai generator will not work")
	}
	if cfg.TwitchEnabled && cfg.TwitchChannel == "" {
		slog.Warn("TWITCH_CHANNEL not set - chat bridge disabled")
		cfg.TwitchEnabled = false
	}

	return cfg
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env value", "key", key, "value", v)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float env value", "key", key, "value", v)
		return def
	}
	return f
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration env value", "key", key, "value", v)
		return def
	}
	return d
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean env value", "key", key, "value", v)
		return def
	}
	return b
}
