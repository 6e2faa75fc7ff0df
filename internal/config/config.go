// Package config handles loading and validating the replymode configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the replymode daemon.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Transports    TransportsConfig    `mapstructure:"transports"`
	Policy        PolicyConfig        `mapstructure:"policy"`
	Store         StoreConfig         `mapstructure:"store"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	TTS           TTSConfig           `mapstructure:"tts"`
	Sessions      SessionsConfig      `mapstructure:"sessions"`
	Clock         ClockConfig         `mapstructure:"clock"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig holds the health and metrics server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// PolicyConfig tunes the TTS rule evaluator.
type PolicyConfig struct {
	Phrases PhrasesConfig `mapstructure:"phrases"`
}

// PhrasesConfig overrides the voice-mode start/stop phrase lists.
// Empty lists keep the built-in Portuguese phrases.
type PhrasesConfig struct {
	Start []string `mapstructure:"start"`
	Stop  []string `mapstructure:"stop"`
}

// StoreConfig selects where per-contact audio-mode flags live.
type StoreConfig struct {
	Backend string      `mapstructure:"backend"` // "memory" or "redis"
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis mode-store settings.
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"` // 0 keeps flags forever
}

// TranscriptionConfig selects the speech-to-text backend used for voice notes.
type TranscriptionConfig struct {
	Backend string       `mapstructure:"backend"` // "gemini", "openai" or "none"
	Gemini  GeminiConfig `mapstructure:"gemini"`
	OpenAI  OpenAIConfig `mapstructure:"openai"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
	Prompt   string `mapstructure:"prompt"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Backend string          `mapstructure:"backend"` // "gemini" or "piper"
	Gemini  GeminiTTSConfig `mapstructure:"gemini"`
	Piper   PiperConfig     `mapstructure:"piper"`
	Breaker BreakerConfig   `mapstructure:"breaker"`
}

// GeminiTTSConfig holds Gemini native TTS settings.
type GeminiTTSConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	SampleRate int    `mapstructure:"sample_rate"`
	MaxChars   int    `mapstructure:"max_chars"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// For per-language instances, set Endpoints which maps ISO-639-1 codes to
// individual Wyoming TCP endpoints. Endpoints takes precedence and Endpoint
// is the fallback.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`
	Endpoints map[string]string `mapstructure:"endpoints"`
	Voices    map[string]string `mapstructure:"voices"`
	Language  string            `mapstructure:"language"`
}

// BreakerConfig configures the circuit breaker around the synthesizer.
type BreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// SessionsConfig holds the defaults applied to sessions with no stored config.
type SessionsConfig struct {
	TTSEnabled bool   `mapstructure:"tts_enabled"`
	Voice      string `mapstructure:"tts_voice"`
	Rules      string `mapstructure:"tts_rules"`
}

// ClockConfig sets the timezone used to stamp replies.
type ClockConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./replymode.yaml, ./configs/replymode.yaml, /etc/replymode/replymode.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("replymode")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/replymode")
	}

	// Environment variables: REPLYMODE_SERVER_HEALTH_PORT, REPLYMODE_TTS_BACKEND, etc.
	v.SetEnvPrefix("REPLYMODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${GEMINI_API_KEY}")
	cfg.Transcription.Gemini.APIKey = resolveEnvRef(cfg.Transcription.Gemini.APIKey)
	cfg.Transcription.OpenAI.APIKey = resolveEnvRef(cfg.Transcription.OpenAI.APIKey)
	cfg.TTS.Gemini.APIKey = resolveEnvRef(cfg.TTS.Gemini.APIKey)
	cfg.Store.Redis.URL = resolveEnvRef(cfg.Store.Redis.URL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("policy.phrases.start", []string{})
	v.SetDefault("policy.phrases.stop", []string{})
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis.url", "redis://localhost:6379/0")
	v.SetDefault("store.redis.key_prefix", "replymode:audio:")
	v.SetDefault("store.redis.ttl", 0)
	v.SetDefault("transcription.backend", "gemini")
	v.SetDefault("transcription.gemini.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("transcription.gemini.model", "gemini-2.5-flash")
	v.SetDefault("transcription.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("transcription.openai.model", "whisper-1")
	v.SetDefault("transcription.openai.language", "pt")
	v.SetDefault("transcription.openai.prompt", "Transcrição de mensagem de áudio do WhatsApp em português.")
	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.backend", "gemini")
	v.SetDefault("tts.gemini.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("tts.gemini.model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("tts.gemini.sample_rate", 24000)
	v.SetDefault("tts.gemini.max_chars", 5000)
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.piper.language", "pt")
	v.SetDefault("tts.breaker.enabled", true)
	v.SetDefault("tts.breaker.max_requests", 1)
	v.SetDefault("tts.breaker.interval", time.Minute)
	v.SetDefault("tts.breaker.timeout", 30*time.Second)
	v.SetDefault("tts.breaker.min_requests", 3)
	v.SetDefault("tts.breaker.failure_ratio", 0.6)
	v.SetDefault("sessions.tts_enabled", false)
	v.SetDefault("sessions.tts_voice", "Kore")
	v.SetDefault("sessions.tts_rules", "")
	v.SetDefault("clock.timezone", "America/Sao_Paulo")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate rejects unknown backend names.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Transcription.Backend {
	case "gemini", "openai", "none":
	default:
		return fmt.Errorf("unknown transcription backend %q", c.Transcription.Backend)
	}
	if c.TTS.Enabled {
		switch c.TTS.Backend {
		case "gemini", "piper":
		default:
			return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
		}
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
// An unset variable resolves to the empty string.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
