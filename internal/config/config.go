// Package config handles loading and validating the voicebridge configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the voicebridge daemon.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	LLM         LLMConfig         `mapstructure:"llm"`
	STT         STTConfig         `mapstructure:"stt"`
	TTS         TTSConfig         `mapstructure:"tts"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Session     SessionConfig     `mapstructure:"session"`
	Artifacts   ArtifactsConfig   `mapstructure:"artifacts"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds the HTTP/WebSocket server settings.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CredentialsConfig configures the realtime credential broker.
type CredentialsConfig struct {
	Backend string             `mapstructure:"backend"` // "openai-realtime"
	OpenAI  OpenAIBrokerConfig `mapstructure:"openai"`
}

// OpenAIBrokerConfig holds the settings used to mint ephemeral realtime tokens.
type OpenAIBrokerConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// LLMConfig selects and configures the conversation model backend.
type LLMConfig struct {
	Backend string       `mapstructure:"backend"` // "openai" or "gemini"
	OpenAI  OpenAIConfig `mapstructure:"openai"`
	Gemini  GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig holds OpenAI chat completion settings.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// STTConfig configures server-side transcription of client audio. When
// disabled, clients transcribe locally against the realtime API and stream
// transcript fragments instead of audio.
type STTConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Backend  string         `mapstructure:"backend"` // "deepgram"
	Deepgram DeepgramConfig `mapstructure:"deepgram"`
}

// MonitorConfig configures local playback of assistant speech on the host
// running the daemon.
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TTSConfig selects and configures the speech synthesis backend.
type TTSConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Backend  string         `mapstructure:"backend"` // "deepgram" or "openai"
	Deepgram DeepgramConfig `mapstructure:"deepgram"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
}

// DeepgramConfig holds Deepgram speech settings.
type DeepgramConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// SessionConfig holds per-session orchestration settings.
type SessionConfig struct {
	SystemPrompt string        `mapstructure:"system_prompt"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	SessionTools bool          `mapstructure:"session_tools"`
}

// ArtifactsConfig configures buffered speech artifact capture.
type ArtifactsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	FFmpegBinary string `mapstructure:"ffmpeg_binary"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./voicebridge.yaml, ./configs/voicebridge.yaml, /etc/voicebridge/voicebridge.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("credentials.backend", "openai-realtime")
	v.SetDefault("credentials.openai.model", "gpt-4o-realtime-preview")
	v.SetDefault("llm.backend", "openai")
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	v.SetDefault("stt.enabled", false)
	v.SetDefault("stt.backend", "deepgram")
	v.SetDefault("stt.deepgram.model", "nova-2")
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.backend", "deepgram")
	v.SetDefault("tts.deepgram.model", "aura-asteria-en")
	v.SetDefault("session.idle_timeout", 90*time.Second)
	v.SetDefault("session.session_tools", true)
	v.SetDefault("artifacts.enabled", false)
	v.SetDefault("artifacts.ffmpeg_binary", "ffmpeg")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("voicebridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/voicebridge")
	}

	// Environment variables: VOICEBRIDGE_SERVER_PORT, VOICEBRIDGE_LLM_BACKEND, etc.
	v.SetEnvPrefix("VOICEBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional, env vars and defaults are sufficient)
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

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}")
	cfg.Credentials.OpenAI.APIKey = resolveEnvRef(cfg.Credentials.OpenAI.APIKey)
	cfg.LLM.OpenAI.APIKey = resolveEnvRef(cfg.LLM.OpenAI.APIKey)
	cfg.LLM.Gemini.APIKey = resolveEnvRef(cfg.LLM.Gemini.APIKey)
	cfg.STT.Deepgram.APIKey = resolveEnvRef(cfg.STT.Deepgram.APIKey)
	cfg.TTS.Deepgram.APIKey = resolveEnvRef(cfg.TTS.Deepgram.APIKey)
	cfg.TTS.OpenAI.APIKey = resolveEnvRef(cfg.TTS.OpenAI.APIKey)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LLM.Backend {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unsupported llm backend %q", c.LLM.Backend)
	}
	if c.STT.Enabled && c.STT.Backend != "deepgram" {
		return fmt.Errorf("unsupported stt backend %q", c.STT.Backend)
	}
	if c.TTS.Enabled {
		switch c.TTS.Backend {
		case "deepgram", "openai":
		default:
			return fmt.Errorf("unsupported tts backend %q", c.TTS.Backend)
		}
	}
	if c.Session.IdleTimeout < 0 {
		return fmt.Errorf("session.idle_timeout must not be negative")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
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
