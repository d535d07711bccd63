// Package config provides the configuration schema, loader, and provider
// registry for the kurogo control plane.
package config

import (
	"github.com/kurogo-live/kurogo/pkg/platform/discord"
	"github.com/kurogo-live/kurogo/pkg/platform/twitch"
)

// LogLevel controls log verbosity for the kurogo server.
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

// Config is the root configuration structure for kurogo. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Character  CharacterConfig  `yaml:"character"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Platforms  PlatformsConfig  `yaml:"platforms"`
	Autonomous AutonomousConfig `yaml:"autonomous"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":12393").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CharacterConfig describes the streamed character: persona, avatar model,
// and voice.
type CharacterConfig struct {
	// Name is the character's display name (e.g., "Kuro"). It is matched
	// case-insensitively when scoring chat mentions.
	Name string `yaml:"name"`

	// Persona is a free-text persona description injected as the agent's
	// system prompt.
	Persona string `yaml:"persona"`

	// ModelFile is the path to the avatar model descriptor JSON. Empty means
	// use the built-in default descriptor.
	ModelFile string `yaml:"model_file"`

	// ConfName is the configuration profile name announced to renderer
	// clients in the connect greeting.
	ConfName string `yaml:"conf_name"`

	// PresenterUID is the session id ingest and the autonomous scheduler
	// dispatch to. Default: "default".
	PresenterUID string `yaml:"presenter_uid"`

	// Voice configures the TTS voice profile.
	Voice VoiceConfig `yaml:"voice"`
}

// VoiceConfig specifies TTS voice parameters.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// Language is the BCP-47 language code for synthesis (e.g., "en").
	Language string `yaml:"language"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. 0 means
	// provider default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named factory registered in the
// [Registry].
type ProvidersConfig struct {
	Agent ProviderEntry `yaml:"agent"`
	TTS   ProviderEntry `yaml:"tts"`
	ASR   ProviderEntry `yaml:"asr"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. Name selects the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "sidecar", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. Leave empty to
	// use the built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// "ggml-base.en.bin").
	Model string `yaml:"model"`

	// Fallbacks lists additional provider entries tried in order when this
	// one fails; each gets its own circuit breaker.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// Options holds provider-specific values not covered by the standard
	// fields. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// PlatformsConfig declares the chat sources available to connect. A nil
// entry means the platform is not configured.
type PlatformsConfig struct {
	Discord *discord.Config `yaml:"discord"`
	Twitch  *twitch.Config  `yaml:"twitch"`
}

// AutonomousConfig holds the startup policy for the autonomous speech loop.
type AutonomousConfig struct {
	// Enabled starts the loop active. Default: false.
	Enabled bool `yaml:"enabled"`

	// MinIntervalSeconds and MaxIntervalSeconds bound the random sleep
	// between autonomous messages. Zero means the scheduler defaults
	// (120 and 240).
	MinIntervalSeconds int `yaml:"min_interval_seconds"`
	MaxIntervalSeconds int `yaml:"max_interval_seconds"`

	// Prompts replaces the built-in prompt pool when non-empty.
	Prompts []string `yaml:"prompts"`
}
