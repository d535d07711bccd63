package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"agent": {"openai", "anyllm", "mock"},
	"tts":   {"sidecar", "mock"},
	"asr":   {"whisper", "whisper-native", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("agent", cfg.Providers.Agent.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("asr", cfg.Providers.ASR.Name)
	for _, fb := range cfg.Providers.Agent.Fallbacks {
		validateProviderName("agent", fb.Name)
	}
	for _, fb := range cfg.Providers.TTS.Fallbacks {
		validateProviderName("tts", fb.Name)
	}

	if cfg.Providers.Agent.Name == "" {
		slog.Warn("no agent provider configured; chat and autonomous speech will not generate responses")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no tts provider configured; audio frames will carry text only")
	}

	if sf := cfg.Character.Voice.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("character.voice.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}

	if cfg.Platforms.Discord != nil && cfg.Platforms.Discord.Token == "" {
		errs = append(errs, errors.New("platforms.discord.token is required when discord is configured"))
	}
	if cfg.Platforms.Twitch != nil && cfg.Platforms.Twitch.Channel == "" {
		errs = append(errs, errors.New("platforms.twitch.channel is required when twitch is configured"))
	}

	a := cfg.Autonomous
	if a.MinIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("autonomous.min_interval_seconds %d must not be negative", a.MinIntervalSeconds))
	}
	if a.MaxIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("autonomous.max_interval_seconds %d must not be negative", a.MaxIntervalSeconds))
	}
	if a.MinIntervalSeconds > 0 && a.MaxIntervalSeconds > 0 && a.MinIntervalSeconds > a.MaxIntervalSeconds {
		errs = append(errs, fmt.Errorf("autonomous.min_interval_seconds %d exceeds max_interval_seconds %d", a.MinIntervalSeconds, a.MaxIntervalSeconds))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidProviderNames] for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
