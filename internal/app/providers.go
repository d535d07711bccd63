package app

import (
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/kurogo-live/kurogo/internal/config"
	"github.com/kurogo-live/kurogo/internal/resilience"
	"github.com/kurogo-live/kurogo/pkg/provider/llm"
	"github.com/kurogo-live/kurogo/pkg/provider/llm/anyllm"
	llmmock "github.com/kurogo-live/kurogo/pkg/provider/llm/mock"
	"github.com/kurogo-live/kurogo/pkg/provider/llm/openai"
	"github.com/kurogo-live/kurogo/pkg/provider/stt"
	sttmock "github.com/kurogo-live/kurogo/pkg/provider/stt/mock"
	"github.com/kurogo-live/kurogo/pkg/provider/stt/whisper"
	"github.com/kurogo-live/kurogo/pkg/provider/tts"
	ttsmock "github.com/kurogo-live/kurogo/pkg/provider/tts/mock"
	"github.com/kurogo-live/kurogo/pkg/provider/tts/sidecar"
)

// Providers holds the constructed provider for each pipeline stage. A nil
// field means the stage is not configured; the dependent features degrade
// (no ASR means mic input is ignored, no TTS means text-only frames).
type Providers struct {
	Agent llm.Provider
	TTS   tts.Provider
	ASR   stt.Provider
}

// DefaultRegistry returns a provider registry with every built-in factory
// registered. main.go calls this once; tests register their own doubles on a
// fresh config.NewRegistry instead.
func DefaultRegistry() *config.Registry {
	reg := config.NewRegistry()

	reg.RegisterAgent("openai", func(e config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if e.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(e.BaseURL))
		}
		return openai.New(e.APIKey, e.Model, opts...)
	})
	reg.RegisterAgent("anyllm", func(e config.ProviderEntry) (llm.Provider, error) {
		backend, _ := e.Options["backend"].(string)
		if backend == "" {
			return nil, fmt.Errorf("anyllm: options.backend is required (e.g. \"ollama\")")
		}
		var opts []anyllmlib.Option
		if e.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
		}
		if e.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
		}
		return anyllm.New(backend, e.Model, opts...)
	})
	reg.RegisterAgent("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return llmmock.New("Hello! Nothing but canned lines in here."), nil
	})

	reg.RegisterTTS("sidecar", func(e config.ProviderEntry) (tts.Provider, error) {
		var opts []sidecar.Option
		if lang, _ := e.Options["language"].(string); lang != "" {
			opts = append(opts, sidecar.WithLanguage(lang))
		}
		return sidecar.New(e.BaseURL, opts...)
	})
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return ttsmock.New(), nil
	})

	reg.RegisterASR("whisper", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		if lang, _ := e.Options["language"].(string); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(e.BaseURL, opts...)
	})
	reg.RegisterASR("whisper-native", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.NativeOption
		if lang, _ := e.Options["language"].(string); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(e.Model, opts...)
	})
	reg.RegisterASR("mock", func(config.ProviderEntry) (stt.Provider, error) {
		return sttmock.New("mock transcript"), nil
	})

	return reg
}

// BuildProviders constructs the configured providers. An entry that declares
// fallbacks is wrapped in a circuit-breaker fallback group; a blank entry
// leaves the slot nil.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	p := &Providers{}

	if e := cfg.Providers.Agent; e.Name != "" {
		primary, err := reg.CreateAgent(e)
		if err != nil {
			return nil, fmt.Errorf("app: build agent provider: %w", err)
		}
		if len(e.Fallbacks) == 0 {
			p.Agent = primary
		} else {
			fb := resilience.NewAgentFallback(primary, e.Name, resilience.FallbackConfig{})
			for _, f := range e.Fallbacks {
				prov, err := reg.CreateAgent(f)
				if err != nil {
					return nil, fmt.Errorf("app: build agent fallback %q: %w", f.Name, err)
				}
				fb.AddFallback(f.Name, prov)
			}
			p.Agent = fb
		}
	}

	if e := cfg.Providers.TTS; e.Name != "" {
		primary, err := reg.CreateTTS(e)
		if err != nil {
			return nil, fmt.Errorf("app: build tts provider: %w", err)
		}
		if len(e.Fallbacks) == 0 {
			p.TTS = primary
		} else {
			fb := resilience.NewTTSFallback(primary, e.Name, resilience.FallbackConfig{})
			for _, f := range e.Fallbacks {
				prov, err := reg.CreateTTS(f)
				if err != nil {
					return nil, fmt.Errorf("app: build tts fallback %q: %w", f.Name, err)
				}
				fb.AddFallback(f.Name, prov)
			}
			p.TTS = fb
		}
	}

	if e := cfg.Providers.ASR; e.Name != "" {
		primary, err := reg.CreateASR(e)
		if err != nil {
			return nil, fmt.Errorf("app: build asr provider: %w", err)
		}
		if len(e.Fallbacks) == 0 {
			p.ASR = primary
		} else {
			fb := resilience.NewASRFallback(primary, e.Name, resilience.FallbackConfig{})
			for _, f := range e.Fallbacks {
				prov, err := reg.CreateASR(f)
				if err != nil {
					return nil, fmt.Errorf("app: build asr fallback %q: %w", f.Name, err)
				}
				fb.AddFallback(f.Name, prov)
			}
			p.ASR = fb
		}
	}

	return p, nil
}
