// Package sidecar provides a TTS provider that talks to a local synthesis
// sidecar over its REST API.
//
// The sidecar is any HTTP service exposing POST /synthesize that accepts
// a JSON body {"text", "voice", "language", "speed"} and responds with a
// 16-bit PCM WAV clip (Content-Type audio/wav). Both the bundled Python
// synthesis service and a Coqui XTTS v2 server behind a thin shim satisfy
// this contract.
//
// The provider computes the lip-sync volume envelope client-side from the
// returned PCM, so renderers always receive usable volumes.
//
// Typical usage:
//
//	p, err := sidecar.New("http://localhost:8002",
//	    sidecar.WithLanguage("en"),
//	    sidecar.WithTimeout(15*time.Second),
//	)
//	res, err := p.Synthesize(ctx, "Hello!", voice)
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kurogo-live/kurogo/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second

	synthesizeEndpoint = "/synthesize"

	// maxResponseBytes caps how much audio one synthesis call may return.
	// 32 MiB of 22.05 kHz mono PCM is over ten minutes of speech.
	maxResponseBytes = 32 << 20
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code sent to the sidecar (e.g., "en",
// "de"). Defaults to "en". A non-empty VoiceProfile.Language wins over this.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider against a synthesis sidecar.
type Provider struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

// New creates a Provider that connects to the sidecar at serverURL
// (e.g., "http://localhost:8002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("sidecar: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesizeRequest is the JSON body of POST /synthesize.
type synthesizeRequest struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice,omitempty"`
	Language string  `json:"language,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("sidecar: text must not be empty")
	}

	lang := voice.Language
	if lang == "" {
		lang = p.language
	}
	body, err := json.Marshal(synthesizeRequest{
		Text:     text,
		Voice:    voice.ID,
		Language: lang,
		Speed:    voice.SpeedFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("sidecar: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.serverURL+synthesizeEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sidecar: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sidecar: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sidecar: synthesize: server returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("sidecar: read audio: %w", err)
	}

	volumes, err := tts.LipSyncVolumes(audio, tts.DefaultSliceLengthMs)
	if err != nil {
		return nil, fmt.Errorf("sidecar: derive volumes: %w", err)
	}

	return &tts.Result{
		Audio:         audio,
		Format:        "wav",
		Volumes:       volumes,
		SliceLengthMs: tts.DefaultSliceLengthMs,
	}, nil
}
