// Package app wires all kurogo subsystems into a running control plane.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and drives the autonomous loop, and Shutdown
// tears everything down in order.
//
// For testing, inject doubles via functional options (WithMetrics,
// WithSources). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kurogo-live/kurogo/internal/adapter"
	"github.com/kurogo-live/kurogo/internal/config"
	"github.com/kurogo-live/kurogo/internal/emotion"
	"github.com/kurogo-live/kurogo/internal/health"
	"github.com/kurogo-live/kurogo/internal/ingest"
	"github.com/kurogo-live/kurogo/internal/model"
	"github.com/kurogo-live/kurogo/internal/observe"
	"github.com/kurogo-live/kurogo/internal/protocol"
	"github.com/kurogo-live/kurogo/internal/scheduler"
	"github.com/kurogo-live/kurogo/internal/server"
	"github.com/kurogo-live/kurogo/internal/session"
	"github.com/kurogo-live/kurogo/pkg/platform"
	"github.com/kurogo-live/kurogo/pkg/platform/discord"
	"github.com/kurogo-live/kurogo/pkg/platform/twitch"
	"github.com/kurogo-live/kurogo/pkg/provider/tts"
)

// httpShutdownTimeout bounds the graceful drain of in-flight requests.
const httpShutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes of the kurogo control plane.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	desc       *model.Descriptor
	metrics    *observe.Metrics
	voice      tts.VoiceProfile
	sessions   *session.Registry
	sched      *scheduler.Scheduler
	gen        scheduler.Generator
	autonomous adapter.BackendAdapter
	pipeline   *ingest.Pipeline
	sources    map[string]platform.Source
	httpSrv    *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a metrics set instead of the process-global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithSources injects chat sources instead of building them from config.
func WithSources(sources map[string]platform.Source) Option {
	return func(a *App) { a.sources = sources }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via BuildProviders). ctx bounds everything
// the app starts on behalf of requests: virtual sessions, chat sources, and
// the per-message ingest goroutines.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Model descriptor ──────────────────────────────────────────────
	if err := a.initModel(); err != nil {
		return nil, fmt.Errorf("app: init model: %w", err)
	}

	// ── 2. Metrics ───────────────────────────────────────────────────────
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 3. Session registry ──────────────────────────────────────────────
	a.initSessions()

	// ── 4. Ingest pipeline + autonomous scheduler ────────────────────────
	a.initIngest()

	// ── 5. Chat sources ──────────────────────────────────────────────────
	if err := a.initSources(); err != nil {
		return nil, fmt.Errorf("app: init sources: %w", err)
	}

	// ── 6. HTTP server ───────────────────────────────────────────────────
	a.initHTTP(ctx)

	// Providers that hold native resources are released on shutdown.
	for _, prov := range []any{providers.Agent, providers.TTS, providers.ASR} {
		if c, ok := prov.(io.Closer); ok {
			a.closers = append(a.closers, c.Close)
		}
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initModel loads the avatar descriptor and applies the configured display
// name.
func (a *App) initModel() error {
	if a.cfg.Character.ModelFile == "" {
		a.desc = model.Default()
	} else {
		d, err := model.Load(a.cfg.Character.ModelFile)
		if err != nil {
			return err
		}
		a.desc = d
	}
	if a.cfg.Character.Name != "" {
		a.desc.CharacterName = a.cfg.Character.Name
	}
	return nil
}

// initSessions builds the session registry with metric hooks attached.
func (a *App) initSessions() {
	a.voice = tts.VoiceProfile{
		ID:          a.cfg.Character.Voice.VoiceID,
		Language:    a.cfg.Character.Voice.Language,
		SpeedFactor: a.cfg.Character.Voice.SpeedFactor,
	}

	m := a.metrics
	a.sessions = session.NewRegistry(session.Deps{
		Model:        a.desc,
		Agent:        a.providers.Agent,
		TTS:          a.providers.TTS,
		STT:          a.providers.ASR,
		Voice:        a.voice,
		SystemPrompt: a.cfg.Character.Persona,
		ConfName:     a.cfg.Character.ConfName,
		Hooks: &session.Hooks{
			OnConnect:    func() { m.ActiveSessions.Add(context.Background(), 1) },
			OnDisconnect: func() { m.ActiveSessions.Add(context.Background(), -1) },
			OnDrop:       func(kind string) { m.RecordFrameDropped(context.Background(), kind) },
		},
	})
}

// presenterUID resolves the session id chat and autonomous speech dispatch
// to.
func (a *App) presenterUID() string {
	if uid := a.cfg.Character.PresenterUID; uid != "" {
		return uid
	}
	return session.DefaultClientUID
}

// initIngest assembles the chat pipeline and the autonomous scheduler on top
// of the shared selector.
func (a *App) initIngest() {
	selector := ingest.NewSelector(a.providers.Agent, a.cfg.Character.Persona)

	a.pipeline = ingest.NewPipeline(
		ingest.NewSpamFilter(),
		ingest.NewQualityScorer(),
		selector,
		a.desc.CharacterName,
		a.speakFunc(),
		ingest.WithVerdictHook(func(platformName, outcome string) {
			a.metrics.RecordChatMessage(context.Background(), platformName, outcome)
		}),
	)

	var schedOpts []scheduler.Option
	schedOpts = append(schedOpts, scheduler.WithEnabled(a.cfg.Autonomous.Enabled))
	if len(a.cfg.Autonomous.Prompts) > 0 {
		schedOpts = append(schedOpts, scheduler.WithPrompts(a.cfg.Autonomous.Prompts))
	}
	if a.cfg.Autonomous.MinIntervalSeconds > 0 && a.cfg.Autonomous.MaxIntervalSeconds > 0 {
		schedOpts = append(schedOpts, scheduler.WithIntervals(
			time.Duration(a.cfg.Autonomous.MinIntervalSeconds)*time.Second,
			time.Duration(a.cfg.Autonomous.MaxIntervalSeconds)*time.Second,
		))
	}

	// Scheduler speech fans out to every session in autonomous mode; the
	// audio frame is built (and TTS run) once, then try-sent to each.
	a.autonomous, _ = adapter.New(adapter.ModeAutonomous, adapter.Deps{
		Fanout:       a.sessions,
		Model:        a.desc,
		Agent:        a.providers.Agent,
		TTS:          a.providers.TTS,
		Voice:        a.voice,
		SystemPrompt: a.cfg.Character.Persona,
	})

	a.gen = a.generator(selector)
	a.sched = scheduler.New(a.gen, a.autonomous, a.sessions, a.desc, schedOpts...)
}

// speakFunc builds the pipeline's dispatch: strip emotion tokens, speak
// through the presenter session, fan the text out to overlay clients.
func (a *App) speakFunc() ingest.SpeakFunc {
	return func(ctx context.Context, text string) error {
		display := emotion.Strip(text, a.desc.EmotionMap)
		expressions := emotion.Extract(text, a.desc.EmotionMap)

		sess := a.sessions.GetOrDefault(ctx, a.presenterUID())
		res := sess.Adapter().Speak(ctx, adapter.SpeakRequest{
			Text:        display,
			Expressions: expressions,
		})
		if !res.OK() {
			return errors.New(res.Error)
		}

		a.sessions.Fanout(adapter.ModeAutonomous, &protocol.AutonomousChatFrame{
			Type: protocol.TypeAutonomousChat,
			Text: display,
		})
		return nil
	}
}

// generator adapts the multi-candidate selector to the scheduler's Generator
// interface. Autonomous prompts flow through the same candidate scoring as
// chat replies.
func (a *App) generator(selector *ingest.Selector) scheduler.Generator {
	return scheduler.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		text := selector.SelectBest(ctx, platform.ChatMessage{
			Platform:  "autonomous",
			UserID:    "system",
			Username:  "system",
			Text:      prompt,
			Timestamp: time.Now(),
		})
		if text == "" {
			return "", errors.New("app: no response candidate generated")
		}
		return text, nil
	})
}

// initSources constructs the configured chat sources. They stay disconnected
// until /api/chat/{platform}/connect.
func (a *App) initSources() error {
	if a.sources != nil {
		return nil // injected
	}
	a.sources = make(map[string]platform.Source)

	if dc := a.cfg.Platforms.Discord; dc != nil {
		src, err := discord.New(*dc)
		if err != nil {
			return err
		}
		a.sources[src.Platform()] = src
	}
	if tc := a.cfg.Platforms.Twitch; tc != nil {
		src, err := twitch.New(*tc)
		if err != nil {
			return err
		}
		a.sources[src.Platform()] = src
	}
	return nil
}

// initHTTP builds the route table and the listener.
func (a *App) initHTTP(ctx context.Context) {
	checkers := []health.Checker{
		{Name: "agent", Check: func(context.Context) error {
			if a.providers.Agent == nil {
				return errors.New("no agent provider configured")
			}
			return nil
		}},
		{Name: "tts", Check: func(context.Context) error {
			if a.providers.TTS == nil {
				return errors.New("no tts provider configured")
			}
			return nil
		}},
	}

	srv := server.New(ctx, server.Deps{
		Registry:    a.sessions,
		Scheduler:   a.sched,
		Generator:   a.gen,
		Sources:     a.sources,
		ChatHandler: a.pipeline.Handler(ctx),
		Responses:   a.pipeline,
		Health:      health.New(checkers...),
		Metrics:     a.metrics,
		Character: server.CharacterInfo{
			Name:     a.desc.CharacterName,
			ConfName: a.cfg.Character.ConfName,
		},
	})

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":12393"
	}
	a.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler exposes the fully-routed HTTP handler, mainly for tests that
// drive the API without a listener.
func (a *App) Handler() http.Handler {
	return a.httpSrv.Handler
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and drives the autonomous loop until ctx is cancelled,
// then drains in-flight requests and returns.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: scheduler: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.httpSrv.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return a.httpSrv.Shutdown(drainCtx)
	})

	slog.Info("app running",
		"character", a.desc.CharacterName,
		"platforms", len(a.sources),
		"autonomous", a.cfg.Autonomous.Enabled)
	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down chat sources and subsystems in order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers), "sources", len(a.sources))

		// Disconnect chat sources first so no new messages enter the
		// pipeline while providers close underneath it.
		for name, src := range a.sources {
			if !src.Status().Connected {
				continue
			}
			if err := src.Stop(); err != nil {
				slog.Warn("chat source stop error", "platform", name, "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
