package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kurogo-live/kurogo/internal/app"
	"github.com/kurogo-live/kurogo/internal/config"
	"github.com/kurogo-live/kurogo/internal/observe"
	"github.com/kurogo-live/kurogo/pkg/platform"
	platformmock "github.com/kurogo-live/kurogo/pkg/platform/mock"
	llmmock "github.com/kurogo-live/kurogo/pkg/provider/llm/mock"
	ttsmock "github.com/kurogo-live/kurogo/pkg/provider/tts/mock"
)

// testConfig returns a minimal config for wiring tests.
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.ListenAddr = ":0"
	cfg.Server.LogLevel = config.LogInfo
	cfg.Character.Name = "Kuro"
	cfg.Character.Persona = "You are Kuro, a sarcastic streamer."
	cfg.Character.ConfName = "kuro-test"
	cfg.Autonomous.MinIntervalSeconds = 60
	cfg.Autonomous.MaxIntervalSeconds = 120
	return cfg
}

func testProviders() *app.Providers {
	return &app.Providers{
		Agent: llmmock.New("a canned reply"),
		TTS:   ttsmock.New(),
	}
}

// testMetrics builds an isolated metrics set so tests never touch the
// process-global meter provider.
func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()

	application, err := app.New(
		context.Background(),
		testConfig(),
		testProviders(),
		app.WithMetrics(testMetrics(t)),
		app.WithSources(map[string]platform.Source{"twitch": platformmock.New("twitch")}),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if application == nil {
		t.Fatal("New() returned nil app")
	}
}

func TestNew_ServesConfiguredRoutes(t *testing.T) {
	t.Parallel()

	application, err := app.New(
		context.Background(),
		testConfig(),
		testProviders(),
		app.WithMetrics(testMetrics(t)),
		app.WithSources(map[string]platform.Source{}),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", rec.Code)
	}

	// Both mock providers are wired, so readiness passes.
	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/autonomous/status", nil)
	rec = httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/api/autonomous/status status = %d, want 200", rec.Code)
	}
}

func TestNew_ReadinessFailsWithoutAgent(t *testing.T) {
	t.Parallel()

	application, err := app.New(
		context.Background(),
		testConfig(),
		&app.Providers{TTS: ttsmock.New()},
		app.WithMetrics(testMetrics(t)),
		app.WithSources(map[string]platform.Source{}),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz status = %d, want 503", rec.Code)
	}
}

func TestApp_ShutdownStopsConnectedSources(t *testing.T) {
	t.Parallel()

	src := platformmock.New("twitch")
	application, err := app.New(
		context.Background(),
		testConfig(),
		testProviders(),
		app.WithMetrics(testMetrics(t)),
		app.WithSources(map[string]platform.Source{"twitch": src}),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	if err := src.Start(context.Background(), func(platform.ChatMessage) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if src.Status().Connected {
		t.Error("source still connected after Shutdown")
	}

	// Shutdown is idempotent.
	if err := application.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
