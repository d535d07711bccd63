package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kurogo-live/kurogo/internal/health"
	"github.com/kurogo-live/kurogo/internal/ingest"
	"github.com/kurogo-live/kurogo/internal/model"
	"github.com/kurogo-live/kurogo/internal/scheduler"
	"github.com/kurogo-live/kurogo/internal/session"
	"github.com/kurogo-live/kurogo/pkg/platform"
	platformmock "github.com/kurogo-live/kurogo/pkg/platform/mock"
	llmmock "github.com/kurogo-live/kurogo/pkg/provider/llm/mock"
	ttsmock "github.com/kurogo-live/kurogo/pkg/provider/tts/mock"
)

type testEnv struct {
	server   *Server
	twitch   *platformmock.Source
	tts      *ttsmock.Provider
	pipeline *ingest.Pipeline
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ttsProv := ttsmock.New()
	registry := session.NewRegistry(session.Deps{
		Model:    model.Default(),
		Agent:    llmmock.New("generated line"),
		TTS:      ttsProv,
		ConfName: "kuro-default",
	})

	gen := scheduler.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		if prompt == "boom" {
			return "", errors.New("agent offline")
		}
		return "reply to: " + prompt, nil
	})
	sched := scheduler.New(gen, nil, registry, model.Default())

	twitch := platformmock.New("twitch")

	pipeline := ingest.NewPipeline(
		ingest.NewSpamFilter(),
		ingest.NewQualityScorer(),
		ingest.NewSelector(llmmock.New("generated line"), ""),
		"Kuro",
		func(context.Context, string) error { return nil },
	)

	srv := New(ctx, Deps{
		Registry:    registry,
		Scheduler:   sched,
		Generator:   gen,
		Sources:     map[string]platform.Source{"twitch": twitch},
		ChatHandler: func(platform.ChatMessage) {},
		Responses:   pipeline,
		Health:      health.New(),
		Character:   CharacterInfo{Name: "Kuro", ConfName: "kuro-default"},
	})
	return &testEnv{server: srv, twitch: twitch, tts: ttsProv, pipeline: pipeline}
}

// do issues one request against the handler and decodes the JSON response.
func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()

	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("{}")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode %s %s response: %v\nbody: %s", method, path, err, rec.Body.String())
	}
	return rec.Code, decoded
}

func TestExpressionEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/expression", `{"expressionId": 3, "duration": 500}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp["status"] != "success" {
		t.Errorf("status field = %v", resp["status"])
	}
	if resp["expression_id"] != float64(3) {
		t.Errorf("expression_id = %v", resp["expression_id"])
	}
}

func TestExpressionUnknownIDReportsDomainError(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// Unknown IDs are a domain failure, not a transport one: HTTP 200 with
	// an error status in the body.
	code, resp := env.do(t, http.MethodPost, "/api/expression", `{"expressionId": 99}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp["status"] != "error" {
		t.Errorf("status field = %v, want error", resp["status"])
	}
	result, _ := resp["result"].(map[string]any)
	if msg, _ := result["error"].(string); !strings.Contains(msg, "not") {
		t.Errorf("result error = %q", msg)
	}
}

func TestExpressionMissingIDRejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/expression", `{"duration": 100}`)
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestMotionEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/motion", `{"motionGroup": "idle", "motionIndex": 1}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp["status"] != "success" {
		t.Errorf("status field = %v", resp["status"])
	}
	if resp["motion_group"] != "idle" || resp["motion_index"] != float64(1) {
		t.Errorf("echo fields = %v / %v", resp["motion_group"], resp["motion_index"])
	}
}

func TestMotionUnknownGroup(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/motion", `{"motionGroup": "dance", "motionIndex": 0}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp["status"] != "error" {
		t.Errorf("status field = %v, want error", resp["status"])
	}
}

func TestMotionMissingGroupRejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/motion", `{"motionIndex": 0}`)
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestSpeakSynthesizesText(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/autonomous/speak", `{"text": "hello chat"}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp["status"] != "success" {
		t.Fatalf("status field = %v: %v", resp["status"], resp)
	}
	if resp["tts_generated"] != true {
		t.Errorf("tts_generated = %v, want true", resp["tts_generated"])
	}
	if id, _ := resp["message_id"].(string); id == "" {
		t.Error("message_id missing")
	}
	if got := env.tts.Texts(); len(got) != 1 || got[0] != "hello chat" {
		t.Errorf("synthesized texts = %v", got)
	}
}

func TestSpeakSkipTTS(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/autonomous/speak",
		`{"text": "silent line", "skip_tts": true, "motions": [{"group": "tap", "index": 0}]}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp["tts_generated"] != false {
		t.Errorf("tts_generated = %v, want false", resp["tts_generated"])
	}
	motions, _ := resp["motions"].([]any)
	if len(motions) != 1 || motions[0] != "tap/0" {
		t.Errorf("motions = %v", motions)
	}
	if len(env.tts.Texts()) != 0 {
		t.Errorf("TTS called despite skip_tts: %v", env.tts.Texts())
	}
}

func TestSpeakEmptyPayloadRejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/autonomous/speak", `{}`)
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestGenerateEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/autonomous/generate", `{"prompt": "what's up"}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp["text"] != "reply to: what's up" {
		t.Errorf("text = %v", resp["text"])
	}
	meta, _ := resp["metadata"].(map[string]any)
	if meta["character"] != "Kuro" {
		t.Errorf("metadata.character = %v", meta["character"])
	}
}

func TestGenerateRequiresPrompt(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/autonomous/generate", `{"prompt": "  "}`)
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestGenerateFailureMapsToBadGateway(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/autonomous/generate", `{"prompt": "boom"}`)
	if code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", code)
	}
	if msg, _ := resp["error"].(string); !strings.Contains(msg, "agent offline") {
		t.Errorf("error = %q", msg)
	}
}

func TestControlAndStatusRoundTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/autonomous/control",
		`{"enabled": true, "min_interval": 30, "max_interval": 60}`)
	if code != http.StatusOK {
		t.Fatalf("control status = %d, want 200", code)
	}
	if resp["enabled"] != true || resp["min_interval"] != float64(30) || resp["max_interval"] != float64(60) {
		t.Errorf("control response = %v", resp)
	}

	code, resp = env.do(t, http.MethodGet, "/api/autonomous/status", "")
	if code != http.StatusOK {
		t.Fatalf("status status = %d, want 200", code)
	}
	if resp["mode"] != "autonomous" || resp["active"] != true {
		t.Errorf("status response = %v", resp)
	}
	if resp["character"] != "Kuro" || resp["character_id"] != "kuro-default" {
		t.Errorf("character fields = %v / %v", resp["character"], resp["character_id"])
	}
	if resp["min_interval_seconds"] != float64(30) || resp["max_interval_seconds"] != float64(60) {
		t.Errorf("interval fields = %v", resp)
	}
}

func TestControlTogglesAutoResponses(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// The pipeline responds by default; status reflects its live state.
	_, resp := env.do(t, http.MethodGet, "/api/autonomous/status", "")
	if resp["auto_responses_enabled"] != true {
		t.Fatalf("auto_responses_enabled = %v, want true", resp["auto_responses_enabled"])
	}

	code, _ := env.do(t, http.MethodPost, "/api/autonomous/control", `{"auto_responses": false}`)
	if code != http.StatusOK {
		t.Fatalf("control status = %d, want 200", code)
	}
	if env.pipeline.Enabled() {
		t.Error("pipeline still enabled after control disabled auto responses")
	}

	_, resp = env.do(t, http.MethodGet, "/api/autonomous/status", "")
	if resp["auto_responses_enabled"] != false {
		t.Errorf("auto_responses_enabled = %v, want false", resp["auto_responses_enabled"])
	}
}

func TestControlRejectsInvertedIntervals(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/autonomous/control",
		`{"min_interval": 120, "max_interval": 30}`)
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestControlPartialUpdateKeepsOtherBound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/autonomous/control", `{"min_interval": 10}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp["min_interval"] != float64(10) {
		t.Errorf("min_interval = %v", resp["min_interval"])
	}
	if resp["max_interval"] != scheduler.DefaultMaxInterval.Seconds() {
		t.Errorf("max_interval = %v, want default", resp["max_interval"])
	}
}

func TestChatConnectLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodGet, "/api/chat/status", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	platforms, _ := resp["platforms"].([]any)
	if len(platforms) != 1 {
		t.Fatalf("platforms = %v", platforms)
	}

	code, _ = env.do(t, http.MethodPost, "/api/chat/twitch/connect", "")
	if code != http.StatusOK {
		t.Fatalf("connect status = %d, want 200", code)
	}
	if !env.twitch.Status().Connected {
		t.Error("source not connected after connect")
	}

	// Double connect is a source error.
	code, _ = env.do(t, http.MethodPost, "/api/chat/twitch/connect", "")
	if code != http.StatusBadGateway {
		t.Errorf("double connect status = %d, want 502", code)
	}

	code, _ = env.do(t, http.MethodPost, "/api/chat/twitch/disconnect", "")
	if code != http.StatusOK {
		t.Fatalf("disconnect status = %d, want 200", code)
	}
	if env.twitch.Status().Connected {
		t.Error("source still connected after disconnect")
	}

	code, _ = env.do(t, http.MethodPost, "/api/chat/twitch/disconnect", "")
	if code != http.StatusConflict {
		t.Errorf("double disconnect status = %d, want 409", code)
	}
}

func TestChatUnknownPlatform(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/chat/youtube/connect", "")
	if code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestMalformedBodyRejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for _, path := range []string{"/api/expression", "/api/motion", "/api/autonomous/speak", "/api/autonomous/control"} {
		code, _ := env.do(t, http.MethodPost, path, `{"nope`)
		if code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, code)
		}
	}
}

func TestHealthEndpointsRegistered(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestClientUIDResolution(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/expression", nil)
	req.Header.Set("X-Client-UID", "header-uid")

	if got := clientUID(req, "body-uid"); got != "body-uid" {
		t.Errorf("body should win, got %q", got)
	}
	if got := clientUID(req, ""); got != "header-uid" {
		t.Errorf("header fallback, got %q", got)
	}
	req.Header.Del("X-Client-UID")
	if got := clientUID(req, ""); got != "" {
		t.Errorf("empty resolution, got %q", got)
	}
}
