// Package server assembles the HTTP surface of the control plane: the REST
// command API, the /client-ws renderer socket, chat source control, and the
// operational endpoints (/metrics, /healthz, /readyz).
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kurogo-live/kurogo/internal/health"
	"github.com/kurogo-live/kurogo/internal/observe"
	"github.com/kurogo-live/kurogo/internal/scheduler"
	"github.com/kurogo-live/kurogo/internal/session"
	"github.com/kurogo-live/kurogo/pkg/platform"
)

// CharacterInfo is the static character identity reported by the status
// endpoints.
type CharacterInfo struct {
	Name     string
	ConfName string
}

// ChatResponder is the toggle surface of the chat auto-response pipeline.
type ChatResponder interface {
	Enabled() bool
	SetEnabled(bool)
}

// Deps bundles the collaborators the HTTP surface drives.
type Deps struct {
	Registry  *session.Registry
	Scheduler *scheduler.Scheduler

	// Generator backs /api/autonomous/generate. Usually the ingest
	// selector's multi-candidate pipeline.
	Generator scheduler.Generator

	// Sources maps platform name to its configured chat source. Sources
	// connect on demand through /api/chat/{platform}/connect.
	Sources map[string]platform.Source

	// ChatHandler receives messages from started chat sources.
	ChatHandler platform.Handler

	// Responses reports and controls whether the chat pipeline auto-responds
	// to viewer messages. Usually the ingest pipeline.
	Responses ChatResponder

	Health    *health.Handler
	Metrics   *observe.Metrics
	Character CharacterInfo
}

// Server is the HTTP handler set for the control plane.
type Server struct {
	deps Deps

	// baseCtx outlives individual requests: chat sources and virtual
	// sessions started from a request keep running after it returns.
	baseCtx context.Context
}

// New creates a Server. baseCtx bounds the lifetime of everything the
// server starts on behalf of requests (chat sources, virtual sessions).
func New(baseCtx context.Context, deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = health.New()
	}
	return &Server{deps: deps, baseCtx: baseCtx}
}

// Handler returns the fully-routed HTTP handler, wrapped in the
// observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/expression", s.handleExpression)
	mux.HandleFunc("POST /api/motion", s.handleMotion)
	mux.HandleFunc("POST /api/autonomous/speak", s.handleAutonomousSpeak)
	mux.HandleFunc("POST /api/autonomous/generate", s.handleAutonomousGenerate)
	mux.HandleFunc("POST /api/autonomous/control", s.handleAutonomousControl)
	mux.HandleFunc("GET /api/autonomous/status", s.handleAutonomousStatus)

	mux.HandleFunc("GET /api/chat/status", s.handleChatStatus)
	mux.HandleFunc("POST /api/chat/{platform}/connect", s.handleChatConnect)
	mux.HandleFunc("POST /api/chat/{platform}/disconnect", s.handleChatDisconnect)

	mux.HandleFunc("GET /client-ws", s.handleClientWS)

	mux.Handle("GET /metrics", promhttp.Handler())
	s.deps.Health.Register(mux)

	if s.deps.Metrics == nil {
		return mux
	}
	return observe.Middleware(s.deps.Metrics)(mux)
}

// clientUID resolves the target session id: body field wins over the
// X-Client-UID header; both empty falls through to the default session.
func clientUID(r *http.Request, body string) string {
	if body != "" {
		return body
	}
	return r.Header.Get("X-Client-UID")
}

// readJSON decodes the request body into v. A decode failure writes a 400
// and returns false.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}

// errString renders an error for inclusion in a JSON response.
func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var errNoGenerator = errors.New("server: no generator configured")
