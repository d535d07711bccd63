package server

import (
	"log/slog"
	"net/http"

	"github.com/kurogo-live/kurogo/pkg/platform"
)

func (s *Server) handleChatStatus(w http.ResponseWriter, _ *http.Request) {
	statuses := make([]platform.Status, 0, len(s.deps.Sources))
	for _, src := range s.deps.Sources {
		statuses = append(statuses, src.Status())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"platforms": statuses,
	})
}

func (s *Server) handleChatConnect(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("platform")
	src, ok := s.deps.Sources[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown platform: "+name)
		return
	}
	if s.deps.ChatHandler == nil {
		writeError(w, http.StatusServiceUnavailable, "chat pipeline not configured")
		return
	}

	// The source outlives the request; it is bound to the server's base
	// context so a disconnecting HTTP client does not tear the feed down.
	if err := src.Start(s.baseCtx, s.deps.ChatHandler); err != nil {
		slog.Error("chat source start failed", "platform", name, "err", err)
		writeError(w, http.StatusBadGateway, "connect failed: "+err.Error())
		return
	}

	slog.Info("chat source connected", "platform", name)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"result": src.Status(),
	})
}

func (s *Server) handleChatDisconnect(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("platform")
	src, ok := s.deps.Sources[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown platform: "+name)
		return
	}

	if err := src.Stop(); err != nil {
		writeError(w, http.StatusConflict, "disconnect failed: "+errString(err))
		return
	}

	slog.Info("chat source disconnected", "platform", name)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"result": src.Status(),
	})
}
