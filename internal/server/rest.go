package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kurogo-live/kurogo/internal/adapter"
)

// generateTimeout bounds one /api/autonomous/generate call.
const generateTimeout = 30 * time.Second

// resultPayload renders an adapter Result for the "result" response field.
func resultPayload(res adapter.Result) any {
	if res.Error != "" {
		return map[string]string{"error": res.Error}
	}
	if res.Fields == nil {
		return map[string]any{}
	}
	return res.Fields
}

func (s *Server) handleExpression(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpressionID *int   `json:"expressionId"`
		Duration     int    `json:"duration"`
		Priority     int    `json:"priority"`
		ClientUID    string `json:"client_uid"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.ExpressionID == nil {
		writeError(w, http.StatusBadRequest, "expressionId is required")
		return
	}
	if req.Duration < 0 {
		writeError(w, http.StatusBadRequest, "duration must not be negative")
		return
	}

	sess := s.deps.Registry.GetOrDefault(s.baseCtx, clientUID(r, req.ClientUID))
	res := sess.Adapter().TriggerExpression(r.Context(), *req.ExpressionID, req.Duration, req.Priority)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        res.Status,
		"expression_id": *req.ExpressionID,
		"result":        resultPayload(res),
	})
}

func (s *Server) handleMotion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MotionGroup string `json:"motionGroup"`
		MotionIndex int    `json:"motionIndex"`
		Loop        bool   `json:"loop"`
		Priority    int    `json:"priority"`
		ClientUID   string `json:"client_uid"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.MotionGroup == "" {
		writeError(w, http.StatusBadRequest, "motionGroup is required")
		return
	}
	if req.MotionIndex < 0 {
		writeError(w, http.StatusBadRequest, "motionIndex must not be negative")
		return
	}

	sess := s.deps.Registry.GetOrDefault(s.baseCtx, clientUID(r, req.ClientUID))
	res := sess.Adapter().TriggerMotion(r.Context(), req.MotionGroup, req.MotionIndex, req.Loop, req.Priority)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       res.Status,
		"motion_group": req.MotionGroup,
		"motion_index": req.MotionIndex,
		"result":       resultPayload(res),
	})
}

func (s *Server) handleAutonomousSpeak(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text        string `json:"text"`
		Expressions []int  `json:"expressions"`
		Motions     []struct {
			Group    string `json:"group"`
			Index    int    `json:"index"`
			Loop     bool   `json:"loop"`
			Priority int    `json:"priority"`
		} `json:"motions"`
		ClientUID string         `json:"client_uid"`
		SkipTTS   bool           `json:"skip_tts"`
		Metadata  map[string]any `json:"metadata"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" && len(req.Expressions) == 0 && len(req.Motions) == 0 {
		writeError(w, http.StatusBadRequest, "at least one of text, expressions, or motions is required")
		return
	}

	speak := adapter.SpeakRequest{
		Text:        req.Text,
		Expressions: req.Expressions,
		SkipTTS:     req.SkipTTS,
		Metadata:    req.Metadata,
	}
	motionRefs := make([]string, 0, len(req.Motions))
	for _, m := range req.Motions {
		speak.Motions = append(speak.Motions, adapter.MotionSpec{
			Group:    m.Group,
			Index:    m.Index,
			Loop:     m.Loop,
			Priority: m.Priority,
		})
		motionRefs = append(motionRefs, fmt.Sprintf("%s/%d", m.Group, m.Index))
	}

	sess := s.deps.Registry.GetOrDefault(s.baseCtx, clientUID(r, req.ClientUID))
	res := sess.Adapter().Speak(r.Context(), speak)

	ttsGenerated := false
	if v, ok := res.Fields["tts_generated"].(bool); ok {
		ttsGenerated = v
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        res.Status,
		"message_id":    uuid.NewString(),
		"text":          req.Text,
		"expressions":   req.Expressions,
		"motions":       motionRefs,
		"tts_generated": ttsGenerated,
		"metadata":      req.Metadata,
		"result":        resultPayload(res),
	})
}

func (s *Server) handleAutonomousGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt  string         `json:"prompt"`
		Context map[string]any `json:"context"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if s.deps.Generator == nil {
		writeError(w, http.StatusServiceUnavailable, errNoGenerator.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()

	text, err := s.deps.Generator.Generate(ctx, req.Prompt)
	if err != nil {
		writeError(w, http.StatusBadGateway, "generation failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"text": text,
		"metadata": map[string]any{
			"character": s.deps.Character.Name,
		},
	})
}

func (s *Server) handleAutonomousControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled       *bool    `json:"enabled"`
		MinInterval   *float64 `json:"min_interval"`
		MaxInterval   *float64 `json:"max_interval"`
		AutoResponses *bool    `json:"auto_responses"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	sched := s.deps.Scheduler
	if req.MinInterval != nil || req.MaxInterval != nil {
		snap := sched.Snapshot()
		min, max := snap.MinInterval, snap.MaxInterval
		if req.MinInterval != nil {
			min = time.Duration(*req.MinInterval * float64(time.Second))
		}
		if req.MaxInterval != nil {
			max = time.Duration(*req.MaxInterval * float64(time.Second))
		}
		if err := sched.SetIntervals(min, max); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Enabled != nil {
		sched.SetEnabled(*req.Enabled)
	}
	if req.AutoResponses != nil {
		if s.deps.Responses == nil {
			writeError(w, http.StatusServiceUnavailable, "no chat pipeline configured")
			return
		}
		s.deps.Responses.SetEnabled(*req.AutoResponses)
	}

	snap := sched.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"enabled":      snap.Enabled,
		"min_interval": snap.MinInterval.Seconds(),
		"max_interval": snap.MaxInterval.Seconds(),
	})
}

func (s *Server) handleAutonomousStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.deps.Scheduler.Snapshot()

	mode := "manual"
	if snap.Enabled {
		mode = "autonomous"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":                          mode,
		"active":                        snap.Enabled,
		"character":                     s.deps.Character.Name,
		"character_id":                  s.deps.Character.ConfName,
		"autonomous_generator_enabled":  snap.Enabled,
		"autonomous_generator_interval": snap.MinInterval.Seconds(),
		"min_interval_seconds":          snap.MinInterval.Seconds(),
		"max_interval_seconds":          snap.MaxInterval.Seconds(),
		"auto_responses_enabled":        s.deps.Responses != nil && s.deps.Responses.Enabled(),
	})
}
