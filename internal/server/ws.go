package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/kurogo-live/kurogo/internal/protocol"
)

// wsStream adapts a websocket connection to the session outbound Stream.
type wsStream struct {
	conn *websocket.Conn
}

func (s wsStream) WriteFrame(ctx context.Context, f protocol.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", f.Kind(), err)
	}
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// handleClientWS accepts a renderer websocket, registers a session for it,
// and pumps inbound messages until the client goes away.
func (s *Server) handleClientWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Renderers are local tooling (OBS overlays, desktop pets); origin
		// checks would only get in their way.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	// The session lives on the server's base context, not the request's:
	// http.Server cancels r.Context() once the handler returns the hijacked
	// connection, but the writer must keep running.
	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	sess := s.deps.Registry.OnConnect(ctx, wsStream{conn: conn})
	defer s.deps.Registry.OnDisconnect(sess.ID())

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "bye")
				return
			}
			slog.Debug("websocket read ended", "session_id", sess.ID(), "err", err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		sess.HandleRaw(ctx, data)
	}
}
