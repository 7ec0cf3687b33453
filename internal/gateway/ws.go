package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roamline/roamline/internal/store"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPollInterval = 2 * time.Second
)

// SessionEvent is one frame of the session snapshot stream.
type SessionEvent struct {
	Type    string `json:"type"` // "snapshot" | "expired"
	Session any    `json:"session,omitempty"`
}

// handleWebSocket streams session snapshots to a UI client. A frame is
// pushed on connect and whenever the session's version changes; the
// stream ends when the session expires or the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId query parameter is required")
		return
	}
	if _, err := s.store.Peek(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	log := s.log.WithSession(sessionID)
	log.Debug().Str("remote", r.RemoteAddr).Msg("websocket client connected")

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var lastVersion int64
	ticker := time.NewTicker(wsPollInterval)
	defer ticker.Stop()

	// Peek, not Get: a watching UI must not keep an idle session alive.
	for {
		session, err := s.store.Peek(sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				_ = s.writeEvent(conn, SessionEvent{Type: "expired"})
			}
			return
		}
		if session.Version != lastVersion {
			lastVersion = session.Version
			if err := s.writeEvent(conn, SessionEvent{Type: "snapshot", Session: session}); err != nil {
				log.Debug().Err(err).Msg("websocket client gone")
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, event SessionEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(event)
}
