package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/opencode-ai/overseer/internal/event"
)

// StreamEvent is the SSE payload: {"type": "...", "properties": {...}}.
type StreamEvent struct {
	Type       event.EventType `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

const (
	// SSEHeartbeatInterval is the interval for SSE heartbeats.
	SSEHeartbeatInterval = 30 * time.Second
	// streamBuffer is the per-client event backlog before events are dropped.
	streamBuffer = 256
)

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

func (s *sseWriter) writeEvent(eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *sseWriter) writeHeartbeat() error {
	if _, err := fmt.Fprint(s.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

// allEvents streams every bus event. ?session=<id> keeps only that
// session's events plus all overseer events.
func (srv *Server) allEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")

	events, err := srv.deps.Bus.Stream(r.Context(), streamBuffer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sse := newSSEWriter(w)
	connected := StreamEvent{Type: "server.connected", Properties: json.RawMessage(`{}`)}
	if err := sse.writeEvent("message", connected); err != nil {
		return
	}

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			if sessionID != "" && !belongsToSession(env, sessionID) {
				continue
			}
			if err := sse.writeEvent("message", StreamEvent{Type: env.Type, Properties: env.Data}); err != nil {
				return
			}
		case <-ticker.C:
			if err := sse.writeHeartbeat(); err != nil {
				return
			}
		}
	}
}

// belongsToSession reports whether env concerns sessionID. Overseer events
// concern every session.
func belongsToSession(env event.Envelope, sessionID string) bool {
	if !strings.HasPrefix(string(env.Type), "session.") {
		return true
	}
	for _, path := range []string{"sessionId", "info.id", "message.sessionId"} {
		if v := gjson.GetBytes(env.Data, path); v.Exists() {
			return v.String() == sessionID
		}
	}
	return false
}
