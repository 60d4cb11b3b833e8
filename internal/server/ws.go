package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/internal/session"
	"github.com/opencode-ai/overseer/internal/storage"
	"github.com/opencode-ai/overseer/pkg/types"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 1 << 20
	wsSendBuffer   = 256
)

// ClientMessage is a WebSocket request. Type selects which fields apply.
type ClientMessage struct {
	Type string `json:"type"`

	// session:*
	ID      string                `json:"id,omitempty"`
	Options *session.SpawnOptions `json:"options,omitempty"`
	Data    string                `json:"data,omitempty"`
	Key     string                `json:"key,omitempty"`
	Cols    int                   `json:"cols,omitempty"`
	Rows    int                   `json:"rows,omitempty"`
	Mode    types.PermissionMode  `json:"mode,omitempty"`

	// overseer:*
	Message string `json:"message,omitempty"`
	Model   string `json:"model,omitempty"`

	// history:* and sessions:*
	Query       string `json:"query,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	ProjectPath string `json:"projectPath,omitempty"`
	ProjectHash string `json:"projectHash,omitempty"`

	// layout:save
	Layout *storage.Layout `json:"layout,omitempty"`
}

// wsClient is one WebSocket connection. Only writePump writes to conn.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger
}

func (c *wsClient) queue(msg map[string]any) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to encode websocket message")
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn().Interface("type", msg["type"]).Msg("websocket client is slow, dropping message")
	}
}

func (c *wsClient) writePump(ctx context.Context, done chan<- struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// websocket serves the bidirectional client protocol: bus events go out as
// {"type": "<kind>:<name>", ...fields}, requests come in as ClientMessage.
func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		log:  s.log.With().Str("remote", r.RemoteAddr).Logger(),
	}

	events, err := s.deps.Bus.Stream(ctx, streamBuffer)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to subscribe websocket to events")
		conn.Close()
		return
	}

	written := make(chan struct{})
	go c.writePump(ctx, written)

	s.greet(c)
	go func() {
		for env := range events {
			c.queue(clientEvent(env))
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	c.log.Debug().Msg("websocket connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("websocket closed")
			}
			break
		}
		s.handleClientMessage(ctx, c, data)
	}

	cancel()
	<-written
}

// greet sends the state a fresh client needs before events make sense.
func (s *Server) greet(c *wsClient) {
	c.queue(map[string]any{"type": "session:list", "sessions": s.deps.Sessions.List()})
	state := s.overseerState()
	c.queue(map[string]any{"type": "overseer:status", "status": state.Status})
	c.queue(map[string]any{"type": "overseer:model", "model": state.Model})
	if state.Status == types.OverseerSleeping && len(state.Conditions) > 0 {
		c.queue(map[string]any{"type": "overseer:sleeping", "conditions": state.Conditions})
	}
}

// clientEvent flattens an envelope into a WebSocket message.
func clientEvent(env event.Envelope) map[string]any {
	msg := map[string]any{}
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &msg)
		if msg == nil {
			msg = map[string]any{}
		}
	}
	msg["type"] = strings.Replace(string(env.Type), ".", ":", 1)
	return msg
}

func (s *Server) handleClientMessage(ctx context.Context, c *wsClient, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.queue(errorMessage("", fmt.Errorf("%w: %v", errInvalidRequest, err)))
		return
	}

	reply, err := s.dispatch(ctx, msg)
	if err != nil {
		c.log.Debug().Err(err).Str("request", msg.Type).Msg("websocket request failed")
		c.queue(errorMessage(msg.Type, err))
		return
	}
	if reply != nil {
		c.queue(reply)
	}
}

func errorMessage(request string, err error) map[string]any {
	_, code := classify(err)
	msg := map[string]any{"type": "error", "code": code, "error": err.Error()}
	if request != "" {
		msg["request"] = request
	}
	return msg
}

// dispatch executes one client request and returns the direct reply, if
// the request has one. State changes reach the client as bus events.
func (s *Server) dispatch(ctx context.Context, msg ClientMessage) (map[string]any, error) {
	switch msg.Type {
	case "session:spawn":
		var opts session.SpawnOptions
		if msg.Options != nil {
			opts = *msg.Options
		}
		_, err := s.deps.Sessions.Spawn(ctx, opts)
		return nil, err
	case "session:input":
		if msg.Data == "" {
			return nil, fmt.Errorf("%w: data is required", errInvalidRequest)
		}
		return nil, s.deps.Sessions.Send(ctx, msg.ID, msg.Data)
	case "session:key":
		return nil, s.deps.Sessions.SendKey(msg.ID, msg.Key)
	case "session:resize":
		return nil, s.deps.Sessions.Resize(msg.ID, msg.Cols, msg.Rows)
	case "session:kill":
		return nil, s.deps.Sessions.Kill(msg.ID)
	case "session:setMode":
		return nil, s.deps.Sessions.SetPermissionMode(msg.ID, msg.Mode)

	case "overseer:chat":
		return nil, s.startChat(msg.Message)
	case "overseer:wake":
		s.deps.Overseer.Wake()
		return nil, nil
	case "overseer:abort":
		s.deps.Overseer.Abort()
		return nil, nil
	case "overseer:clear":
		return nil, s.deps.Overseer.ClearHistory()
	case "overseer:setModel":
		if msg.Model == "" {
			return nil, fmt.Errorf("%w: model is required", errInvalidRequest)
		}
		return nil, s.deps.Overseer.SetModel(ctx, msg.Model)

	case "history:search":
		results, err := s.search(ctx, msg.Query, msg.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "history:searchResults", "results": results}, nil
	case "history:getSessions":
		sessions, err := s.pastSessions(ctx, msg.Limit, msg.Offset)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "history:sessions", "sessions": sessions}, nil
	case "history:getMessages":
		msgs, err := s.pastMessages(ctx, msg.SessionID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "history:messages", "sessionId": msg.SessionID, "messages": msgs}, nil
	case "history:sync":
		n, err := s.sync(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "history:syncComplete", "sessionCount": n}, nil

	case "sessions:discover":
		limit := msg.Limit
		if limit <= 0 {
			limit = 20
		}
		found, err := s.discover(limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "sessions:discovered", "sessions": found}, nil
	case "sessions:resume":
		_, err := s.resume(ctx, ResumeRequest{
			SessionID:   msg.SessionID,
			ProjectPath: msg.ProjectPath,
			ProjectHash: msg.ProjectHash,
		})
		return nil, err

	case "layout:save":
		st, err := s.layoutStore()
		if err != nil {
			return nil, err
		}
		if msg.Layout == nil {
			return nil, fmt.Errorf("%w: layout is required", errInvalidRequest)
		}
		return nil, st.SaveLayout(ctx, *msg.Layout)
	case "layout:load":
		layout, err := s.layout(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "layout:loaded", "layout": layout}, nil
	}
	return nil, fmt.Errorf("%w: unknown message type %q", errInvalidRequest, msg.Type)
}
