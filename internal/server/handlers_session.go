package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/overseer/internal/history"
	"github.com/opencode-ai/overseer/internal/session"
	"github.com/opencode-ai/overseer/pkg/types"
)

// InputRequest is the body of POST /sessions/{id}/input.
type InputRequest struct {
	Text string `json:"text"`
}

// KeyRequest is the body of POST /sessions/{id}/key.
type KeyRequest struct {
	Key string `json:"key"`
}

// ResizeRequest is the body of POST /sessions/{id}/resize.
type ResizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// ModeRequest is the body of PUT /sessions/{id}/mode.
type ModeRequest struct {
	Mode types.PermissionMode `json:"mode"`
}

// ResumeRequest is the body of POST /sessions/resume. Either ProjectPath or
// ProjectHash locates the transcript's project.
type ResumeRequest struct {
	SessionID   string `json:"sessionId"`
	ProjectPath string `json:"projectPath,omitempty"`
	ProjectHash string `json:"projectHash,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.deps.Sessions.List()),
	})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sessions.List())
}

func (s *Server) spawnSession(w http.ResponseWriter, r *http.Request) {
	var opts session.SpawnOptions
	if err := decodeBody(r, &opts); err != nil {
		writeErr(w, err)
		return
	}
	info, err := s.deps.Sessions.Spawn(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) resumeSession(w http.ResponseWriter, r *http.Request) {
	var req ResumeRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	info, err := s.resume(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// resume spawns a session that continues a transcript found on disk.
func (s *Server) resume(ctx context.Context, req ResumeRequest) (types.SessionInfo, error) {
	if req.SessionID == "" {
		return types.SessionInfo{}, fmt.Errorf("%w: sessionId is required", errInvalidRequest)
	}
	cwd := req.ProjectPath
	if cwd == "" {
		if req.ProjectHash == "" {
			return types.SessionInfo{}, fmt.Errorf("%w: projectPath or projectHash is required", errInvalidRequest)
		}
		found, err := history.FindSession(s.deps.ProjectsDir, req.ProjectHash, req.SessionID)
		if err != nil {
			return types.SessionInfo{}, err
		}
		if found == nil {
			return types.SessionInfo{}, fmt.Errorf("%w: %s", history.ErrSessionNotFound, req.SessionID)
		}
		cwd = found.ProjectPath
	}
	return s.deps.Sessions.Spawn(ctx, session.SpawnOptions{Cwd: cwd, ResumeID: req.SessionID})
}

func (s *Server) discoverSessions(w http.ResponseWriter, r *http.Request) {
	found, err := s.discover(queryInt(r, "limit", 20))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) discover(limit int) ([]history.DiscoveredSession, error) {
	if s.deps.ProjectsDir == "" {
		return nil, fmt.Errorf("session discovery: %w", errUnavailable)
	}
	found, err := history.Discover(s.deps.ProjectsDir, limit)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []history.DiscoveredSession{}
	}
	return found, nil
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) killSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Kill(chi.URLParam(r, "sessionID")); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) sendInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "text is required")
		return
	}
	if err := s.deps.Sessions.Send(r.Context(), chi.URLParam(r, "sessionID"), req.Text); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) sendKey(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.deps.Sessions.SendKey(chi.URLParam(r, "sessionID"), req.Key); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) resizeSession(w http.ResponseWriter, r *http.Request) {
	var req ResizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.deps.Sessions.Resize(chi.URLParam(r, "sessionID"), req.Cols, req.Rows); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.deps.Sessions.SetPermissionMode(chi.URLParam(r, "sessionID"), req.Mode); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) getBuffer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	chunks, err := s.deps.Sessions.Buffer(id, queryInt(r, "lines", 0))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": id, "chunks": chunks})
}

// queryInt parses a non-negative integer query parameter, or returns def.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
