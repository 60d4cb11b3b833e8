package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/overseer/internal/history"
	"github.com/opencode-ai/overseer/internal/storage"
)

func (s *Server) historyStore() (History, error) {
	if s.deps.History == nil {
		return nil, fmt.Errorf("history: %w", errUnavailable)
	}
	return s.deps.History, nil
}

func (s *Server) searchHistory(w http.ResponseWriter, r *http.Request) {
	results, err := s.search(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit", 0))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) search(ctx context.Context, query string, limit int) ([]history.SearchResult, error) {
	h, err := s.historyStore()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return []history.SearchResult{}, nil
	}
	results, err := h.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []history.SearchResult{}
	}
	return results, nil
}

func (s *Server) historySessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.pastSessions(r.Context(), queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) pastSessions(ctx context.Context, limit, offset int) ([]history.Session, error) {
	h, err := s.historyStore()
	if err != nil {
		return nil, err
	}
	sessions, err := h.Sessions(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []history.Session{}
	}
	return sessions, nil
}

func (s *Server) historyMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.pastMessages(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) pastMessages(ctx context.Context, sessionID string) ([]history.Message, error) {
	h, err := s.historyStore()
	if err != nil {
		return nil, err
	}
	msgs, err := h.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []history.Message{}
	}
	return msgs, nil
}

func (s *Server) syncHistory(w http.ResponseWriter, r *http.Request) {
	n, err := s.sync(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sessionCount": n})
}

func (s *Server) sync(ctx context.Context) (int, error) {
	h, err := s.historyStore()
	if err != nil {
		return 0, err
	}
	return h.Sync(ctx)
}

func (s *Server) layoutStore() (*storage.Storage, error) {
	if s.deps.Storage == nil {
		return nil, fmt.Errorf("layout: %w", errUnavailable)
	}
	return s.deps.Storage, nil
}

// loadLayout answers null when nothing was saved yet.
func (s *Server) loadLayout(w http.ResponseWriter, r *http.Request) {
	layout, err := s.layout(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

func (s *Server) layout(ctx context.Context) (*storage.Layout, error) {
	st, err := s.layoutStore()
	if err != nil {
		return nil, err
	}
	layout, ok, err := st.LoadLayout(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return &layout, nil
}

func (s *Server) saveLayout(w http.ResponseWriter, r *http.Request) {
	st, err := s.layoutStore()
	if err != nil {
		writeErr(w, err)
		return
	}
	var layout storage.Layout
	if err := decodeBody(r, &layout); err != nil {
		writeErr(w, err)
		return
	}
	if err := st.SaveLayout(r.Context(), layout); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w)
}
