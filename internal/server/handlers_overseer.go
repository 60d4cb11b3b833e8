package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/opencode-ai/overseer/internal/overseer"
	"github.com/opencode-ai/overseer/pkg/types"
)

// ChatRequest is the body of POST /overseer/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ModelRequest is the body of PUT /overseer/model.
type ModelRequest struct {
	Model string `json:"model"`
}

// OverseerState is the response of GET /overseer.
type OverseerState struct {
	Status     types.OverseerStatus  `json:"status"`
	Model      string                `json:"model"`
	Conditions []types.WakeCondition `json:"conditions"`
}

func (s *Server) overseerState() OverseerState {
	conds := s.deps.Overseer.WakeConditions()
	if conds == nil {
		conds = []types.WakeCondition{}
	}
	return OverseerState{
		Status:     s.deps.Overseer.Status(),
		Model:      s.deps.Overseer.Model(),
		Conditions: conds,
	}
}

func (s *Server) getOverseer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.overseerState())
}

func (s *Server) getOverseerMessages(w http.ResponseWriter, r *http.Request) {
	msgs := s.deps.Overseer.Messages()
	if msgs == nil {
		msgs = []types.OverseerMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) overseerChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.startChat(req.Message); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// startChat runs one overseer chat in the background. Progress and failures
// reach clients as overseer events.
func (s *Server) startChat(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: message is required", errInvalidRequest)
	}
	switch s.deps.Overseer.Status() {
	case types.OverseerThinking, types.OverseerActing:
		return overseer.ErrBusy
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.deps.Overseer.Chat(s.ctx, text)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Msg("overseer chat failed")
		}
	}()
	return nil
}

func (s *Server) overseerWake(w http.ResponseWriter, r *http.Request) {
	s.deps.Overseer.Wake()
	writeSuccess(w)
}

func (s *Server) overseerAbort(w http.ResponseWriter, r *http.Request) {
	s.deps.Overseer.Abort()
	writeSuccess(w)
}

func (s *Server) overseerClear(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Overseer.ClearHistory(); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) overseerSetModel(w http.ResponseWriter, r *http.Request) {
	var req ModelRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "model is required")
		return
	}
	if err := s.deps.Overseer.SetModel(r.Context(), req.Model); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"model": s.deps.Overseer.Model()})
}
