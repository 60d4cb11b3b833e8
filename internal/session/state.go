package session

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/internal/process"
	"github.com/opencode-ai/overseer/internal/stream"
	"github.com/opencode-ai/overseer/pkg/types"
)

// session is the private aggregate behind one SessionInfo.
//
// emitMu serializes every mutation together with the publication of the events
// it produced, so subscribers observe a session's events in mutation order.
// mu guards the fields and is never held while publishing.
type session struct {
	emitMu sync.Mutex
	mu     sync.Mutex

	info    types.SessionInfo
	buffer  *Ring
	decoder stream.Decoder
	last    fingerprint
	hasLast bool

	// partial holds, per stream, a multi-byte rune split across reads.
	partial map[string][]byte

	proc     process.Process
	starting bool
	// run increments for every started process so late output from a
	// previous run is ignored.
	run     uint64
	removed bool
}

func newSession(info types.SessionInfo, bufferSize int) *session {
	return &session{info: info, buffer: NewRing(bufferSize)}
}

// completeRunes prepends any held bytes of stream to chunk and holds back a
// trailing incomplete rune. Must be called with mu held.
func (s *session) completeRunes(stream string, chunk []byte) []byte {
	held := s.partial[stream]
	data := make([]byte, 0, len(held)+len(chunk))
	data = append(append(data, held...), chunk...)

	complete, rest := splitRunes(data)
	if len(rest) > 0 {
		if s.partial == nil {
			s.partial = make(map[string][]byte)
		}
		s.partial[stream] = rest
	} else {
		delete(s.partial, stream)
	}
	return complete
}

// takePartial returns and clears the held bytes of stream. Must be called
// with mu held.
func (s *session) takePartial(stream string) []byte {
	held := s.partial[stream]
	delete(s.partial, stream)
	return held
}

// splitRunes splits b before a trailing multi-byte rune that is not yet complete.
func splitRunes(b []byte) (complete, rest []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			break
		}
		return b[:i], b[i:]
	}
	return b, nil
}

func (s *session) snapshot() types.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.info
	info.Running = s.proc != nil || s.starting
	return info
}

// setStatus must be called with mu held. It returns the event to publish, if any.
func (s *session) setStatus(status types.SessionStatus) []event.Event {
	if s.info.Status == status {
		return nil
	}
	prev := s.info.Status
	s.info.Status = status
	return []event.Event{{
		Type: event.SessionStatus,
		Data: event.SessionStatusData{SessionID: s.info.ID, Status: status, Previous: prev},
	}}
}

// output records one chunk of stream and decodes stdout records. Must be
// called with mu held.
func (s *session) output(stream string, chunk []byte, now time.Time) []event.Event {
	data := string(chunk)
	s.buffer.Push(data)
	events := []event.Event{{
		Type: event.SessionOutput,
		Data: event.SessionOutputData{SessionID: s.info.ID, Stream: stream, Data: data},
	}}
	if stream == "stdout" {
		for _, rec := range s.decoder.Write(chunk) {
			events = append(events, s.apply(rec, now)...)
		}
	}
	return events
}

// apply dispatches one stream record. Must be called with mu held.
func (s *session) apply(rec stream.Record, now time.Time) []event.Event {
	switch rec.Type {
	case stream.TypeResult:
		events := s.setStatus(types.StatusIdle)
		if rec.SessionID != "" {
			s.info.ContinuationID = rec.SessionID
		}
		return events

	case stream.TypeAssistant:
		if !rec.Get("message").Exists() {
			return nil
		}
		var events []event.Event
		for _, status := range statusTransitions(rec) {
			events = append(events, s.setStatus(status)...)
		}

		content := extractContent(rec)
		if len(content) == 0 {
			return events
		}
		fp := fingerprintOf(content)
		if s.hasLast && fp == s.last {
			return events
		}
		s.last, s.hasLast = fp, true
		return append(events, event.Event{
			Type: event.SessionMessage,
			Data: event.SessionMessageData{Message: types.SessionMessage{
				SessionID: s.info.ID,
				Type:      "assistant",
				Content:   content,
				Timestamp: now.UnixMilli(),
			}},
		})
	}
	// system, user and unknown record types carry nothing user-facing.
	return nil
}
