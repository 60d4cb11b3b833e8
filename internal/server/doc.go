// Package server is the HTTP boundary of the overseer daemon.
//
// # Endpoints
//
//   - /sessions: spawn, list, inspect, send input to and kill sessions
//   - /sessions/discover, /sessions/resume: continue transcripts found on disk
//   - /overseer: chat with, wake, abort, clear and reconfigure the overseer
//   - /history: search and browse indexed transcripts
//   - /layout: the client's saved pane layout
//   - /event: every bus event as Server-Sent Events
//   - /ws: the same events plus a request protocol over WebSocket
//
// Errors are JSON objects of the form {"error": {"code": ..., "message": ...}}
// where code is one of NOT_FOUND, CAPACITY_EXCEEDED, BUSY, INVALID_REQUEST,
// UNSUPPORTED, PROVIDER_ERROR or INTERNAL_ERROR.
//
// # WebSocket Protocol
//
// Outgoing messages are bus events with the first dot of the event type
// replaced by a colon and the event fields inlined:
//
//	{"type": "session:status", "sessionId": "01J...", "status": "idle", "previous": "thinking"}
//
// A new connection first receives session:list, overseer:status,
// overseer:model and, while sleeping, overseer:sleeping.
//
// Incoming messages use the same naming: session:spawn, session:input,
// session:key, session:resize, session:kill, session:setMode, overseer:chat,
// overseer:wake, overseer:abort, overseer:clear, overseer:setModel,
// history:search, history:getSessions, history:getMessages, history:sync,
// sessions:discover, sessions:resume, layout:save and layout:load. Requests
// that read data are answered directly (history:searchResults,
// history:sessions, history:messages, history:syncComplete,
// sessions:discovered, layout:loaded); failures are answered with
// {"type": "error", "code": ..., "error": ..., "request": ...}.
package server
