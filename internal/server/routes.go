package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)

	// Sessions
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.spawnSession)
		r.Post("/resume", s.resumeSession)
		r.Get("/discover", s.discoverSessions)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.killSession)
			r.Post("/input", s.sendInput)
			r.Post("/key", s.sendKey)
			r.Post("/resize", s.resizeSession)
			r.Put("/mode", s.setMode)
			r.Get("/buffer", s.getBuffer)
		})
	})

	// Overseer
	r.Route("/overseer", func(r chi.Router) {
		r.Get("/", s.getOverseer)
		r.Get("/messages", s.getOverseerMessages)
		r.Post("/chat", s.overseerChat)
		r.Post("/wake", s.overseerWake)
		r.Post("/abort", s.overseerAbort)
		r.Post("/clear", s.overseerClear)
		r.Put("/model", s.overseerSetModel)
	})

	// History
	r.Route("/history", func(r chi.Router) {
		r.Get("/search", s.searchHistory)
		r.Get("/sessions", s.historySessions)
		r.Get("/sessions/{sessionID}/messages", s.historyMessages)
		r.Post("/sync", s.syncHistory)
	})

	// Layout
	r.Get("/layout", s.loadLayout)
	r.Put("/layout", s.saveLayout)

	// Streaming
	r.Get("/event", s.allEvents)
	r.Get("/ws", s.websocket)
}
