package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/repstack/internal/storage"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db     *storage.DB
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(db *storage.DB, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:     db,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Reads (no auth — tsnet handles access)
	s.router.Get("/api/v1/exercises", s.handleListExercises)
	s.router.Get("/api/v1/templates", s.handleListTemplates)
	s.router.Get("/api/v1/templates/{id}", s.handleGetTemplateTree)
	s.router.Get("/api/v1/sessions", s.handleListSessions)
	s.router.Get("/api/v1/sessions/{id}", s.handleGetSession)
	s.router.Get("/api/v1/stats", s.handleStats)

	// Writes (API key required)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))

		r.Post("/api/v1/exercises", s.handleCreateExercise)

		r.Post("/api/v1/templates", s.handleCreateTemplate)
		r.Patch("/api/v1/templates/{id}", s.handleRenameTemplate)
		r.Delete("/api/v1/templates/{id}", s.handleDeleteTemplate)

		r.Post("/api/v1/templates/{id}/groups", s.handleInsertGroup)
		r.Post("/api/v1/groups/{id}/move", s.handleMoveGroup)
		r.Delete("/api/v1/groups/{id}", s.handleDeleteGroup)

		r.Post("/api/v1/groups/{id}/items", s.handleInsertItem)
		r.Post("/api/v1/items/{id}/move", s.handleMoveItem)
		r.Delete("/api/v1/items/{id}", s.handleDeleteItem)

		r.Post("/api/v1/templates/{id}/start", s.handleStartSession)
		r.Post("/api/v1/session-items/{id}/sets", s.handleLogSet)
		r.Post("/api/v1/sessions/{id}/finish", s.handleFinishSession)
	})
}
