package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/meltforce/repstack/internal/models"
)

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	templateID, ok := pathID(w, r)
	if !ok {
		return
	}
	sessionID, err := s.db.StartSession(r.Context(), templateID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": sessionID})
}

func (s *Server) handleLogSet(w http.ResponseWriter, r *http.Request) {
	sessionItemID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reps     int     `json:"reps"`
		WeightKg float64 `json:"weight_kg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reps <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reps must be positive"})
		return
	}
	set, err := s.db.LogSet(r.Context(), sessionItemID, req.Reps, req.WeightKg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.FinishSession(r.Context(), sessionID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	sessions, err := s.db.ListSessions(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []models.SessionRow{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := s.db.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
