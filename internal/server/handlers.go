package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/repstack/internal/models"
	"github.com/meltforce/repstack/internal/storage"
)

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	exercises, err := s.db.ListExercises(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if exercises == nil {
		exercises = []models.ExerciseRow{}
	}
	writeJSON(w, http.StatusOK, exercises)
}

func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		MuscleGroup string `json:"muscle_group"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}
	ex, err := s.db.InsertExercise(r.Context(), req.Name, req.MuscleGroup)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ex)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.db.ListTemplates(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if templates == nil {
		templates = []models.TemplateRow{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}
	t, err := s.db.CreateTemplate(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTemplateTree(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tree, err := s.db.GetTemplateTree(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleRenameTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}
	if err := s.db.RenameTemplate(r.Context(), id, req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteTemplate(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInsertGroup(w http.ResponseWriter, r *http.Request) {
	templateID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		AfterGroupID *uuid.UUID       `json:"after_group_id"`
		Kind         models.GroupKind `json:"kind"`
		RestSeconds  int              `json:"rest_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	g, err := s.db.InsertGroup(r.Context(), templateID, req.AfterGroupID, req.Kind, req.RestSeconds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       g.ID,
		"name":     g.Name,
		"kind":     g.Kind,
		"position": g.Position,
	})
}

func (s *Server) handleMoveGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		BeforeGroupID *uuid.UUID `json:"before_group_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := s.db.MoveGroup(r.Context(), groupID, req.BeforeGroupID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteGroup(r.Context(), groupID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInsertItem(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		ExerciseID          uuid.UUID  `json:"exercise_id"`
		AfterItemID         *uuid.UUID `json:"after_item_id"`
		TargetSets          int        `json:"target_sets"`
		TargetReps          int        `json:"target_reps"`
		TargetWeightKg      float64    `json:"target_weight_kg"`
		RestSecondsOverride *int       `json:"rest_seconds_override"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExerciseID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise_id required"})
		return
	}
	it, err := s.db.InsertItem(r.Context(), groupID, req.ExerciseID, req.AfterItemID, storage.ItemParams{
		TargetSets:          req.TargetSets,
		TargetReps:          req.TargetReps,
		TargetWeightKg:      req.TargetWeightKg,
		RestSecondsOverride: req.RestSecondsOverride,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       it.ID,
		"position": it.Position,
	})
}

func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		TargetGroupID uuid.UUID  `json:"target_group_id"`
		BeforeItemID  *uuid.UUID `json:"before_item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetGroupID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target_group_id required"})
		return
	}
	if err := s.db.MoveItem(r.Context(), itemID, req.TargetGroupID, req.BeforeItemID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteItem(r.Context(), itemID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetDataStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeError maps storage failures to HTTP statuses. Structural problems are
// conflicts so an optimistic client knows to roll back and resync; missing
// rows are 404s.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrSourceNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, storage.ErrStructuralMismatch),
		errors.Is(err, storage.ErrInvalidMove),
		errors.Is(err, storage.ErrSessionFinished):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.log.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ID"})
		return uuid.Nil, false
	}
	return id, true
}
